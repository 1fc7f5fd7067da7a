package fabrik

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/fabrik3d/fabrik/utils"
)

func TestStructurePropagation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	s := NewStructure("body", logger)

	parent := straightChain(t, 2, 10)
	child, err := NewChainBuilder("child", logger).
		StartBone(r3.Vector{}, r3.Vector{X: 5}).
		Bone(r3.Vector{X: 1}, 5).
		Build()
	test.That(t, err, test.ShouldBeNil)

	parentIdx := s.AddChain(parent)
	childIdx := s.AddChain(child)
	test.That(t, s.ChainCount(), test.ShouldEqual, 2)
	test.That(t, s.Connect(childIdx, parentIdx, 1, ConnectAtEnd), test.ShouldBeNil)
	test.That(t, child.Connected(), test.ShouldBeTrue)

	// the child's base lands exactly on the parent's solved end bone, for the
	// structure target and again after the target moves
	for _, target := range []r3.Vector{
		{X: 20},
		{X: 15, Y: 5},
		{X: 3, Y: -8, Z: 4},
	} {
		test.That(t, s.SolveForTarget(target), test.ShouldBeNil)
		test.That(t, vectorAlmostEqual(
			child.Bone(0).StartLocation(),
			parent.Bone(1).EndLocation(), 1e-9), test.ShouldBeTrue)
		test.That(t, vectorAlmostEqual(child.BaseLocation(), parent.Bone(1).EndLocation(), 1e-9), test.ShouldBeTrue)
		assertLengthInvariance(t, parent, 1e-9)
		assertLengthInvariance(t, child, 1e-9)
	}
}

func TestConnectValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	s := NewStructure("body", logger)
	a := s.AddChain(straightChain(t, 2, 10))
	b := s.AddChain(straightChain(t, 2, 10))

	test.That(t, errors.Cause(s.Connect(5, a, 0, ConnectAtEnd)), test.ShouldEqual, ErrChainIndexOutOfRange)
	test.That(t, errors.Cause(s.Connect(b, 7, 0, ConnectAtEnd)), test.ShouldEqual, ErrChainIndexOutOfRange)
	// parents must be registered before their children
	test.That(t, errors.Cause(s.Connect(a, b, 0, ConnectAtEnd)), test.ShouldEqual, ErrConnectionOrder)
	test.That(t, errors.Cause(s.Connect(b, b, 0, ConnectAtEnd)), test.ShouldEqual, ErrConnectionOrder)
	test.That(t, errors.Cause(s.Connect(b, a, 9, ConnectAtEnd)), test.ShouldEqual, ErrBoneIndexOutOfRange)

	test.That(t, s.Connect(b, a, 1, ConnectAtStart), test.ShouldBeNil)
	test.That(t, errors.Cause(s.Connect(b, a, 0, ConnectAtEnd)), test.ShouldEqual, ErrAlreadyConnected)
}

func TestConnectAtStartPoint(t *testing.T) {
	logger := golog.NewTestLogger(t)
	s := NewStructure("body", logger)
	parent := straightChain(t, 2, 10)
	child := straightChain(t, 1, 4)
	a := s.AddChain(parent)
	b := s.AddChain(child)
	test.That(t, s.Connect(b, a, 1, ConnectAtStart), test.ShouldBeNil)

	test.That(t, s.SolveForTarget(r3.Vector{X: 20}), test.ShouldBeNil)
	test.That(t, vectorAlmostEqual(
		child.Bone(0).StartLocation(),
		parent.Bone(1).StartLocation(), 1e-9), test.ShouldBeTrue)
}

func TestLocalRotorBaseboneFollowsParent(t *testing.T) {
	logger := golog.NewTestLogger(t)
	s := NewStructure("body", logger)

	// the parent holds itself upright with an embedded target
	parent := NewChain("spine", logger)
	spine, err := NewBone(r3.Vector{}, r3.Vector{Y: 10})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parent.AddBone(spine), test.ShouldBeNil)
	parent.SetEmbeddedTargetMode(true)
	parent.UpdateEmbeddedTarget(r3.Vector{Y: 10})

	// the child may deviate at most 10 degrees from the parent bone's
	// direction: its local constraint direction is local +Z, which maps onto
	// the parent's direction
	child := NewChain("arm", logger)
	upper, err := NewBone(r3.Vector{}, r3.Vector{X: 5})
	test.That(t, err, test.ShouldBeNil)
	limit, err := NewConstrainedBallJoint(10)
	test.That(t, err, test.ShouldBeNil)
	upper.SetJoint(limit)
	test.That(t, child.AddBone(upper), test.ShouldBeNil)
	test.That(t, child.AddConsecutiveBone(r3.Vector{X: 1}, 5), test.ShouldBeNil)

	parentIdx := s.AddChain(parent)
	childIdx := s.AddChain(child)
	test.That(t, s.Connect(childIdx, parentIdx, 0, ConnectAtEnd), test.ShouldBeNil)
	test.That(t, child.SetBaseboneConstraint(BaseboneLocalRotor, r3.Vector{Z: 1}), test.ShouldBeNil)

	// a target far off to the side pulls the child against its cone
	test.That(t, s.SolveForTarget(r3.Vector{X: 20, Z: 10}), test.ShouldBeNil)

	test.That(t, vectorAlmostEqual(parent.Bone(0).EndLocation(), r3.Vector{Y: 10}, 1e-9), test.ShouldBeTrue)
	test.That(t, vectorAlmostEqual(child.Bone(0).StartLocation(), r3.Vector{Y: 10}, 1e-9), test.ShouldBeTrue)

	parentDir := parent.Bone(0).DirectionUV()
	deviation := float64(child.Bone(0).DirectionUV().Angle(parentDir))
	test.That(t, deviation, test.ShouldBeLessThanOrEqualTo, utils.DegToRad(10)+1e-9)
}

func TestLocalConstraintRequiresConnection(t *testing.T) {
	c := straightChain(t, 2, 10)
	err := c.SetBaseboneConstraint(BaseboneLocalHinge, r3.Vector{X: 1})
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrNotConnected)
}

func TestChainAccessor(t *testing.T) {
	logger := golog.NewTestLogger(t)
	s := NewStructure("body", logger)
	c := straightChain(t, 1, 10)
	idx := s.AddChain(c)
	test.That(t, s.Chain(idx), test.ShouldEqual, c)
	test.That(t, s.Chain(-1), test.ShouldBeNil)
	test.That(t, s.Chain(1), test.ShouldBeNil)
}
