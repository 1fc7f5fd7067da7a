package fabrik

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/fabrik3d/fabrik/utils"
)

func vectorAlmostEqual(a, b r3.Vector, tol float64) bool {
	return a.Sub(b).Norm() < tol
}

func TestBallJointDefaults(t *testing.T) {
	j := NewBallJoint()
	test.That(t, j.Type(), test.ShouldEqual, BallJoint)
	test.That(t, j.RotorConstraintDegs(), test.ShouldEqual, MaxConstraintDegs)

	// unconstrained ball joints pass any candidate through
	candidate := r3.Vector{X: -0.6, Y: 0.8}
	got := j.ClampDirection(candidate, r3.Vector{X: 1})
	test.That(t, got, test.ShouldResemble, candidate)
}

func TestConstrainedBallJointClamp(t *testing.T) {
	j, err := NewConstrainedBallJoint(45)
	test.That(t, err, test.ShouldBeNil)
	ref := r3.Vector{X: 1}

	// inside the cone the candidate is untouched
	inside := r3.Vector{X: math.Cos(math.Pi / 6), Y: math.Sin(math.Pi / 6)}
	test.That(t, j.ClampDirection(inside, ref), test.ShouldResemble, inside)

	// outside the cone the candidate is pulled back to the limit, staying in
	// the plane the two vectors define
	got := j.ClampDirection(r3.Vector{Y: 1}, ref)
	test.That(t, float64(got.Angle(ref)), test.ShouldAlmostEqual, utils.DegToRad(45), 1e-12)
	test.That(t, got.Z, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, got.Y, test.ShouldBeGreaterThan, 0)

	// antiparallel candidate resolves through the deterministic perpendicular
	j90, err := NewConstrainedBallJoint(90)
	test.That(t, err, test.ShouldBeNil)
	got = j90.ClampDirection(r3.Vector{X: -1}, ref)
	test.That(t, vectorAlmostEqual(got, r3.Vector{Y: 1}, 1e-12), test.ShouldBeTrue)
}

func TestConstrainedBallJointValidation(t *testing.T) {
	_, err := NewConstrainedBallJoint(-1)
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrConstraintOutOfRange)
	_, err = NewConstrainedBallJoint(180.5)
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrConstraintOutOfRange)
	_, err = NewConstrainedBallJoint(0)
	test.That(t, err, test.ShouldBeNil)
}

func TestGlobalHingeClamp(t *testing.T) {
	// hinge in the XY plane, zero angle along +X, 30 degrees clockwise and 90
	// anticlockwise
	j, err := NewGlobalHingeJoint(r3.Vector{Z: 1}, r3.Vector{X: 1}, 30, 90)
	test.That(t, err, test.ShouldBeNil)
	ref := r3.Vector{X: 1}

	// at the anticlockwise bound
	got := j.ClampDirection(r3.Vector{Y: 1}, ref)
	test.That(t, vectorAlmostEqual(got, r3.Vector{Y: 1}, 1e-12), test.ShouldBeTrue)

	// past the anticlockwise bound clamps to 90 degrees
	got = j.ClampDirection(r3.Vector{X: -0.5, Y: math.Sqrt(3) / 2}, ref)
	test.That(t, vectorAlmostEqual(got, r3.Vector{Y: 1}, 1e-12), test.ShouldBeTrue)

	// past the clockwise bound clamps to -30 degrees
	got = j.ClampDirection(r3.Vector{X: 0.5, Y: -math.Sqrt(3) / 2}, ref)
	want := r3.Vector{X: math.Cos(utils.DegToRad(30)), Y: -math.Sin(utils.DegToRad(30))}
	test.That(t, vectorAlmostEqual(got, want, 1e-12), test.ShouldBeTrue)

	// out-of-plane candidates are projected before measuring
	got = j.ClampDirection(r3.Vector{X: 0.6, Z: 0.8}, ref)
	test.That(t, vectorAlmostEqual(got, r3.Vector{X: 1}, 1e-12), test.ShouldBeTrue)

	// a candidate parallel to the rotation axis has no in-plane component and
	// falls back to the reference axis
	got = j.ClampDirection(r3.Vector{Z: 1}, ref)
	test.That(t, got, test.ShouldResemble, r3.Vector{X: 1})
}

func TestLocalHingeClamp(t *testing.T) {
	// local axes are carried into world space through the previous bone's
	// frame; with the previous bone along +Z that frame is the identity
	j, err := NewLocalHingeJoint(r3.Vector{X: 1}, r3.Vector{Z: 1}, 30, 180)
	test.That(t, err, test.ShouldBeNil)
	prevDir := r3.Vector{Z: 1}

	candidate := r3.Vector{Y: math.Sqrt2 / 2, Z: math.Sqrt2 / 2}
	got := j.ClampDirection(candidate, prevDir)
	want := r3.Vector{Y: math.Sin(utils.DegToRad(30)), Z: math.Cos(utils.DegToRad(30))}
	test.That(t, vectorAlmostEqual(got, want, 1e-12), test.ShouldBeTrue)
}

func TestHingeJointValidation(t *testing.T) {
	_, err := NewGlobalHingeJoint(r3.Vector{}, r3.Vector{X: 1}, 90, 90)
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrZeroLengthAxis)

	_, err = NewGlobalHingeJoint(r3.Vector{Z: 1}, r3.Vector{}, 90, 90)
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrZeroLengthAxis)

	_, err = NewGlobalHingeJoint(r3.Vector{Z: 1}, r3.Vector{X: 0.5, Z: 0.5}, 90, 90)
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrAxesNotPerpendicular)

	_, err = NewLocalHingeJoint(r3.Vector{Z: 1}, r3.Vector{X: 1}, 90, 200)
	test.That(t, errors.Cause(err), test.ShouldEqual, ErrConstraintOutOfRange)

	// non-unit but perpendicular axes are normalized, not rejected
	j, err := NewGlobalHingeJoint(r3.Vector{Z: 3}, r3.Vector{X: 0.2}, 90, 90)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, j.RotationAxis().Norm(), test.ShouldAlmostEqual, 1, 1e-12)
	test.That(t, j.ReferenceAxis().Norm(), test.ShouldAlmostEqual, 1, 1e-12)
}
