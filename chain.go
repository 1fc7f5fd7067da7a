package fabrik

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/fabrik3d/fabrik/spatial"
	"github.com/fabrik3d/fabrik/utils"
)

// BaseboneConstraintType selects how the base bone's direction is constrained
// at the start of each backward reaching pass.
type BaseboneConstraintType int

const (
	// BaseboneNone leaves the base bone unconstrained.
	BaseboneNone BaseboneConstraintType = iota
	// BaseboneGlobalRotor constrains the base bone to a cone around a
	// world-space direction.
	BaseboneGlobalRotor
	// BaseboneLocalRotor constrains the base bone to a cone around a direction
	// given relative to the connected parent bone.
	BaseboneLocalRotor
	// BaseboneGlobalHinge constrains the base bone to its joint's world-space
	// hinge plane, measured from a world-space reference direction.
	BaseboneGlobalHinge
	// BaseboneLocalHinge constrains the base bone to its joint's hinge plane
	// carried into world space through the connected parent bone's frame.
	BaseboneLocalHinge
)

// Solver tuning defaults. The distance threshold assumes chains on the order
// of tens to hundreds of units, giving a tight millimetre-scale tolerance.
const (
	DefaultMaxIterations          = 20
	DefaultMinIterations          = 1
	DefaultSolveDistanceThreshold = 0.01
)

// Targets and bases closer than this are treated as unchanged by the
// early-exit check.
const targetEpsilon = 1e-9

// Chain is an ordered sequence of bones solved together toward one target.
// Bone 0 is the base bone, the last bone carries the end effector. A chain is
// not safe for concurrent use; callers solving the same chain from multiple
// goroutines must serialize externally.
type Chain struct {
	name   string
	logger golog.Logger

	bones       []*Bone
	chainLength float64

	baseboneConstraintType BaseboneConstraintType
	baseboneConstraintUV   r3.Vector
	// world-space resolutions of a LOCAL_* constraint, refreshed by the
	// owning structure before each solve
	baseboneRelativeConstraintUV r3.Vector
	baseboneRelativeHingeAxis    r3.Vector
	connected                    bool

	fixedBaseMode bool
	baseLocation  r3.Vector

	useEmbeddedTarget bool
	embeddedTarget    r3.Vector

	// memoized solve state for the early-exit optimization
	lastTargetLocation   r3.Vector
	lastBaseLocation     r3.Vector
	currentSolveDistance float64

	minIterations          int
	maxIterations          int
	solveDistanceThreshold float64
}

// NewChain returns an empty chain with default solver tuning and a pinned
// base. The logger is used for solve diagnostics at debug level.
func NewChain(name string, logger golog.Logger) *Chain {
	far := r3.Vector{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	return &Chain{
		name:                   name,
		logger:                 logger,
		fixedBaseMode:          true,
		minIterations:          DefaultMinIterations,
		maxIterations:          DefaultMaxIterations,
		solveDistanceThreshold: DefaultSolveDistanceThreshold,
		currentSolveDistance:   math.MaxFloat64,
		lastTargetLocation:     far,
		lastBaseLocation:       far,
	}
}

// Name returns the chain's name.
func (c *Chain) Name() string { return c.name }

// BoneCount returns the number of bones in the chain.
func (c *Chain) BoneCount() int { return len(c.bones) }

// Bone returns the bone at the given index, or nil if the index is out of
// range.
func (c *Chain) Bone(i int) *Bone {
	if i < 0 || i >= len(c.bones) {
		return nil
	}
	return c.bones[i]
}

// ChainLength returns the sum of all bone lengths. The value is cached and
// only changes on bone add or remove.
func (c *Chain) ChainLength() float64 { return c.chainLength }

// LiveChainLength recomputes the chain length from the current bone
// endpoints. It should agree with ChainLength to within floating-point
// tolerance after any solve; a discrepancy indicates length drift.
func (c *Chain) LiveChainLength() float64 {
	var length float64
	for _, b := range c.bones {
		length += b.StartLocation().Distance(b.EndLocation())
	}
	return length
}

// EffectorLocation returns the end location of the last bone, or the zero
// vector for an empty chain.
func (c *Chain) EffectorLocation() r3.Vector {
	if len(c.bones) == 0 {
		return r3.Vector{}
	}
	return c.bones[len(c.bones)-1].EndLocation()
}

// BaseLocation returns the chain's anchor point.
func (c *Chain) BaseLocation() r3.Vector { return c.baseLocation }

// SetBaseLocation moves the chain's anchor point. With fixed-base mode on,
// the next backward reaching pass pins the base bone's start here.
func (c *Chain) SetBaseLocation(loc r3.Vector) { c.baseLocation = loc }

// FixedBaseMode reports whether the base bone's start location is pinned.
func (c *Chain) FixedBaseMode() bool { return c.fixedBaseMode }

// SetFixedBaseMode pins or frees the base bone's start location. A freed base
// translates wherever forward reaching leaves it, used when the chain tracks
// a moving attachment without being rigidly pinned.
func (c *Chain) SetFixedBaseMode(fixed bool) { c.fixedBaseMode = fixed }

// BaseboneConstraint returns the basebone constraint type and its reference
// direction.
func (c *Chain) BaseboneConstraint() (BaseboneConstraintType, r3.Vector) {
	return c.baseboneConstraintType, c.baseboneConstraintUV
}

// LastTargetLocation returns the target of the most recent solve.
func (c *Chain) LastTargetLocation() r3.Vector { return c.lastTargetLocation }

// LastSolveDistance returns the end-effector distance achieved by the most
// recent solve, or MaxFloat64 if the chain has never been solved.
func (c *Chain) LastSolveDistance() float64 { return c.currentSolveDistance }

// AddBone appends a bone to the chain. The first bone added establishes the
// chain's base location at its start point.
func (c *Chain) AddBone(bone *Bone) error {
	if bone == nil {
		return errors.New("bone must not be nil")
	}
	if len(c.bones) == 0 {
		c.baseLocation = bone.StartLocation()
	}
	c.bones = append(c.bones, bone)
	c.chainLength += bone.Length()
	c.invalidateSolve()
	return nil
}

// AddConsecutiveBone appends an unconstrained bone of the given length
// extending from the previous bone's end along direction.
func (c *Chain) AddConsecutiveBone(direction r3.Vector, length float64) error {
	return c.AddConsecutiveConstrainedBone(direction, length, NewBallJoint())
}

// AddConsecutiveRotorConstrainedBone appends a bone whose rotation is limited
// to a cone of the given half-angle around the previous bone's direction.
func (c *Chain) AddConsecutiveRotorConstrainedBone(direction r3.Vector, length, rotorConstraintDegs float64) error {
	j, err := NewConstrainedBallJoint(rotorConstraintDegs)
	if err != nil {
		return err
	}
	return c.AddConsecutiveConstrainedBone(direction, length, j)
}

// AddConsecutiveHingedBone appends a bone carrying the given hinge joint.
func (c *Chain) AddConsecutiveHingedBone(direction r3.Vector, length float64, hinge *Joint) error {
	if hinge == nil || hinge.Type() == BallJoint {
		return errors.New("hinged bone requires a hinge joint")
	}
	return c.AddConsecutiveConstrainedBone(direction, length, hinge)
}

// AddConsecutiveConstrainedBone appends a bone with the given joint extending
// from the previous bone's end along direction.
func (c *Chain) AddConsecutiveConstrainedBone(direction r3.Vector, length float64, joint *Joint) error {
	if len(c.bones) == 0 {
		return errors.Wrap(ErrNoBones, "consecutive bones need a base bone first")
	}
	bone, err := NewBoneFromDirection(c.bones[len(c.bones)-1].EndLocation(), direction, length)
	if err != nil {
		return err
	}
	bone.SetJoint(joint)
	return c.AddBone(bone)
}

// RemoveBone removes the bone at the given index. Bones after the removed one
// are rigidly translated to close the gap, keeping the chain contiguous.
func (c *Chain) RemoveBone(index int) error {
	if index < 0 || index >= len(c.bones) {
		return errors.Wrapf(ErrBoneIndexOutOfRange, "remove bone %d of %d", index, len(c.bones))
	}
	removed := c.bones[index]
	if index < len(c.bones)-1 {
		anchor := removed.StartLocation()
		if index > 0 {
			anchor = c.bones[index-1].EndLocation()
		}
		delta := anchor.Sub(c.bones[index+1].StartLocation())
		for _, b := range c.bones[index+1:] {
			b.Translate(delta)
		}
	}
	c.bones = append(c.bones[:index], c.bones[index+1:]...)
	c.chainLength -= removed.Length()
	if index == 0 && len(c.bones) > 0 {
		c.baseLocation = c.bones[0].StartLocation()
	}
	c.invalidateSolve()
	return nil
}

// SetBaseboneConstraint configures how the base bone's direction is clamped
// during backward reaching. Rotor types require a ball-jointed base bone and
// use its cone limit; hinge types require a matching hinge joint on the base
// bone and use constraintUV as the hinge's zero-angle reference. LOCAL_*
// types additionally require the chain to already be connected to a parent
// bone within a structure.
func (c *Chain) SetBaseboneConstraint(t BaseboneConstraintType, constraintUV r3.Vector) error {
	if t == BaseboneNone {
		c.baseboneConstraintType = t
		c.invalidateSolve()
		return nil
	}
	if len(c.bones) == 0 {
		return errors.Wrap(ErrNoBones, "basebone constraint")
	}
	if constraintUV.Norm2() == 0 {
		return errors.Wrap(ErrZeroLengthDirection, "basebone constraint")
	}
	if (t == BaseboneLocalRotor || t == BaseboneLocalHinge) && !c.connected {
		return errors.Wrapf(ErrNotConnected, "chain %q", c.name)
	}
	uv := constraintUV.Normalize()
	j := c.bones[0].Joint()
	switch t {
	case BaseboneGlobalRotor, BaseboneLocalRotor:
		if j.Type() != BallJoint {
			return errors.Wrapf(ErrBaseboneJointMismatch,
				"rotor constraint on %s base joint", j.Type())
		}
	case BaseboneGlobalHinge:
		if j.Type() != GlobalHingeJoint {
			return errors.Wrapf(ErrBaseboneJointMismatch,
				"global hinge constraint on %s base joint", j.Type())
		}
		if math.Abs(uv.Dot(j.RotationAxis())) > axisPerpendicularTolerance {
			return errors.Wrap(ErrAxesNotPerpendicular, "basebone hinge reference")
		}
	case BaseboneLocalHinge:
		if j.Type() != LocalHingeJoint {
			return errors.Wrapf(ErrBaseboneJointMismatch,
				"local hinge constraint on %s base joint", j.Type())
		}
		if math.Abs(uv.Dot(j.RotationAxis())) > axisPerpendicularTolerance {
			return errors.Wrap(ErrAxesNotPerpendicular, "basebone hinge reference")
		}
	case BaseboneNone:
	}
	c.baseboneConstraintType = t
	c.baseboneConstraintUV = uv
	c.invalidateSolve()
	return nil
}

// SetEmbeddedTargetMode switches the chain between solving for an externally
// supplied target and its own stored one.
func (c *Chain) SetEmbeddedTargetMode(on bool) { c.useEmbeddedTarget = on }

// EmbeddedTargetMode reports whether the chain solves for its stored target.
func (c *Chain) EmbeddedTargetMode() bool { return c.useEmbeddedTarget }

// UpdateEmbeddedTarget stores a target for SolveForEmbeddedTarget.
func (c *Chain) UpdateEmbeddedTarget(target r3.Vector) { c.embeddedTarget = target }

// EmbeddedTarget returns the stored embedded target location.
func (c *Chain) EmbeddedTarget() r3.Vector { return c.embeddedTarget }

// SetMaxIterations caps the number of forward/backward passes per solve.
func (c *Chain) SetMaxIterations(n int) error {
	if n < 1 || n < c.minIterations {
		return errors.Wrapf(ErrInvalidIterations, "max %d with min %d", n, c.minIterations)
	}
	c.maxIterations = n
	return nil
}

// SetMinIterations sets the number of passes run before convergence may stop
// the solve early.
func (c *Chain) SetMinIterations(n int) error {
	if n < 1 || n > c.maxIterations {
		return errors.Wrapf(ErrInvalidIterations, "min %d with max %d", n, c.maxIterations)
	}
	c.minIterations = n
	return nil
}

// SetSolveDistanceThreshold sets the end-effector distance below which a
// solve counts as converged.
func (c *Chain) SetSolveDistanceThreshold(d float64) error {
	if d <= 0 {
		return errors.Wrapf(ErrInvalidThreshold, "threshold %g", d)
	}
	c.solveDistanceThreshold = d
	return nil
}

// invalidateSolve discards the memoized solve state after any structural or
// configuration change.
func (c *Chain) invalidateSolve() {
	c.currentSolveDistance = math.MaxFloat64
}

// canSkipSolve reports whether a previous converged solve against the same
// target and base location can be reused verbatim: re-running an already
// converged chain against identical inputs reproduces the same pose.
func canSkipSolve(lastTarget, lastBase r3.Vector, lastDistance float64, target, base r3.Vector, threshold float64) bool {
	return lastDistance <= threshold &&
		target.Sub(lastTarget).Norm() < targetEpsilon &&
		base.Sub(lastBase).Norm() < targetEpsilon
}

// SolveForEmbeddedTarget solves the chain for its stored embedded target.
func (c *Chain) SolveForEmbeddedTarget() (float64, error) {
	if !c.useEmbeddedTarget {
		return 0, errors.Wrapf(ErrEmbeddedTargetDisabled, "chain %q", c.name)
	}
	return c.SolveForTarget(c.embeddedTarget)
}

// SolveForTarget iteratively runs forward and backward reaching passes until
// the end effector is within the solve distance threshold of the target or
// the iteration cap is reached. It returns the best end-effector distance
// achieved; the chain is left in the pose that produced it. An unreachable
// target is not an error, it simply yields a nonzero distance.
func (c *Chain) SolveForTarget(target r3.Vector) (float64, error) {
	if len(c.bones) == 0 {
		return 0, errors.Wrapf(ErrNoBones, "chain %q", c.name)
	}
	if (c.baseboneConstraintType == BaseboneLocalRotor || c.baseboneConstraintType == BaseboneLocalHinge) && !c.connected {
		return 0, errors.Wrapf(ErrNotConnected, "chain %q", c.name)
	}
	if canSkipSolve(c.lastTargetLocation, c.lastBaseLocation, c.currentSolveDistance,
		target, c.baseLocation, c.solveDistanceThreshold) {
		if c.logger != nil {
			c.logger.Debugf("chain %q: reusing converged solve, distance %g", c.name, c.currentSolveDistance)
		}
		return c.currentSolveDistance, nil
	}

	bestDistance := math.MaxFloat64
	var bestPose []r3.Vector
	iterations := 0
	for i := 0; i < c.maxIterations; i++ {
		iterations++
		dist := c.solvePass(target)
		if dist < bestDistance {
			bestDistance = dist
			bestPose = c.snapshotPose()
		}
		if dist <= c.solveDistanceThreshold && iterations >= c.minIterations {
			break
		}
	}
	c.restorePose(bestPose)
	c.currentSolveDistance = bestDistance
	c.lastTargetLocation = target
	c.lastBaseLocation = c.baseLocation
	if bestDistance > c.solveDistanceThreshold && c.logger != nil {
		effector := c.bones[len(c.bones)-1]
		toTarget := directionOrDefault(target.Sub(effector.StartLocation()), effector.DirectionUV())
		offDegs := utils.RadToDeg(float64(effector.DirectionUV().Angle(toTarget)))
		c.logger.Debugf("chain %q: best distance %g after %d iterations, effector %.1f degrees off the target line",
			c.name, bestDistance, iterations, offDegs)
	}
	return bestDistance, nil
}

// solvePass runs one forward and one backward reaching pass and returns the
// resulting end-effector distance to the target.
func (c *Chain) solvePass(target r3.Vector) float64 {
	c.forwardReach(target)
	c.backwardReach()
	return c.bones[len(c.bones)-1].EndLocation().Distance(target)
}

// forwardReach drags the chain onto the target from the tip down to the base.
// No constraints are applied here; each bone's length is restored by
// rescaling its new direction, and the backward pass re-applies every
// constraint.
func (c *Chain) forwardReach(target r3.Vector) {
	for i := len(c.bones) - 1; i >= 0; i-- {
		b := c.bones[i]
		end := target
		if i != len(c.bones)-1 {
			end = c.bones[i+1].StartLocation()
		}
		toStart := directionOrDefault(b.StartLocation().Sub(end), b.DirectionUV().Mul(-1))
		b.reposition(end.Add(toStart.Mul(b.length)), end)
	}
}

// backwardReach re-anchors the base and propagates constrained directions out
// to the tip. Every non-base joint is clamped here, hinges included, against
// the previous bone's already-updated direction.
func (c *Chain) backwardReach() {
	for i, b := range c.bones {
		var start, dir r3.Vector
		if i == 0 {
			start = b.StartLocation()
			if c.fixedBaseMode {
				start = c.baseLocation
			}
			dir = c.clampBaseboneDirection(b.DirectionUV())
		} else {
			prev := c.bones[i-1]
			start = prev.EndLocation()
			dir = b.joint.ClampDirection(b.DirectionUV(), prev.DirectionUV())
		}
		b.reposition(start, start.Add(dir.Mul(b.length)))
	}
}

// clampBaseboneDirection resolves the basebone constraint for the candidate
// direction the forward pass produced. For a single-bone chain the bone's own
// direction serves as the candidate; there is no previous bone to reference.
func (c *Chain) clampBaseboneDirection(candidate r3.Vector) r3.Vector {
	j := c.bones[0].joint
	switch c.baseboneConstraintType {
	case BaseboneGlobalRotor:
		return clampToCone(candidate, c.baseboneConstraintUV, j.rotorConstraintDegs)
	case BaseboneLocalRotor:
		return clampToCone(candidate, c.baseboneRelativeConstraintUV, j.rotorConstraintDegs)
	case BaseboneGlobalHinge:
		return clampToHingePlane(candidate, j.rotationAxis, c.baseboneConstraintUV,
			j.clockwiseConstraintDegs, j.anticlockwiseConstraintDegs)
	case BaseboneLocalHinge:
		return clampToHingePlane(candidate, c.baseboneRelativeHingeAxis, c.baseboneRelativeConstraintUV,
			j.clockwiseConstraintDegs, j.anticlockwiseConstraintDegs)
	case BaseboneNone:
	}
	return candidate
}

// snapshotPose captures all bone endpoints so the best pose seen across
// iterations can be restored after the loop.
func (c *Chain) snapshotPose() []r3.Vector {
	pose := make([]r3.Vector, 0, 2*len(c.bones))
	for _, b := range c.bones {
		pose = append(pose, b.start, b.end)
	}
	return pose
}

func (c *Chain) restorePose(pose []r3.Vector) {
	for i, b := range c.bones {
		b.reposition(pose[2*i], pose[2*i+1])
	}
}

// directionOrDefault normalizes v, substituting fallback when v is too short
// to carry a direction.
func directionOrDefault(v, fallback r3.Vector) r3.Vector {
	if v.Norm2() < 1e-18 {
		return fallback
	}
	return v.Normalize()
}

// setConnected marks the chain as attached to a parent bone. Connected chains
// always run in fixed-base mode; their base tracks the connection point.
func (c *Chain) setConnected() {
	c.connected = true
	c.fixedBaseMode = true
}

// Connected reports whether the chain is attached to a parent bone within a
// structure.
func (c *Chain) Connected() bool { return c.connected }

// snapToConnection rigidly translates the whole chain so its base coincides
// with the resolved connection point, preserving the chain's relative pose.
func (c *Chain) snapToConnection(loc r3.Vector) {
	if len(c.bones) == 0 {
		return
	}
	delta := loc.Sub(c.bones[0].StartLocation())
	for _, b := range c.bones {
		b.Translate(delta)
	}
	c.baseLocation = loc
}

// resolveRelativeBasebone carries a LOCAL_* basebone constraint into world
// space through the parent bone's frame. The owning structure calls this
// before each solve of a connected chain so the constraint follows the
// parent's current pose.
func (c *Chain) resolveRelativeBasebone(parentDir r3.Vector) {
	c.baseboneRelativeConstraintUV = spatial.ToWorld(c.baseboneConstraintUV, parentDir)
	if c.baseboneConstraintType == BaseboneLocalHinge {
		c.baseboneRelativeHingeAxis = spatial.ToWorld(c.bones[0].joint.rotationAxis, parentDir)
	}
}
