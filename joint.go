// Package fabrik implements joint-constrained inverse kinematics for
// articulated 3D skeletons using the FABRIK algorithm. Chains of rigid bones
// are solved toward a target by alternating forward (tip to base) and
// backward (base to tip) reaching passes, with per-joint rotational
// constraints enforced during the backward pass. Multiple chains can be
// assembled into a Structure where child chains track a point on a parent
// bone each solve.
package fabrik

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/fabrik3d/fabrik/spatial"
	"github.com/fabrik3d/fabrik/utils"
)

// JointType enumerates the rotational constraint variants a bone can carry.
type JointType int

const (
	// BallJoint limits rotation to a cone around the previous bone's direction.
	BallJoint JointType = iota
	// GlobalHingeJoint limits rotation to a plane fixed in world space.
	GlobalHingeJoint
	// LocalHingeJoint limits rotation to a plane defined relative to the
	// previous bone's direction.
	LocalHingeJoint
)

// String returns a human-readable joint type name.
func (t JointType) String() string {
	switch t {
	case BallJoint:
		return "ball"
	case GlobalHingeJoint:
		return "global hinge"
	case LocalHingeJoint:
		return "local hinge"
	}
	return "unknown"
}

// MinConstraintDegs and MaxConstraintDegs bound every angular limit a joint accepts.
const (
	MinConstraintDegs = 0.0
	MaxConstraintDegs = 180.0
)

// Axes whose dot product exceeds this are rejected as non-perpendicular.
const axisPerpendicularTolerance = 1e-6

// Joint describes the rotational freedom of one bone relative to either a
// global axis or the previous bone's direction. Joints are owned by exactly
// one bone and are mutated only through their constructors.
type Joint struct {
	jointType JointType

	// cone half-angle for ball joints; 180 means unconstrained
	rotorConstraintDegs float64

	// hinge plane normal and in-plane zero-angle reference; world space for
	// global hinges, previous-bone-relative for local hinges
	rotationAxis  r3.Vector
	referenceAxis r3.Vector

	clockwiseConstraintDegs     float64
	anticlockwiseConstraintDegs float64
}

// NewBallJoint returns an unconstrained ball joint, the default for any bone
// that has no explicit constraint.
func NewBallJoint() *Joint {
	return &Joint{jointType: BallJoint, rotorConstraintDegs: MaxConstraintDegs}
}

// NewConstrainedBallJoint returns a ball joint whose rotation is limited to a
// cone of the given half-angle around the previous bone's direction.
func NewConstrainedBallJoint(rotorConstraintDegs float64) (*Joint, error) {
	if rotorConstraintDegs < MinConstraintDegs || rotorConstraintDegs > MaxConstraintDegs {
		return nil, errors.Wrapf(ErrConstraintOutOfRange, "rotor constraint %.2f degrees", rotorConstraintDegs)
	}
	j := NewBallJoint()
	j.rotorConstraintDegs = rotorConstraintDegs
	return j, nil
}

// NewGlobalHingeJoint returns a hinge joint whose rotation plane is fixed in
// world space. rotationAxis is the plane normal and referenceAxis the
// in-plane zero-angle direction; they must be mutually perpendicular and
// nonzero. The clockwise and anticlockwise limits are measured either side of
// the reference axis.
func NewGlobalHingeJoint(rotationAxis, referenceAxis r3.Vector, clockwiseDegs, anticlockwiseDegs float64) (*Joint, error) {
	return newHingeJoint(GlobalHingeJoint, rotationAxis, referenceAxis, clockwiseDegs, anticlockwiseDegs)
}

// NewLocalHingeJoint returns a hinge joint whose axes are interpreted in the
// frame of the previous bone (Z axis along the previous bone's direction).
func NewLocalHingeJoint(rotationAxis, referenceAxis r3.Vector, clockwiseDegs, anticlockwiseDegs float64) (*Joint, error) {
	return newHingeJoint(LocalHingeJoint, rotationAxis, referenceAxis, clockwiseDegs, anticlockwiseDegs)
}

func newHingeJoint(t JointType, rotationAxis, referenceAxis r3.Vector, clockwiseDegs, anticlockwiseDegs float64) (*Joint, error) {
	if rotationAxis.Norm2() == 0 {
		return nil, errors.Wrap(ErrZeroLengthAxis, "rotation axis")
	}
	if referenceAxis.Norm2() == 0 {
		return nil, errors.Wrap(ErrZeroLengthAxis, "reference axis")
	}
	rot := rotationAxis.Normalize()
	ref := referenceAxis.Normalize()
	if math.Abs(rot.Dot(ref)) > axisPerpendicularTolerance {
		return nil, errors.Wrapf(ErrAxesNotPerpendicular,
			"rotation axis %v vs reference axis %v", rot, ref)
	}
	for _, limit := range []float64{clockwiseDegs, anticlockwiseDegs} {
		if limit < MinConstraintDegs || limit > MaxConstraintDegs {
			return nil, errors.Wrapf(ErrConstraintOutOfRange, "hinge constraint %.2f degrees", limit)
		}
	}
	return &Joint{
		jointType:                   t,
		rotorConstraintDegs:         MaxConstraintDegs,
		rotationAxis:                rot,
		referenceAxis:               ref,
		clockwiseConstraintDegs:     clockwiseDegs,
		anticlockwiseConstraintDegs: anticlockwiseDegs,
	}, nil
}

// Type returns the joint's constraint variant.
func (j *Joint) Type() JointType { return j.jointType }

// RotorConstraintDegs returns the cone half-angle of a ball joint.
func (j *Joint) RotorConstraintDegs() float64 { return j.rotorConstraintDegs }

// RotationAxis returns the hinge plane normal.
func (j *Joint) RotationAxis() r3.Vector { return j.rotationAxis }

// ReferenceAxis returns the hinge's in-plane zero-angle direction.
func (j *Joint) ReferenceAxis() r3.Vector { return j.referenceAxis }

// ClockwiseConstraintDegs returns the clockwise hinge limit.
func (j *Joint) ClockwiseConstraintDegs() float64 { return j.clockwiseConstraintDegs }

// AnticlockwiseConstraintDegs returns the anticlockwise hinge limit.
func (j *Joint) AnticlockwiseConstraintDegs() float64 { return j.anticlockwiseConstraintDegs }

// ClampDirection returns candidate adjusted to satisfy this joint's
// constraint. reference is the previous bone's unit direction: ball joints
// clamp to a cone around it and local hinges use it to carry their axes into
// world space; global hinges ignore it. Both inputs must be unit vectors.
// The operation is pure and cannot fail; degenerate inputs resolve through
// fixed fallback rules.
func (j *Joint) ClampDirection(candidate, reference r3.Vector) r3.Vector {
	switch j.jointType {
	case BallJoint:
		return clampToCone(candidate, reference, j.rotorConstraintDegs)
	case GlobalHingeJoint:
		return clampToHingePlane(candidate, j.rotationAxis, j.referenceAxis,
			j.clockwiseConstraintDegs, j.anticlockwiseConstraintDegs)
	case LocalHingeJoint:
		return clampToHingePlane(candidate,
			spatial.ToWorld(j.rotationAxis, reference),
			spatial.ToWorld(j.referenceAxis, reference),
			j.clockwiseConstraintDegs, j.anticlockwiseConstraintDegs)
	}
	return candidate
}

// clampToCone keeps candidate within limitDegs of reference, rotating it back
// along the plane the two vectors define when it strays outside the cone.
func clampToCone(candidate, reference r3.Vector, limitDegs float64) r3.Vector {
	return spatial.RotateTowards(reference, candidate, utils.DegToRad(limitDegs))
}

// clampToHingePlane projects candidate onto the hinge plane and clamps its
// signed angle from the reference axis to [-clockwise, +anticlockwise],
// where positive angles are the right-hand (anticlockwise) side of the
// rotation axis. A candidate parallel to the rotation axis has no in-plane
// component and falls back to the reference axis.
func clampToHingePlane(candidate, rotationAxis, referenceAxis r3.Vector, clockwiseDegs, anticlockwiseDegs float64) r3.Vector {
	projected, ok := spatial.ProjectOntoPlane(candidate, rotationAxis)
	if !ok {
		return referenceAxis
	}
	angle := spatial.SignedAngleAround(referenceAxis, projected, rotationAxis)
	switch {
	case angle > utils.DegToRad(anticlockwiseDegs):
		return spatial.RotateAboutAxis(referenceAxis, rotationAxis, utils.DegToRad(anticlockwiseDegs))
	case angle < -utils.DegToRad(clockwiseDegs):
		return spatial.RotateAboutAxis(referenceAxis, rotationAxis, -utils.DegToRad(clockwiseDegs))
	}
	return projected
}
