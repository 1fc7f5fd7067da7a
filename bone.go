package fabrik

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Bones shorter than this are rejected at construction.
const minBoneLength = 1e-9

// Bone is a rigid fixed-length segment between two locations, exclusively
// owned by one chain. Length is derived once at construction and never
// recomputed from the endpoints; the solving algorithm repositions endpoints
// in pairs so the length always holds.
type Bone struct {
	name   string
	start  r3.Vector
	end    r3.Vector
	length float64
	joint  *Joint
}

// NewBone creates a bone between two locations. The distance between them
// becomes the bone's immutable length. The bone starts with an unconstrained
// ball joint.
func NewBone(start, end r3.Vector) (*Bone, error) {
	length := start.Distance(end)
	if length < minBoneLength {
		return nil, errors.Wrap(ErrZeroLengthBone, "bone endpoints coincide")
	}
	return &Bone{start: start, end: end, length: length, joint: NewBallJoint()}, nil
}

// NewBoneFromDirection creates a bone starting at start and extending length
// units along direction.
func NewBoneFromDirection(start, direction r3.Vector, length float64) (*Bone, error) {
	if direction.Norm2() == 0 {
		return nil, ErrZeroLengthDirection
	}
	if length < minBoneLength {
		return nil, errors.Wrapf(ErrZeroLengthBone, "length %g", length)
	}
	d := direction.Normalize()
	return &Bone{start: start, end: start.Add(d.Mul(length)), length: length, joint: NewBallJoint()}, nil
}

// StartLocation returns the bone's start point.
func (b *Bone) StartLocation() r3.Vector { return b.start }

// EndLocation returns the bone's end point.
func (b *Bone) EndLocation() r3.Vector { return b.end }

// Length returns the bone's rigid length, fixed at construction.
func (b *Bone) Length() float64 { return b.length }

// DirectionUV returns the unit vector from the bone's start to its end.
func (b *Bone) DirectionUV() r3.Vector { return b.end.Sub(b.start).Normalize() }

// Joint returns the bone's owned joint.
func (b *Bone) Joint() *Joint { return b.joint }

// SetJoint replaces the bone's joint. A nil joint resets the bone to an
// unconstrained ball joint.
func (b *Bone) SetJoint(j *Joint) {
	if j == nil {
		j = NewBallJoint()
	}
	b.joint = j
}

// Name returns the bone's cosmetic name.
func (b *Bone) Name() string { return b.name }

// SetName sets the bone's cosmetic name; it has no effect on solving.
func (b *Bone) SetName(name string) { b.name = name }

// Translate moves both endpoints by delta, preserving length and direction.
func (b *Bone) Translate(delta r3.Vector) {
	b.start = b.start.Add(delta)
	b.end = b.end.Add(delta)
}

// reposition assigns both endpoints at once. Callers are responsible for
// keeping the distance between them equal to the bone's length, which the
// reaching passes guarantee by rescaling unit directions.
func (b *Bone) reposition(start, end r3.Vector) {
	b.start = start
	b.end = end
}
