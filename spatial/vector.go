// Package spatial provides the direction-vector rotation and projection
// operations the FABRIK solver needs, layered over r3 vectors and gonum
// quaternions. All inputs documented as unit vectors must be pre-normalized
// by the caller; angles are radians throughout.
package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Vectors with a squared norm below this are treated as zero.
const zeroTolerance = 1e-12

// RotationQuat returns the unit quaternion rotating by angle about the given
// unit axis.
func RotationQuat(axis r3.Vector, angle float64) quat.Number {
	half := 0.5 * angle
	s := math.Sin(half)
	return quat.Number{Real: math.Cos(half), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

// RotateAboutAxis rotates v by angle about the given unit axis, in the
// right-hand sense.
func RotateAboutAxis(v, axis r3.Vector, angle float64) r3.Vector {
	q := RotationQuat(axis, angle)
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// RotateTowards rotates the unit vector from toward the unit vector to,
// stopping at maxAngle. If the angle between the two is already within
// maxAngle, to is returned unchanged. When from and to are antiparallel the
// rotation plane is undefined and a deterministic perpendicular to from is
// used as the rotation axis instead.
func RotateTowards(from, to r3.Vector, maxAngle float64) r3.Vector {
	if float64(from.Angle(to)) <= maxAngle {
		return to
	}
	axis := from.Cross(to)
	if axis.Norm2() < zeroTolerance {
		axis = Perpendicular(from)
	}
	return RotateAboutAxis(from, axis.Normalize(), maxAngle)
}

// Perpendicular returns a unit vector perpendicular to v, chosen by a fixed
// rule so that degenerate rotations resolve the same way every time.
func Perpendicular(v r3.Vector) r3.Vector {
	if math.Abs(v.Y) < 0.99 {
		return v.Cross(r3.Vector{Y: 1}).Normalize()
	}
	return v.Cross(r3.Vector{X: 1}).Normalize()
}

// ProjectOntoPlane projects v onto the plane through the origin with the
// given unit normal and normalizes the result. ok is false when v is parallel
// to the normal, leaving no in-plane component to normalize.
func ProjectOntoPlane(v, normal r3.Vector) (proj r3.Vector, ok bool) {
	p := v.Sub(normal.Mul(v.Dot(normal)))
	if p.Norm2() < zeroTolerance {
		return r3.Vector{}, false
	}
	return p.Normalize(), true
}

// SignedAngleAround measures the angle from one vector to another around the
// given unit axis, positive in the right-hand sense. The result is in
// (-pi, pi].
func SignedAngleAround(from, to, axis r3.Vector) float64 {
	return math.Atan2(from.Cross(to).Dot(axis), from.Dot(to))
}

// OrthonormalBasis builds a right-handed orthonormal frame whose Z axis is
// the given unit direction. The X axis is derived from the world-up
// reference, falling back to world-X when the direction is nearly vertical,
// so the frame is deterministic for every input.
func OrthonormalBasis(dir r3.Vector) (x, y, z r3.Vector) {
	z = dir
	up := r3.Vector{Y: 1}
	if math.Abs(dir.Y) > 0.99 {
		up = r3.Vector{X: 1}
	}
	x = up.Cross(z).Normalize()
	y = z.Cross(x)
	return x, y, z
}

// ToWorld expresses local, a vector given in the frame of the unit direction
// dir (Z axis along dir, axes per OrthonormalBasis), in world coordinates.
func ToWorld(local, dir r3.Vector) r3.Vector {
	x, y, z := OrthonormalBasis(dir)
	return x.Mul(local.X).Add(y.Mul(local.Y)).Add(z.Mul(local.Z))
}
