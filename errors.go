package fabrik

import "github.com/pkg/errors"

// Configuration errors are detected eagerly, at setup time; a solve call
// never begins mutating bone locations against a misconfigured chain.
var (
	// ErrNoBones is returned when an operation requires a chain with at least one bone.
	ErrNoBones = errors.New("chain contains no bones")

	// ErrZeroLengthBone is returned when bone endpoints coincide or a non-positive length is given.
	ErrZeroLengthBone = errors.New("bone length must be positive")

	// ErrZeroLengthDirection is returned when a direction vector has zero length.
	ErrZeroLengthDirection = errors.New("direction vector has zero length")

	// ErrZeroLengthAxis is returned when a hinge axis has zero length.
	ErrZeroLengthAxis = errors.New("hinge axis has zero length")

	// ErrAxesNotPerpendicular is returned when hinge rotation and reference axes are not mutually perpendicular.
	ErrAxesNotPerpendicular = errors.New("hinge rotation and reference axes must be mutually perpendicular")

	// ErrConstraintOutOfRange is returned when a constraint angle lies outside [0, 180] degrees.
	ErrConstraintOutOfRange = errors.New("constraint angle must be within [0, 180] degrees")

	// ErrNotConnected is returned when a local basebone constraint is used on a chain
	// that is not connected to a parent bone.
	ErrNotConnected = errors.New("local basebone constraints require a parent connection")

	// ErrBaseboneJointMismatch is returned when a basebone constraint type does not
	// match the base bone's joint type.
	ErrBaseboneJointMismatch = errors.New("basebone constraint type does not match the base bone's joint")

	// ErrEmbeddedTargetDisabled is returned by SolveForEmbeddedTarget when embedded
	// target mode is off.
	ErrEmbeddedTargetDisabled = errors.New("embedded target mode is not enabled")

	// ErrBoneIndexOutOfRange is returned when a bone index does not exist.
	ErrBoneIndexOutOfRange = errors.New("bone index out of range")

	// ErrChainIndexOutOfRange is returned when a chain index does not exist.
	ErrChainIndexOutOfRange = errors.New("chain index out of range")

	// ErrConnectionOrder is returned when a connection references a chain registered
	// at or after the child; parents must be solved before their children.
	ErrConnectionOrder = errors.New("connections may only reference earlier-registered chains")

	// ErrAlreadyConnected is returned when a chain already has a connection entry.
	ErrAlreadyConnected = errors.New("chain is already connected")

	// ErrInvalidIterations is returned when iteration bounds do not satisfy max >= min >= 1.
	ErrInvalidIterations = errors.New("iteration bounds must satisfy max >= min >= 1")

	// ErrInvalidThreshold is returned when the solve distance threshold is not positive.
	ErrInvalidThreshold = errors.New("solve distance threshold must be positive")
)
