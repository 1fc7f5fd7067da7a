package fabrik

import (
	"fmt"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ChainBuilder accumulates bones and configuration for a chain and defers
// validation to Build, so every configuration fault is reported together
// before the chain can be solved. Builders produce standalone chains; LOCAL_*
// basebone constraints need a structure connection and are rejected here.
type ChainBuilder struct {
	chain *Chain
	errs  error

	pendingBaseboneType BaseboneConstraintType
	pendingBaseboneUV   r3.Vector
	hasPendingBasebone  bool
}

// NewChainBuilder starts a builder for a chain with the given name and
// logger.
func NewChainBuilder(name string, logger golog.Logger) *ChainBuilder {
	return &ChainBuilder{chain: NewChain(name, logger)}
}

func (cb *ChainBuilder) fail(err error, context string) *ChainBuilder {
	cb.errs = multierr.Append(cb.errs, errors.Wrap(err, context))
	return cb
}

// StartBone sets the chain's base bone from explicit endpoints. It must be
// the first bone added.
func (cb *ChainBuilder) StartBone(start, end r3.Vector) *ChainBuilder {
	if cb.chain.BoneCount() > 0 {
		return cb.fail(errors.New("start bone already set"), "start bone")
	}
	bone, err := NewBone(start, end)
	if err != nil {
		return cb.fail(err, "start bone")
	}
	if err := cb.chain.AddBone(bone); err != nil {
		return cb.fail(err, "start bone")
	}
	return cb
}

// Bone appends an unconstrained bone extending from the previous bone's end.
func (cb *ChainBuilder) Bone(direction r3.Vector, length float64) *ChainBuilder {
	if err := cb.chain.AddConsecutiveBone(direction, length); err != nil {
		return cb.fail(err, boneContext(cb.chain.BoneCount()))
	}
	return cb
}

// RotorBone appends a bone limited to a cone of the given half-angle around
// the previous bone's direction.
func (cb *ChainBuilder) RotorBone(direction r3.Vector, length, rotorConstraintDegs float64) *ChainBuilder {
	if err := cb.chain.AddConsecutiveRotorConstrainedBone(direction, length, rotorConstraintDegs); err != nil {
		return cb.fail(err, boneContext(cb.chain.BoneCount()))
	}
	return cb
}

// HingedBone appends a bone carrying the given hinge joint.
func (cb *ChainBuilder) HingedBone(direction r3.Vector, length float64, hinge *Joint) *ChainBuilder {
	if err := cb.chain.AddConsecutiveHingedBone(direction, length, hinge); err != nil {
		return cb.fail(err, boneContext(cb.chain.BoneCount()))
	}
	return cb
}

// BaseboneConstraint records a basebone constraint to be validated and
// applied at Build, once all bones are present.
func (cb *ChainBuilder) BaseboneConstraint(t BaseboneConstraintType, constraintUV r3.Vector) *ChainBuilder {
	if t == BaseboneLocalRotor || t == BaseboneLocalHinge {
		return cb.fail(ErrNotConnected, "basebone constraint")
	}
	cb.pendingBaseboneType = t
	cb.pendingBaseboneUV = constraintUV
	cb.hasPendingBasebone = true
	return cb
}

// FixedBase pins or frees the chain's base.
func (cb *ChainBuilder) FixedBase(fixed bool) *ChainBuilder {
	cb.chain.SetFixedBaseMode(fixed)
	return cb
}

// EmbeddedTarget enables embedded-target mode with the given initial target.
func (cb *ChainBuilder) EmbeddedTarget(target r3.Vector) *ChainBuilder {
	cb.chain.SetEmbeddedTargetMode(true)
	cb.chain.UpdateEmbeddedTarget(target)
	return cb
}

// Iterations sets the chain's min and max iteration bounds.
func (cb *ChainBuilder) Iterations(minIterations, maxIterations int) *ChainBuilder {
	if minIterations < 1 || maxIterations < minIterations {
		return cb.fail(ErrInvalidIterations, "iterations")
	}
	cb.chain.minIterations = minIterations
	cb.chain.maxIterations = maxIterations
	return cb
}

// Threshold sets the chain's solve distance threshold.
func (cb *ChainBuilder) Threshold(d float64) *ChainBuilder {
	if err := cb.chain.SetSolveDistanceThreshold(d); err != nil {
		return cb.fail(err, "threshold")
	}
	return cb
}

// Build validates the accumulated configuration and returns the chain. On
// error every collected fault is reported and no solvable chain is produced.
func (cb *ChainBuilder) Build() (*Chain, error) {
	errs := cb.errs
	if cb.chain.BoneCount() == 0 {
		errs = multierr.Append(errs, ErrNoBones)
	}
	if cb.hasPendingBasebone {
		if err := cb.chain.SetBaseboneConstraint(cb.pendingBaseboneType, cb.pendingBaseboneUV); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return nil, errors.Wrapf(errs, "building chain %q", cb.chain.Name())
	}
	return cb.chain, nil
}

func boneContext(count int) string {
	return fmt.Sprintf("bone %d", count)
}
