package fabrik

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// BoneConnectionPoint selects which endpoint of a parent bone a child chain
// attaches to.
type BoneConnectionPoint int

const (
	// ConnectAtStart anchors the child at the parent bone's start location.
	ConnectAtStart BoneConnectionPoint = iota
	// ConnectAtEnd anchors the child at the parent bone's end location.
	ConnectAtEnd
)

// connection anchors a child chain's base to an endpoint of a bone in an
// earlier-registered chain. Connections are plain index tuples resolved by
// lookup each solve; neither bones nor chains hold back-references.
type connection struct {
	parentChain int
	parentBone  int
	point       BoneConnectionPoint
}

// Structure is a hierarchy of chains connected at bone endpoints. Chains are
// solved once per call in registration order, so a parent's pose is always
// fresh when its children resolve their bases. A structure is not safe for
// concurrent use.
type Structure struct {
	name   string
	logger golog.Logger

	chains      []*Chain
	connections map[int]connection
}

// NewStructure returns an empty structure.
func NewStructure(name string, logger golog.Logger) *Structure {
	return &Structure{name: name, logger: logger, connections: map[int]connection{}}
}

// Name returns the structure's name.
func (s *Structure) Name() string { return s.name }

// AddChain registers a chain and returns its index within the structure.
func (s *Structure) AddChain(c *Chain) int {
	s.chains = append(s.chains, c)
	return len(s.chains) - 1
}

// ChainCount returns the number of registered chains.
func (s *Structure) ChainCount() int { return len(s.chains) }

// Chain returns the chain at the given index, or nil if the index is out of
// range.
func (s *Structure) Chain(i int) *Chain {
	if i < 0 || i >= len(s.chains) {
		return nil
	}
	return s.chains[i]
}

// Connect anchors the base of the child chain to an endpoint of a bone in an
// earlier-registered chain. The child's base tracks that endpoint on every
// subsequent solve, and the child switches to fixed-base mode. Connecting to
// a later-registered chain is rejected: its pose would be stale when the
// child solves.
func (s *Structure) Connect(childChain, parentChain, parentBone int, point BoneConnectionPoint) error {
	if childChain < 0 || childChain >= len(s.chains) {
		return errors.Wrapf(ErrChainIndexOutOfRange, "child chain %d", childChain)
	}
	if parentChain < 0 || parentChain >= len(s.chains) {
		return errors.Wrapf(ErrChainIndexOutOfRange, "parent chain %d", parentChain)
	}
	if parentChain >= childChain {
		return errors.Wrapf(ErrConnectionOrder, "chain %d onto chain %d", childChain, parentChain)
	}
	if parentBone < 0 || parentBone >= s.chains[parentChain].BoneCount() {
		return errors.Wrapf(ErrBoneIndexOutOfRange, "bone %d of chain %d", parentBone, parentChain)
	}
	if _, ok := s.connections[childChain]; ok {
		return errors.Wrapf(ErrAlreadyConnected, "chain %d", childChain)
	}
	s.connections[childChain] = connection{parentChain: parentChain, parentBone: parentBone, point: point}
	s.chains[childChain].setConnected()
	return nil
}

// SolveForTarget solves every chain once, in registration order. A connected
// chain is first snapped onto its parent's current bone endpoint and has any
// LOCAL_* basebone constraint re-resolved in the parent bone's frame. Chains
// in embedded-target mode solve for their own stored target; all others use
// the structure-wide target. Cross-chain feedback within a single call is not
// modeled: each chain converges internally, children simply follow.
func (s *Structure) SolveForTarget(target r3.Vector) error {
	for i, c := range s.chains {
		if conn, ok := s.connections[i]; ok {
			parent := s.chains[conn.parentChain].Bone(conn.parentBone)
			loc := parent.EndLocation()
			if conn.point == ConnectAtStart {
				loc = parent.StartLocation()
			}
			c.snapToConnection(loc)
			if c.baseboneConstraintType == BaseboneLocalRotor || c.baseboneConstraintType == BaseboneLocalHinge {
				c.resolveRelativeBasebone(parent.DirectionUV())
			}
		}
		var err error
		if c.EmbeddedTargetMode() {
			_, err = c.SolveForEmbeddedTarget()
		} else {
			_, err = c.SolveForTarget(target)
		}
		if err != nil {
			return errors.Wrapf(err, "structure %q: chain %d", s.name, i)
		}
	}
	return nil
}
