package fabrik_test

import (
	"fmt"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"

	"github.com/fabrik3d/fabrik"
)

// Build a three-bone arm anchored at the origin and solve it for a reachable
// target.
func Example() {
	logger := golog.NewDevelopmentLogger("fabrik")
	arm, err := fabrik.NewChainBuilder("arm", logger).
		StartBone(r3.Vector{}, r3.Vector{X: 10}).
		Bone(r3.Vector{X: 1}, 10).
		Bone(r3.Vector{X: 1}, 10).
		Build()
	if err != nil {
		logger.Fatal(err)
	}

	dist, err := arm.SolveForTarget(r3.Vector{X: 15, Y: 10, Z: 5})
	if err != nil {
		logger.Fatal(err)
	}
	fmt.Printf("reached target: %t\n", dist <= fabrik.DefaultSolveDistanceThreshold)
	// Output: reached target: true
}
