package colonization

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxygene76/fractaltree/pkg/geometry"
)

const tolerance = 1e-9

func upRoot(x, y, z float64) TreeNode {
	return NewRootNode(geometry.NewVector(x, y, z), geometry.NewVector(0, 0, 1))
}

// fixedOptions places attractors directly instead of sampling
func fixedOptions(rmin, rmax float64, points ...*geometry.Vector) Options {
	attractors := make([]geometry.Vector, 0, len(points))
	for _, p := range points {
		attractors = append(attractors, *p)
	}
	return Options{RMin: rmin, RMax: rmax, Attractors: attractors}
}

// symmetricTree has two attractors mirrored around the z axis, so every
// node grows straight up and no attractor is ever reached
func symmetricTree(t *testing.T) *FractalTree {
	t.Helper()
	tree, err := New(upRoot(0, 0, 0), fixedOptions(0.01, 3,
		geometry.NewVector(1, 0, 1),
		geometry.NewVector(-1, 0, 1),
	))
	require.NoError(t, err)
	return tree
}

func boxTree(t *testing.T, n int, seed uint64) *FractalTree {
	t.Helper()
	tree, err := New(upRoot(0, 0, -3), Options{
		Envelope:     BoxEnvelope(1),
		N:            n,
		RMin:         0.04,
		RMax:         4,
		MaxStemSteps: 100,
		Rand:         NewRandomSource(seed),
	})
	require.NoError(t, err)
	return tree
}
