package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmap/cartographer/internal/models"
)

func springTestInputs() (map[string][]float32, []models.RelationshipEdge) {
	vectors := map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0.9, 0.1, 0},
		"gamma": {0, 1, 0},
		"delta": {0, 0.9, 0.2},
		"eps":   {0.5, 0.5, 0.5},
	}

	rels := []models.RelationshipEdge{
		{Source: "alpha", Target: "beta", Distance: 0.05},
		{Source: "beta", Target: "eps", Distance: 0.4},
		{Source: "gamma", Target: "delta", Distance: 0.08},
		{Source: "delta", Target: "eps", Distance: 0.35},
		{Source: "alpha", Target: "gamma", Distance: 0.9},
	}

	return vectors, rels
}

func TestLayout3D(t *testing.T) {
	t.Run("deterministic for a fixed seed", func(t *testing.T) {
		vectors, rels := springTestInputs()
		cfg := SpringConfig{SpringK: 2.0, Iterations: 50, Seed: 42}

		first := Layout3D(vectors, rels, cfg)
		second := Layout3D(vectors, rels, cfg)

		require.Equal(t, len(first), len(second))

		for name, p := range first {
			q := second[name]
			for d := 0; d < 3; d++ {
				assert.InDelta(t, p[d], q[d], 1e-9, "node %s dim %d", name, d)
			}
		}
	})

	t.Run("different seeds give different layouts", func(t *testing.T) {
		vectors, rels := springTestInputs()

		a := Layout3D(vectors, rels, SpringConfig{SpringK: 2.0, Iterations: 50, Seed: 42})
		b := Layout3D(vectors, rels, SpringConfig{SpringK: 2.0, Iterations: 50, Seed: 43})

		var moved bool
		for name := range a {
			if a[name] != b[name] {
				moved = true
				break
			}
		}

		assert.True(t, moved, "expected seed change to move at least one node")
	})

	t.Run("coordinates span the viewing range", func(t *testing.T) {
		vectors, rels := springTestInputs()
		coords := Layout3D(vectors, rels, SpringConfig{SpringK: 2.0, Iterations: 50, Seed: 42})

		// The layout is rescaled so the widest coordinate hits the x10 bound.
		maxAbs := 0.0
		for _, p := range coords {
			for d := 0; d < 3; d++ {
				if a := math.Abs(p[d]); a > maxAbs {
					maxAbs = a
				}
			}
		}

		assert.InDelta(t, 10.0, maxAbs, 1e-6)
	})

	t.Run("edges referencing unknown concepts are skipped", func(t *testing.T) {
		vectors := map[string][]float32{
			"a": {1, 0},
			"b": {0, 1},
		}

		rels := []models.RelationshipEdge{
			{Source: "a", Target: "b", Distance: 0.2},
			{Source: "a", Target: "ghost", Distance: 0.1},
			{Source: "ghost", Target: "b", Distance: 0.1},
		}

		coords := Layout3D(vectors, rels, DefaultSpringConfig())

		assert.Len(t, coords, 2)
		assert.NotContains(t, coords, "ghost")
	})

	t.Run("concepts with no edges are omitted", func(t *testing.T) {
		vectors := map[string][]float32{
			"a":        {1, 0},
			"b":        {0, 1},
			"isolated": {1, 1},
		}

		rels := []models.RelationshipEdge{{Source: "a", Target: "b", Distance: 0.2}}

		coords := Layout3D(vectors, rels, DefaultSpringConfig())
		assert.NotContains(t, coords, "isolated")
	})

	t.Run("empty relationship list yields empty layout", func(t *testing.T) {
		coords := Layout3D(map[string][]float32{"a": {1}}, nil, DefaultSpringConfig())
		assert.Empty(t, coords)
	})
}

func TestEdgeWeight(t *testing.T) {
	// The quadratic falloff with 0.1 offset is load-bearing for parity with
	// stored layouts.
	assert.InDelta(t, 100.0, edgeWeight(0), 1e-9)
	assert.InDelta(t, 1.0/(1.1*1.1), edgeWeight(1), 1e-9)
	assert.Greater(t, edgeWeight(0.1), edgeWeight(0.2))
}
