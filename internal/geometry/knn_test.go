package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKNNGraph(t *testing.T) {
	t.Run("returns exact top-k by cosine distance", func(t *testing.T) {
		// Axis-aligned and diagonal vectors with known pairwise cosines:
		// a=(1,0,0), b=(1,1,0)/sqrt2, c=(0,1,0). dist(a,b)=1-1/sqrt2 ~ 0.293,
		// dist(a,c)=1, dist(b,c)=1-1/sqrt2.
		vectors := map[string][]float32{
			"a": {1, 0, 0},
			"b": {1, 1, 0},
			"c": {0, 1, 0},
		}

		edges := BuildKNNGraph(vectors, 2)
		require.Len(t, edges, 6)

		bySource := map[string][]string{}
		for _, e := range edges {
			bySource[e.Source] = append(bySource[e.Source], e.Target)
		}

		// Nearest neighbor of both a and c is b; edges are sorted ascending
		// by distance per source.
		assert.Equal(t, []string{"b", "c"}, bySource["a"])
		assert.Equal(t, []string{"b", "a"}, bySource["c"])
	})

	t.Run("edges sorted ascending by distance per source", func(t *testing.T) {
		vectors := map[string][]float32{
			"a": {1, 0},
			"b": {0.9, 0.1},
			"c": {0, 1},
			"d": {0.5, 0.5},
		}

		edges := BuildKNNGraph(vectors, 3)

		var prev float64
		for _, e := range edges {
			if e.Source != "a" {
				continue
			}

			require.GreaterOrEqual(t, e.Distance, prev)
			prev = e.Distance
		}
	})

	t.Run("zero-norm vectors excluded as source and target", func(t *testing.T) {
		vectors := map[string][]float32{
			"a":    {1, 0},
			"b":    {0, 1},
			"zero": {0, 0},
		}

		edges := BuildKNNGraph(vectors, 5)

		for _, e := range edges {
			assert.NotEqual(t, "zero", e.Source)
			assert.NotEqual(t, "zero", e.Target)
		}

		// Only a<->b remain.
		assert.Len(t, edges, 2)
	})

	t.Run("vocabulary smaller than k yields fewer edges", func(t *testing.T) {
		vectors := map[string][]float32{
			"a": {1, 0},
			"b": {0, 1},
		}

		edges := BuildKNNGraph(vectors, 8)
		assert.Len(t, edges, 2)
	})

	t.Run("non-positive k yields no edges", func(t *testing.T) {
		assert.Nil(t, BuildKNNGraph(map[string][]float32{"a": {1}}, 0))
	})

	t.Run("deterministic across runs", func(t *testing.T) {
		vectors := map[string][]float32{
			"w": {0.3, 0.7, 0.1},
			"x": {0.2, 0.2, 0.9},
			"y": {0.8, 0.1, 0.4},
			"z": {0.5, 0.5, 0.5},
		}

		assert.Equal(t, BuildKNNGraph(vectors, 2), BuildKNNGraph(vectors, 2))
	})
}
