package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmap/cartographer/internal/drifterrors"
)

// manifoldFixture builds two well-separated Gaussian blobs in 8 dimensions.
func manifoldFixture(n int) [][]float32 {
	rng := rand.New(rand.NewSource(7))
	matrix := make([][]float32, n)

	for i := range matrix {
		row := make([]float32, 8)
		for d := range row {
			row[d] = float32(rng.NormFloat64() * 0.1)
		}

		// Two clusters offset along different axes.
		if i < n/2 {
			row[0] += 5
		} else {
			row[3] += 5
		}

		matrix[i] = row
	}

	return matrix
}

func TestManifoldProject(t *testing.T) {
	t.Run("same seed reproduces the embedding", func(t *testing.T) {
		matrix := manifoldFixture(20)
		cfg := DefaultManifoldConfig(42)
		cfg.Epochs = 50

		first, err := ManifoldProject(matrix, cfg)
		require.NoError(t, err)

		second, err := ManifoldProject(matrix, cfg)
		require.NoError(t, err)

		require.Len(t, first, 20)
		for i := range first {
			require.Len(t, first[i], 3)
			for d := range first[i] {
				assert.InDelta(t, first[i][d], second[i][d], 1e-12)
				assert.False(t, math.IsNaN(first[i][d]))
			}
		}
	})

	t.Run("different seeds diverge", func(t *testing.T) {
		matrix := manifoldFixture(20)
		cfgA := DefaultManifoldConfig(42)
		cfgA.Epochs = 50
		cfgB := DefaultManifoldConfig(43)
		cfgB.Epochs = 50

		a, err := ManifoldProject(matrix, cfgA)
		require.NoError(t, err)

		b, err := ManifoldProject(matrix, cfgB)
		require.NoError(t, err)

		var diff float64
		for i := range a {
			for d := range a[i] {
				diff += math.Abs(a[i][d] - b[i][d])
			}
		}
		assert.Greater(t, diff, 1e-6)
	})

	t.Run("separated clusters stay separated", func(t *testing.T) {
		matrix := manifoldFixture(20)
		cfg := DefaultManifoldConfig(42)

		out, err := ManifoldProject(matrix, cfg)
		require.NoError(t, err)

		centroid := func(rows [][]float64) [3]float64 {
			var c [3]float64
			for _, r := range rows {
				for d := 0; d < 3; d++ {
					c[d] += r[d] / float64(len(rows))
				}
			}
			return c
		}

		a, b := centroid(out[:10]), centroid(out[10:])

		var between float64
		for d := 0; d < 3; d++ {
			between += (a[d] - b[d]) * (a[d] - b[d])
		}

		// Average within-cluster spread about each centroid.
		var within float64
		for i, r := range out {
			c := a
			if i >= 10 {
				c = b
			}
			for d := 0; d < 3; d++ {
				within += (r[d] - c[d]) * (r[d] - c[d])
			}
		}
		within /= float64(len(out))

		assert.Greater(t, between, within, "cluster centroids should be farther apart than the in-cluster spread")
	})

	t.Run("clamps neighbors to the sample count", func(t *testing.T) {
		matrix := manifoldFixture(8)
		cfg := DefaultManifoldConfig(42) // Neighbors=15 > n-1
		cfg.Epochs = 20

		out, err := ManifoldProject(matrix, cfg)
		require.NoError(t, err)
		assert.Len(t, out, 8)
	})

	t.Run("empty matrix fails validation", func(t *testing.T) {
		_, err := ManifoldProject(nil, DefaultManifoldConfig(42))
		require.Error(t, err)
		assert.ErrorIs(t, err, drifterrors.ErrValidation)
	})

	t.Run("too few samples fails validation", func(t *testing.T) {
		matrix := manifoldFixture(20)[:3] // n == Components
		_, err := ManifoldProject(matrix, DefaultManifoldConfig(42))
		require.Error(t, err)
		assert.ErrorIs(t, err, drifterrors.ErrValidation)
	})
}
