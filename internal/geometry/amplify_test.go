package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftmap/cartographer/internal/models"
)

func TestAmplifyDrift(t *testing.T) {
	human := map[string]models.Vec3{
		"a": {0, 0, 0},
		"b": {1, 2, 3},
	}
	ai := map[string]models.Vec3{
		"a": {1, 0, -1},
		"b": {1, 2, 3},
		"c": {9, 9, 9}, // no human counterpart
	}

	t.Run("scales displacement linearly from the human anchor", func(t *testing.T) {
		out := AmplifyDrift(human, ai, 3.0)

		assert.Equal(t, models.Vec3{3, 0, -3}, out["a"])
		// Zero displacement stays put regardless of the factor.
		assert.Equal(t, models.Vec3{1, 2, 3}, out["b"])
	})

	t.Run("factor 1 reproduces the AI positions", func(t *testing.T) {
		out := AmplifyDrift(human, ai, 1.0)

		assert.Equal(t, ai["a"], out["a"])
		assert.Equal(t, ai["b"], out["b"])
	})

	t.Run("ignores AI ids without a human position", func(t *testing.T) {
		out := AmplifyDrift(human, ai, DefaultAmplification)

		assert.Len(t, out, 2)
		assert.NotContains(t, out, "c")
	})
}
