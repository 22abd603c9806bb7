package geometry

import (
	"github.com/driftmap/cartographer/internal/models"
)

// DefaultAmplification is the standard drift exaggeration factor.
const DefaultAmplification = 3.0

// AmplifyDrift linearly extrapolates each AI position away from its human
// counterpart along the displacement vector: human + factor*(ai - human).
// Factor 1 is identity, above 1 exaggerates drift, in [0,1) shrinks it; the
// statistical meaning of the drift is unchanged either way. Iterates exactly
// over alignedHuman's keys; ids present only in alignedAI are ignored
// (alignment already restricted both sides to the shared set).
func AmplifyDrift(alignedHuman, alignedAI map[string]models.Vec3, factor float64) map[string]models.Vec3 {
	amplified := make(map[string]models.Vec3, len(alignedHuman))

	for id, h := range alignedHuman {
		a, ok := alignedAI[id]
		if !ok {
			continue
		}

		amplified[id] = models.Vec3{
			h[0] + factor*(a[0]-h[0]),
			h[1] + factor*(a[1]-h[1]),
			h[2] + factor*(a[2]-h[2]),
		}
	}

	return amplified
}
