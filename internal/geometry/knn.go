// Package geometry implements the layout and alignment core: k-NN graph
// construction, seeded 3D spring embedding, manifold projection, rigid
// Procrustes alignment, and drift amplification. Everything here is a pure
// function of its inputs; callers own all I/O and caching.
package geometry

import (
	"sort"

	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/pkg/embeddings"
)

// BuildKNNGraph computes the k nearest neighbors of every concept by cosine
// distance and returns them as directed (source, target, distance) edges
// sorted ascending by distance per source. Zero-norm vectors are excluded
// from both source and target roles. Edge (A,B) does not imply (B,A);
// downstream graph construction merges parallel edges.
//
// Brute force O(N^2) over the vocabulary. Fine at hundreds of concepts,
// which is the target scale.
func BuildKNNGraph(vectors map[string][]float32, k int) []models.RelationshipEdge {
	if k <= 0 {
		return nil
	}

	// Deterministic iteration order regardless of map layout.
	names := make([]string, 0, len(vectors))
	for name := range vectors {
		if embeddings.Norm(vectors[name]) == 0 {
			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)

	out := make([]models.RelationshipEdge, 0, len(names)*k)

	candidates := make([]models.ConceptNeighbor, 0, len(names))

	for _, name := range names {
		vec := vectors[name]
		candidates = candidates[:0]

		for _, other := range names {
			if other == name {
				continue
			}

			candidates = append(candidates, models.ConceptNeighbor{
				Name:     other,
				Distance: embeddings.CosineDistance(vec, vectors[other]),
			})
		}

		// Ties break on name so two runs produce identical edge lists.
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].Distance != candidates[j].Distance {
				return candidates[i].Distance < candidates[j].Distance
			}

			return candidates[i].Name < candidates[j].Name
		})

		limit := k
		if limit > len(candidates) {
			limit = len(candidates)
		}

		for _, c := range candidates[:limit] {
			out = append(out, models.RelationshipEdge{Source: name, Target: c.Name, Distance: c.Distance})
		}
	}

	return out
}
