package geometry

import (
	"math"
	"math/rand"
	"sort"

	"github.com/driftmap/cartographer/internal/models"
)

// SpringConfig holds the hyperparameters of one spring-embedding run.
// Runs comparing two spaces must use identical SpringK and Iterations;
// only the seed may differ between the two runs.
type SpringConfig struct {
	SpringK    float64 // optimal inter-node spacing; higher spreads the layout
	Iterations int
	Seed       int64
}

// DefaultSpringConfig returns the standard spring parameters.
func DefaultSpringConfig() SpringConfig {
	return SpringConfig{SpringK: 2.0, Iterations: 150, Seed: 42}
}

// layoutScale expands the unit-cube layout to the renderer's viewing range.
const layoutScale = 10.0

// edgeWeight converts a relationship distance into a spring attraction weight.
// The quadratic falloff with a 0.1 offset makes near neighbors hold tight while
// distant ones barely pull. This exact transform is load-bearing for output
// parity with stored layouts; do not change the exponent or the offset.
func edgeWeight(distance float64) float64 {
	return 1.0 / ((distance + 0.1) * (distance + 0.1))
}

// Layout3D computes a deterministic 3D force-directed embedding of the
// concepts referenced by rels. Edges whose source or target has no vector in
// the space are skipped; parallel and reverse-direction duplicates collapse to
// one undirected edge. Concepts that end up with no edges at all are omitted
// from the result. Identical inputs and config reproduce identical coordinates.
func Layout3D(vectors map[string][]float32, rels []models.RelationshipEdge, cfg SpringConfig) map[string]models.Vec3 {
	type edgeKey struct{ a, b string }

	weights := make(map[edgeKey]float64)
	nodeSet := make(map[string]struct{})

	for _, rel := range rels {
		if _, ok := vectors[rel.Source]; !ok {
			continue
		}

		if _, ok := vectors[rel.Target]; !ok {
			continue
		}

		if rel.Source == rel.Target {
			continue
		}

		a, b := rel.Source, rel.Target
		if b < a {
			a, b = b, a
		}

		weights[edgeKey{a, b}] = edgeWeight(rel.Distance)
		nodeSet[a] = struct{}{}
		nodeSet[b] = struct{}{}
	}

	if len(nodeSet) == 0 {
		return map[string]models.Vec3{}
	}

	names := make([]string, 0, len(nodeSet))
	for name := range nodeSet {
		names = append(names, name)
	}

	sort.Strings(names)

	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	n := len(names)

	// Dense symmetric weight matrix; vocabularies stay in the hundreds.
	adj := make([][]float64, n)
	for i := range adj {
		adj[i] = make([]float64, n)
	}

	for key, w := range weights {
		i, j := index[key.a], index[key.b]
		adj[i][j] = w
		adj[j][i] = w
	}

	pos := springIterate(adj, cfg)

	out := make(map[string]models.Vec3, n)
	for i, name := range names {
		out[name] = models.Vec3{
			pos[i][0] * layoutScale,
			pos[i][1] * layoutScale,
			pos[i][2] * layoutScale,
		}
	}

	return out
}

// springIterate runs the Fruchterman-Reingold iteration in 3 dimensions:
// k^2/d repulsion between every pair, w*d^2/k attraction along edges, with a
// linearly cooling temperature cap on per-step displacement. The result is
// re-centered and rescaled so the widest coordinate spans [-1, 1].
func springIterate(adj [][]float64, cfg SpringConfig) [][3]float64 {
	n := len(adj)
	rng := rand.New(rand.NewSource(cfg.Seed))

	pos := make([][3]float64, n)
	for i := range pos {
		for d := 0; d < 3; d++ {
			pos[i][d] = rng.Float64()
		}
	}

	if n == 1 {
		return [][3]float64{{0, 0, 0}}
	}

	k := cfg.SpringK
	if k <= 0 {
		k = math.Sqrt(1.0 / float64(n))
	}

	// Initial temperature: a tenth of the widest axis extent of the start
	// positions, cooled linearly to zero.
	temp := 0.1 * maxExtent(pos)
	cooling := temp / float64(cfg.Iterations+1)

	disp := make([][3]float64, n)

	for iter := 0; iter < cfg.Iterations; iter++ {
		for i := range disp {
			disp[i] = [3]float64{}
		}

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}

				var delta [3]float64
				var distSq float64
				for d := 0; d < 3; d++ {
					delta[d] = pos[i][d] - pos[j][d]
					distSq += delta[d] * delta[d]
				}

				dist := math.Sqrt(distSq)
				if dist < 0.01 {
					dist = 0.01
				}

				// Repulsion from every node, attraction along weighted edges.
				force := k*k/(dist*dist) - adj[i][j]*dist/k

				for d := 0; d < 3; d++ {
					disp[i][d] += delta[d] * force
				}
			}
		}

		for i := 0; i < n; i++ {
			length := math.Sqrt(disp[i][0]*disp[i][0] + disp[i][1]*disp[i][1] + disp[i][2]*disp[i][2])
			if length < 0.01 {
				length = 0.01
			}

			step := temp / length
			for d := 0; d < 3; d++ {
				pos[i][d] += disp[i][d] * step
			}
		}

		temp -= cooling
		if temp < 0 {
			temp = 0
		}
	}

	rescale(pos)

	return pos
}

// maxExtent returns the widest per-axis spread of the positions.
func maxExtent(pos [][3]float64) float64 {
	extent := 0.0

	for d := 0; d < 3; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := range pos {
			if pos[i][d] < lo {
				lo = pos[i][d]
			}

			if pos[i][d] > hi {
				hi = pos[i][d]
			}
		}

		if hi-lo > extent {
			extent = hi - lo
		}
	}

	if extent == 0 {
		return 1
	}

	return extent
}

// rescale centers the layout at the origin and scales the largest absolute
// coordinate to 1, in place.
func rescale(pos [][3]float64) {
	n := float64(len(pos))

	var mean [3]float64
	for i := range pos {
		for d := 0; d < 3; d++ {
			mean[d] += pos[i][d] / n
		}
	}

	limit := 0.0
	for i := range pos {
		for d := 0; d < 3; d++ {
			pos[i][d] -= mean[d]
			if a := math.Abs(pos[i][d]); a > limit {
				limit = a
			}
		}
	}

	if limit == 0 {
		return
	}

	for i := range pos {
		for d := 0; d < 3; d++ {
			pos[i][d] /= limit
		}
	}
}
