package geometry

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/driftmap/cartographer/internal/drifterrors"
)

// ManifoldConfig holds the hyperparameters of one manifold projection run.
// Identical input ordering and config reproduce identical output.
type ManifoldConfig struct {
	Components         int     // output dimensionality
	Neighbors          int     // k for the high-dimensional k-NN graph
	MinDist            float64 // minimum spacing in the low-dimensional space
	Spread             float64 // effective scale of embedded points
	Epochs             int     // SGD optimization epochs
	LearningRate       float64
	NegativeSampleRate int // repulsive samples per attractive sample
	Seed               int64
}

// DefaultManifoldConfig returns the standard projection parameters for the
// given seed: 3 components, 15 neighbors, min_dist 0.1, cosine metric.
func DefaultManifoldConfig(seed int64) ManifoldConfig {
	return ManifoldConfig{
		Components:         3,
		Neighbors:          15,
		MinDist:            0.1,
		Spread:             1.0,
		Epochs:             200,
		LearningRate:       1.0,
		NegativeSampleRate: 5,
		Seed:               seed,
	}
}

// ManifoldProject reduces the N x D row-major matrix to N x Components
// coordinates with a neighborhood-preserving nonlinear embedding (a UMAP-style
// fuzzy simplicial set optimized by seeded SGD, cosine metric). Row i of the
// output corresponds to row i of the input; callers must keep the row order
// consistent with the concept-id list they zip the result against.
func ManifoldProject(matrix [][]float32, cfg ManifoldConfig) ([][]float64, error) {
	n := len(matrix)
	if n == 0 {
		return nil, drifterrors.NewValidationError("matrix", "manifold projection requires a non-empty matrix")
	}

	if cfg.Components < 1 {
		return nil, drifterrors.NewValidationError("components", "manifold projection requires at least 1 output component")
	}

	if n <= cfg.Components {
		return nil, drifterrors.NewValidationError("matrix",
			"manifold projection requires more samples than output components")
	}

	k := cfg.Neighbors
	if k >= n {
		k = n - 1
	}

	if k < 2 {
		return nil, drifterrors.NewValidationError("neighbors", "manifold projection requires at least 2 neighbors")
	}

	neighbors, dists := cosineKNN(matrix, k)
	sigmas, rhos := smoothDistances(dists, float64(k))
	graph := fuzzyGraph(neighbors, dists, sigmas, rhos)

	a, b := fitOutputCurve(cfg.Spread, cfg.MinDist)

	embedding := initEmbedding(graph, n, cfg.Components, cfg.Seed)

	// A fresh RNG derived from the seed keeps negative sampling reproducible
	// independently of how many random draws initialization consumed.
	rng := rand.New(rand.NewSource(cfg.Seed + 1))
	optimize(embedding, graph, a, b, cfg, rng)

	return embedding, nil
}

// manifoldEdge is one directed entry of the sparse fuzzy graph.
type manifoldEdge struct {
	from, to int
	weight   float64
}

// cosineKNN brute-forces the k nearest neighbors of every row by cosine
// distance. O(N^2 D); fine at the vocabulary sizes this system targets.
func cosineKNN(matrix [][]float32, k int) (indices [][]int, dists [][]float64) {
	n := len(matrix)
	indices = make([][]int, n)
	dists = make([][]float64, n)

	type candidate struct {
		idx  int
		dist float64
	}

	for i := 0; i < n; i++ {
		candidates := make([]candidate, 0, n-1)

		for j := 0; j < n; j++ {
			if j == i {
				continue
			}

			candidates = append(candidates, candidate{idx: j, dist: cosineDistance64(matrix[i], matrix[j])})
		}

		sort.Slice(candidates, func(a, b int) bool {
			if candidates[a].dist != candidates[b].dist {
				return candidates[a].dist < candidates[b].dist
			}

			return candidates[a].idx < candidates[b].idx
		})

		indices[i] = make([]int, k)
		dists[i] = make([]float64, k)

		for j := 0; j < k; j++ {
			indices[i][j] = candidates[j].idx
			dists[i][j] = candidates[j].dist
		}
	}

	return indices, dists
}

func cosineDistance64(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1.0
	}

	return 1.0 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// smoothDistances finds, per point, the local connectivity distance rho (the
// distance to the nearest neighbor) and a bandwidth sigma such that the sum of
// fuzzy memberships over the neighborhood equals log2(k). Sigma is located by
// binary search.
func smoothDistances(dists [][]float64, k float64) (sigmas, rhos []float64) {
	const (
		searchIters = 64
		tolerance   = 1e-5
		minScale    = 1e-3
	)

	n := len(dists)
	sigmas = make([]float64, n)
	rhos = make([]float64, n)
	target := math.Log2(k)

	for i := 0; i < n; i++ {
		row := dists[i]

		for _, d := range row {
			if d > 0 {
				rhos[i] = d
				break
			}
		}

		lo, hi, mid := 0.0, math.Inf(1), 1.0

		for iter := 0; iter < searchIters; iter++ {
			sum := 0.0
			for _, d := range row {
				if adj := d - rhos[i]; adj > 0 {
					sum += math.Exp(-adj / mid)
				} else {
					sum += 1.0
				}
			}

			if math.Abs(sum-target) < tolerance {
				break
			}

			if sum > target {
				hi = mid
				mid = (lo + hi) / 2
			} else {
				lo = mid
				if math.IsInf(hi, 1) {
					mid *= 2
				} else {
					mid = (lo + hi) / 2
				}
			}
		}

		sigmas[i] = mid

		var meanDist float64
		for _, d := range row {
			meanDist += d
		}
		meanDist /= float64(len(row))

		if min := minScale * meanDist; sigmas[i] < min {
			sigmas[i] = min
		}
	}

	return sigmas, rhos
}

// fuzzyGraph converts k-NN distances to membership strengths and symmetrizes
// them with the fuzzy set union w + w' - w*w'. Output edges are sorted for
// deterministic downstream iteration.
func fuzzyGraph(indices [][]int, dists [][]float64, sigmas, rhos []float64) []manifoldEdge {
	type key struct{ from, to int }

	directed := make(map[key]float64)

	for i := range indices {
		for j, nb := range indices[i] {
			var w float64
			if adj := dists[i][j] - rhos[i]; adj <= 0 || sigmas[i] == 0 {
				w = 1.0
			} else {
				w = math.Exp(-adj / sigmas[i])
			}

			directed[key{i, nb}] = w
		}
	}

	union := make(map[key]float64, len(directed))

	for k1, w := range directed {
		wT := directed[key{k1.to, k1.from}]

		if u := w + wT - w*wT; u > 0 {
			union[k1] = u
		}
	}

	edges := make([]manifoldEdge, 0, len(union))
	for k1, w := range union {
		edges = append(edges, manifoldEdge{from: k1.from, to: k1.to, weight: w})
	}

	sort.Slice(edges, func(a, b int) bool {
		if edges[a].from != edges[b].from {
			return edges[a].from < edges[b].from
		}

		return edges[a].to < edges[b].to
	})

	return edges
}

// fitOutputCurve fits 1/(1 + a*x^(2b)) to the target output distribution
// determined by spread and minDist, by grid search. The curve shapes the
// low-dimensional attraction/repulsion gradients.
func fitOutputCurve(spread, minDist float64) (a, b float64) {
	const points = 300

	xs := make([]float64, points)
	ys := make([]float64, points)

	for i := 0; i < points; i++ {
		xs[i] = float64(i) / float64(points-1) * spread * 3
		if xs[i] < minDist {
			ys[i] = 1.0
		} else {
			ys[i] = math.Exp(-(xs[i] - minDist) / spread)
		}
	}

	bestA, bestB := 1.0, 1.0
	bestErr := math.Inf(1)

	for ca := 0.1; ca <= 10.0; ca += 0.1 {
		for cb := 0.1; cb <= 2.0; cb += 0.05 {
			var sse float64
			for i := 0; i < points; i++ {
				pred := 1.0 / (1.0 + ca*math.Pow(xs[i], 2*cb))
				diff := pred - ys[i]
				sse += diff * diff
			}

			if sse < bestErr {
				bestErr = sse
				bestA, bestB = ca, cb
			}
		}
	}

	return bestA, bestB
}

// spectralInitThreshold is the sample count below which random initialization
// replaces the spectral one; eigendecomposition adds little on tiny graphs.
const spectralInitThreshold = 50

// initEmbedding produces the starting low-dimensional coordinates: spectral
// initialization from the normalized graph Laplacian when the dataset is big
// enough for it to matter, otherwise seeded uniform noise.
func initEmbedding(edges []manifoldEdge, n, components int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))

	if n >= spectralInitThreshold {
		if spectral := spectralInit(edges, n, components); spectral != nil {
			// Tiny jitter breaks exact symmetry without disturbing structure.
			for i := range spectral {
				for d := range spectral[i] {
					spectral[i][d] += (rng.Float64() - 0.5) * 1e-4
				}
			}

			return spectral
		}
	}

	embedding := make([][]float64, n)
	for i := range embedding {
		embedding[i] = make([]float64, components)
		for d := range embedding[i] {
			embedding[i][d] = (rng.Float64() - 0.5) * 10
		}
	}

	return embedding
}

// spectralInit embeds the graph with the eigenvectors of the smallest
// non-trivial eigenvalues of the symmetric normalized Laplacian. Returns nil
// when the factorization fails, in which case the caller falls back to random.
func spectralInit(edges []manifoldEdge, n, components int) [][]float64 {
	adj := mat.NewDense(n, n, nil)
	for _, e := range edges {
		adj.Set(e.from, e.to, e.weight)
	}

	degrees := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			degrees[i] += adj.At(i, j)
		}
	}

	laplacian := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		laplacian.Set(i, i, 1.0)
		for j := 0; j < n; j++ {
			if degrees[i] > 0 && degrees[j] > 0 {
				laplacian.Set(i, j, laplacian.At(i, j)-adj.At(i, j)/math.Sqrt(degrees[i]*degrees[j]))
			}
		}
	}

	var eigen mat.Eigen
	if ok := eigen.Factorize(laplacian, mat.EigenRight); !ok {
		return nil
	}

	values := eigen.Values(nil)

	var vectors mat.CDense
	eigen.VectorsTo(&vectors)

	type pair struct {
		val float64
		idx int
	}

	pairs := make([]pair, len(values))
	for i, v := range values {
		pairs[i] = pair{val: real(v), idx: i}
	}

	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].val != pairs[b].val {
			return pairs[a].val < pairs[b].val
		}

		return pairs[a].idx < pairs[b].idx
	})

	embedding := make([][]float64, n)
	for i := 0; i < n; i++ {
		embedding[i] = make([]float64, components)
		for d := 0; d < components; d++ {
			// Skip the trivial constant eigenvector at index 0.
			if d+1 < len(pairs) {
				embedding[i][d] = real(vectors.At(i, pairs[d+1].idx))
			}
		}
	}

	// Normalize each output axis to a [0, 10] range.
	for d := 0; d < components; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < n; i++ {
			if embedding[i][d] < lo {
				lo = embedding[i][d]
			}

			if embedding[i][d] > hi {
				hi = embedding[i][d]
			}
		}

		if span := hi - lo; span > 0 {
			for i := 0; i < n; i++ {
				embedding[i][d] = (embedding[i][d] - lo) / span * 10
			}
		}
	}

	return embedding
}

// optimize refines the embedding by stochastic gradient descent: attraction
// along fuzzy graph edges, repulsion against seeded negative samples, with a
// linearly decaying learning rate and clipped gradients. Mutates embedding.
func optimize(embedding [][]float64, edges []manifoldEdge, a, b float64, cfg ManifoldConfig, rng *rand.Rand) {
	n := len(embedding)
	if len(edges) == 0 || n < 2 {
		return
	}

	maxWeight := 0.0
	for _, e := range edges {
		if e.weight > maxWeight {
			maxWeight = e.weight
		}
	}

	if maxWeight == 0 {
		maxWeight = 1.0
	}

	// Edges are revisited at a cadence inversely proportional to weight, so
	// strong edges shape the layout more often than weak ones.
	nextSample := make([]float64, len(edges))
	interval := make([]float64, len(edges))

	for i, e := range edges {
		if e.weight > 0 {
			interval[i] = maxWeight / e.weight
			if interval[i] < 1 {
				interval[i] = 1
			}
		} else {
			interval[i] = float64(cfg.Epochs) + 1
		}

		nextSample[i] = interval[i]
	}

	negatives := cfg.NegativeSampleRate
	if negatives < 1 {
		negatives = 1
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		alpha := cfg.LearningRate * (1.0 - float64(epoch)/float64(cfg.Epochs))
		if alpha < 1e-4 {
			alpha = 1e-4
		}

		for i, e := range edges {
			if nextSample[i] > float64(epoch) {
				continue
			}

			current := embedding[e.from]
			other := embedding[e.to]

			if distSq := squaredDistance(current, other); distSq > 0 {
				coeff := -2.0 * a * b * math.Pow(distSq, b-1.0)
				coeff /= a*math.Pow(distSq, b) + 1.0

				for d := range current {
					current[d] += clipGradient(coeff*(current[d]-other[d])) * alpha
				}
			}

			for s := 0; s < negatives; s++ {
				neg := rng.Intn(n)
				if neg == e.from {
					continue
				}

				distSq := squaredDistance(current, embedding[neg])

				var coeff float64
				if distSq > 1e-3 {
					coeff = 2.0 * b / ((1e-3 + distSq) * (a*math.Pow(distSq, b) + 1))
				}

				if coeff > 0 {
					for d := range current {
						current[d] += clipGradient(coeff*(current[d]-embedding[neg][d])) * alpha
					}
				}
			}

			nextSample[i] += interval[i]
		}
	}
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}

	return sum
}

// clipGradient caps per-dimension gradients to avoid explosive updates.
func clipGradient(v float64) float64 {
	if v > 4.0 {
		return 4.0
	}

	if v < -4.0 {
		return -4.0
	}

	return v
}
