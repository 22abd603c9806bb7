// Package embeddings provides utilities for embedding vectors
// (normalization, cosine distance, shape coercion).
package embeddings

import (
	"math"
)

// NormalizeL2 takes a raw embedding vector and normalizes it to a length of 1.
// It modifies the slice in-place to avoid allocations during bulk loads.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	// Zero vectors stay zero; the caller decides whether to skip them.
	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// Norm returns the L2 norm of the vector.
func Norm(vector []float32) float64 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	return math.Sqrt(sumSquares)
}

// CosineDistance returns 1 - cosine_similarity, so smaller is more similar.
// Mismatched dimensions and zero-norm inputs return the maximum distance 1.0.
func CosineDistance(a, b []float32) float64 {
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

// Coerce flattens row-major higher-rank data to a single vector and truncates it
// to maxDim components when maxDim > 0 and the vector exceeds it. The truncation
// policy is to keep the first maxDim components. Some encoder endpoints return
// duplicated or (1, D)-shaped payloads; this canonicalizes them.
func Coerce(vector []float32, maxDim int) []float32 {
	if maxDim > 0 && len(vector) > maxDim {
		return vector[:maxDim]
	}

	return vector
}
