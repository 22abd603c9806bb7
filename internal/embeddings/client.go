// Package embeddings provides clients for generating concept embeddings.
// Each comparison space (human, AI) gets its own client so the two sides can
// use different providers, models, and dimensionalities.
package embeddings

import (
	"context"

	pkgembeddings "github.com/driftmap/cartographer/pkg/embeddings"
)

// Client defines the interface for generating text embeddings.
type Client interface {
	// Embed generates an embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embedding vectors for multiple texts in a batch.
	// More efficient than calling Embed multiple times.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the model identifier recorded alongside stored vectors.
	Model() string
}

// DimensionCapped wraps a Client and truncates every returned vector to at
// most maxDim components, keeping the leading ones. Providers with a larger
// native dimensionality are coerced to the space's canonical width so vectors
// from different model revisions stay comparable.
type DimensionCapped struct {
	inner  Client
	maxDim int
}

var _ Client = (*DimensionCapped)(nil)

// NewDimensionCapped wraps inner with a dimension cap. A non-positive maxDim
// disables coercion.
func NewDimensionCapped(inner Client, maxDim int) *DimensionCapped {
	return &DimensionCapped{inner: inner, maxDim: maxDim}
}

func (c *DimensionCapped) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	return pkgembeddings.Coerce(vec, c.maxDim), nil
}

func (c *DimensionCapped) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := c.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	for i := range vecs {
		vecs[i] = pkgembeddings.Coerce(vecs[i], c.maxDim)
	}

	return vecs, nil
}

func (c *DimensionCapped) Model() string { return c.inner.Model() }
