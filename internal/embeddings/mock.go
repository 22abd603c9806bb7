package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/driftmap/cartographer/internal/drifterrors"
	pkgembeddings "github.com/driftmap/cartographer/pkg/embeddings"
)

// MockClient implements the Client interface for testing purposes.
// It generates deterministic embeddings based on the input text hash, so the
// same concept name always maps to the same vector across runs.
type MockClient struct {
	dimensions int
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock embedding client.
// Default dimensions is 1536 to match OpenAI's text-embedding-3-small.
func NewMockClient() *MockClient {
	return &MockClient{dimensions: 1536}
}

// NewMockClientWithDimensions creates a mock client with custom dimensions.
func NewMockClientWithDimensions(dimensions int) *MockClient {
	return &MockClient{dimensions: dimensions}
}

// Model returns a synthetic model identifier including the dimensionality.
func (c *MockClient) Model() string { return fmt.Sprintf("mock-%d", c.dimensions) }

// Embed generates a deterministic embedding based on the text hash.
func (c *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, drifterrors.NewValidationError("text", "text cannot be empty")
	}

	return c.deterministicEmbedding(text), nil
}

// EmbedBatch generates embeddings for multiple texts.
// Returns an error if any text is empty.
func (c *MockClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, drifterrors.NewValidationError("texts", "texts cannot be empty")
	}

	embeddings := make([][]float32, len(texts))

	for i, text := range texts {
		if text == "" {
			return nil, drifterrors.NewValidationError("texts", fmt.Sprintf("text at index %d cannot be empty", i))
		}

		embeddings[i] = c.deterministicEmbedding(text)
	}

	return embeddings, nil
}

// deterministicEmbedding creates a unit-norm vector from the text hash.
// Each component draws from a fresh hash of (text, block index) so vectors
// longer than one digest do not repeat cyclically.
func (c *MockClient) deterministicEmbedding(text string) []float32 {
	embedding := make([]float32, c.dimensions)

	const valuesPerDigest = sha256.Size / 4

	for block := 0; block*valuesPerDigest < c.dimensions; block++ {
		var seed [8]byte
		binary.BigEndian.PutUint64(seed[:], uint64(block))
		digest := sha256.Sum256(append([]byte(text), seed[:]...))

		for j := 0; j < valuesPerDigest; j++ {
			idx := block*valuesPerDigest + j
			if idx >= c.dimensions {
				break
			}

			bits := binary.BigEndian.Uint32(digest[j*4 : j*4+4])
			// Map to [-1, 1).
			embedding[idx] = float32(bits)/float32(1<<31) - 1.0
		}
	}

	pkgembeddings.NormalizeL2(embedding)

	return embedding
}
