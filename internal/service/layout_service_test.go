package service

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/models"
)

type fakeEmbeddingSource struct {
	human map[string][]float32
	ai    map[string][]float32
}

func (f *fakeEmbeddingSource) FetchSpace(_ context.Context, space models.Space) (map[string][]float32, error) {
	if space == models.SpaceHuman {
		return f.human, nil
	}

	return f.ai, nil
}

type fakeRelationshipSource struct {
	rels       []models.Relationship
	aggregates map[string]models.ConceptAggregate
}

func (f *fakeRelationshipSource) ListAll(_ context.Context) ([]models.Relationship, error) {
	return f.rels, nil
}

func (f *fakeRelationshipSource) Aggregates(_ context.Context) (map[string]models.ConceptAggregate, error) {
	return f.aggregates, nil
}

// layoutFixture builds two related 4-dim embedding spaces over the same six
// concepts, plus a relationship chain connecting them.
func layoutFixture() (*fakeEmbeddingSource, *fakeRelationshipSource) {
	names := []string{"gravity", "light", "time", "money", "love", "entropy"}
	rng := rand.New(rand.NewSource(11))

	human := make(map[string][]float32, len(names))
	ai := make(map[string][]float32, len(names))

	for _, name := range names {
		vec := make([]float32, 4)
		for d := range vec {
			vec[d] = float32(rng.NormFloat64())
		}

		human[name] = vec

		// The AI space is a perturbed copy so the two spaces are similar
		// but not identical.
		shifted := make([]float32, 4)
		for d := range shifted {
			shifted[d] = vec[d] + float32(0.3*rng.NormFloat64())
		}

		ai[name] = shifted
	}

	rels := make([]models.Relationship, 0, len(names)-1)
	for i := 1; i < len(names); i++ {
		rels = append(rels, models.Relationship{
			ConceptA:      names[i-1],
			ConceptB:      names[i],
			HumanDistance: 0.2 + 0.1*float64(i),
			AIDistance:    0.25 + 0.1*float64(i),
			Delta:         0.05,
			Type:          "semantic",
		})
	}

	aggregates := map[string]models.ConceptAggregate{
		"gravity": {AvgDistance: 0.3, Connections: 1},
		"light":   {AvgDistance: 0.35, Connections: 2},
	}

	return &fakeEmbeddingSource{human: human, ai: ai}, &fakeRelationshipSource{rels: rels, aggregates: aggregates}
}

func TestLayoutService_GetLayout_AllModes(t *testing.T) {
	embeddings, rels := layoutFixture()
	svc := NewLayoutService(embeddings, rels, nil, nil, nil)

	doc, err := svc.GetLayout(context.Background(), LayoutOptions{
		Amplification: 3.0,
		HumanModel:    "human-test",
		AIModel:       "ai-test",
	})
	require.NoError(t, err)
	require.NotNil(t, doc)

	assert.Equal(t, 6, doc.Metadata.NumConcepts)
	assert.Equal(t, "shared_graph_spring", doc.Metadata.SphereMethod)
	assert.Equal(t, "dual_knn_spring", doc.Metadata.OrganicMethod)
	assert.Equal(t, "umap_3d", doc.Metadata.ManifoldMethod)
	assert.Equal(t, "human-test", doc.Metadata.HumanModel)
	assert.Equal(t, "ai-test", doc.Metadata.AIModel)
	require.NotNil(t, doc.Metadata.DisparitySphere)
	require.NotNil(t, doc.Metadata.DisparityOrganic)
	require.NotNil(t, doc.Metadata.DisparityManifold)

	require.Len(t, doc.Nodes, 6)

	for i, node := range doc.Nodes {
		require.NotNil(t, node.Sphere, node.Name)
		require.NotNil(t, node.Organic, node.Name)
		require.NotNil(t, node.Manifold, node.Name)

		// All six concepts exist in every mode, so nothing is substituted.
		assert.False(t, node.Sphere.Fallback, node.Name)
		assert.False(t, node.Organic.Fallback, node.Name)
		assert.False(t, node.Manifold.Fallback, node.Name)

		// Amplification was requested, so the organic variant carries the
		// extrapolated AI position.
		assert.NotNil(t, node.Organic.PosAIAmplified, node.Name)

		// Ranking uses the measured organic drift, descending.
		assert.Equal(t, node.Organic.Drift, node.Drift, node.Name)
		if i > 0 {
			assert.GreaterOrEqual(t, doc.Nodes[i-1].Drift, node.Drift)
		}
	}

	// Aggregates are copied onto the matching records.
	for _, node := range doc.Nodes {
		if node.Name == "light" {
			assert.InDelta(t, 0.35, node.AvgDistance, 1e-12)
			assert.Equal(t, 2, node.Connections)
		}
	}
}

func TestLayoutService_GetLayout_CachesByContent(t *testing.T) {
	embeddings, rels := layoutFixture()
	svc := NewLayoutService(embeddings, rels, nil, nil, nil)
	opts := LayoutOptions{Amplification: 3.0}

	doc1, err := svc.GetLayout(context.Background(), opts)
	require.NoError(t, err)

	doc2, err := svc.GetLayout(context.Background(), opts)
	require.NoError(t, err)
	assert.Same(t, doc1, doc2, "unchanged inputs should return the cached document")

	// Different options mean a different cache key.
	doc3, err := svc.GetLayout(context.Background(), LayoutOptions{Amplification: 1.5})
	require.NoError(t, err)
	assert.NotSame(t, doc1, doc3)

	// Changing a stored vector changes the content hash and busts the cache.
	embeddings.human["gravity"][0] += 1.0

	doc4, err := svc.GetLayout(context.Background(), opts)
	require.NoError(t, err)
	assert.NotSame(t, doc1, doc4)
}

func TestLayoutService_InvalidateCache(t *testing.T) {
	embeddings, rels := layoutFixture()
	svc := NewLayoutService(embeddings, rels, nil, nil, nil)
	opts := LayoutOptions{}

	doc1, err := svc.GetLayout(context.Background(), opts)
	require.NoError(t, err)

	svc.InvalidateCache()

	doc2, err := svc.GetLayout(context.Background(), opts)
	require.NoError(t, err)
	assert.NotSame(t, doc1, doc2)
}

func TestLayoutService_NoEmbeddings(t *testing.T) {
	svc := NewLayoutService(
		&fakeEmbeddingSource{human: map[string][]float32{}, ai: map[string][]float32{}},
		&fakeRelationshipSource{},
		nil, nil, nil,
	)

	_, err := svc.GetLayout(context.Background(), LayoutOptions{})
	require.ErrorIs(t, err, drifterrors.ErrNoLayoutData)
}

func TestLayoutService_NoRelationships_SphereSkipped(t *testing.T) {
	embeddings, rels := layoutFixture()
	rels.rels = nil
	svc := NewLayoutService(embeddings, rels, nil, nil, nil)

	doc, err := svc.GetLayout(context.Background(), LayoutOptions{})
	require.NoError(t, err)

	assert.Empty(t, doc.Metadata.SphereMethod)
	assert.Nil(t, doc.Metadata.DisparitySphere)
	assert.Equal(t, "dual_knn_spring", doc.Metadata.OrganicMethod)
	assert.Equal(t, "umap_3d", doc.Metadata.ManifoldMethod)

	for _, node := range doc.Nodes {
		assert.Nil(t, node.Sphere)
		assert.NotNil(t, node.Organic)
	}
}

func TestLayoutService_ComputeLayout_BypassesCache(t *testing.T) {
	embeddings, rels := layoutFixture()
	svc := NewLayoutService(embeddings, rels, nil, nil, nil)
	opts := LayoutOptions{}

	doc1, err := svc.ComputeLayout(context.Background(), opts)
	require.NoError(t, err)

	doc2, err := svc.ComputeLayout(context.Background(), opts)
	require.NoError(t, err)
	assert.NotSame(t, doc1, doc2)
}

func TestMergeNodes_FallbackSubstitution(t *testing.T) {
	sphere := &modeResult{
		human: map[string]models.Vec3{"a": {1, 0, 0}, "b": {0, 1, 0}},
		ai:    map[string]models.Vec3{"a": {1.5, 0, 0}, "b": {0, 2, 0}},
		drift: map[string]float64{"a": 0.5, "b": 1.0},
	}
	// Organic only computed "a"; "b" must be substituted from sphere.
	organic := &modeResult{
		human: map[string]models.Vec3{"a": {2, 0, 0}},
		ai:    map[string]models.Vec3{"a": {2.2, 0, 0}},
		drift: map[string]float64{"a": 0.2},
	}

	nodes := mergeNodes(sphere, organic, nil, nil)
	require.Len(t, nodes, 2)

	byName := make(map[string]models.NodeRecord, len(nodes))
	for _, node := range nodes {
		byName[node.Name] = node
	}

	a, b := byName["a"], byName["b"]

	require.NotNil(t, a.Organic)
	assert.False(t, a.Organic.Fallback)
	assert.Equal(t, 0.2, a.Drift, "measured organic drift ranks a")

	require.NotNil(t, b.Organic)
	assert.True(t, b.Organic.Fallback, "organic positions for b are substituted")
	assert.Equal(t, models.Vec3{0, 1, 0}, b.Organic.PosHuman)
	assert.Equal(t, 1.0, b.Drift, "fallback organic drift is not trusted; sphere drift ranks b")

	// b (drift 1.0) outranks a (drift 0.2).
	assert.Equal(t, "b", nodes[0].Name)
}

func TestSnapshotHash_Deterministic(t *testing.T) {
	embeddings, rels := layoutFixture()
	opts := LayoutOptions{Amplification: 3.0, HumanModel: "h", AIModel: "a"}

	h1 := snapshotHash(embeddings.human, embeddings.ai, rels.rels, opts)
	h2 := snapshotHash(embeddings.human, embeddings.ai, rels.rels, opts)
	assert.Equal(t, h1, h2)

	h3 := snapshotHash(embeddings.human, embeddings.ai, rels.rels, LayoutOptions{Amplification: 0, HumanModel: "h", AIModel: "a"})
	assert.NotEqual(t, h1, h3)

	h4 := snapshotHash(embeddings.ai, embeddings.human, rels.rels, opts)
	assert.NotEqual(t, h1, h4, "swapping the spaces must change the hash")
}
