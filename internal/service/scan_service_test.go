package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/models"
)

type fakeConceptSource struct {
	concepts map[string]*models.Concept
}

func (f *fakeConceptSource) GetByName(_ context.Context, name string) (*models.Concept, error) {
	concept, ok := f.concepts[name]
	if !ok {
		return nil, drifterrors.NewNotFoundError("concept", "concept not found: "+name)
	}

	return concept, nil
}

type fakeVectorSource struct {
	vectors   map[uuid.UUID]map[models.Space][]float32
	neighbors map[models.Space][]models.ConceptNeighbor

	lastLimit   int
	lastExclude string
}

func (f *fakeVectorSource) GetByConceptAndSpace(_ context.Context, conceptID uuid.UUID, space models.Space) ([]float32, error) {
	vec, ok := f.vectors[conceptID][space]
	if !ok {
		return nil, drifterrors.NewNotFoundError("embedding", "no embedding for concept")
	}

	return vec, nil
}

func (f *fakeVectorSource) Nearest(_ context.Context, space models.Space, _ []float32, limit int, excludeName string) ([]models.ConceptNeighbor, error) {
	f.lastLimit = limit
	f.lastExclude = excludeName

	return f.neighbors[space], nil
}

type fakeRelationshipWriter struct {
	rels []models.Relationship
}

func (f *fakeRelationshipWriter) Upsert(_ context.Context, rel *models.Relationship) error {
	f.rels = append(f.rels, *rel)

	return nil
}

type fakeScanWriter struct {
	scans []models.Scan
}

func (f *fakeScanWriter) Insert(_ context.Context, scan *models.Scan) error {
	f.scans = append(f.scans, *scan)

	return nil
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) InvalidateCache() { f.calls++ }

// scanFixture sets up an anchor with orthogonal unit vectors so cosine
// distances are exactly 0 (same axis) or 1 (orthogonal):
//
//	beta:  near the anchor in human, far in ai  -> delta 1
//	gamma: far in human, near in ai             -> delta 1
//	delta: far in both                          -> delta 0
func scanFixture() (*fakeConceptSource, *fakeVectorSource) {
	e1 := []float32{1, 0, 0, 0}
	e2 := []float32{0, 1, 0, 0}

	ids := map[string]uuid.UUID{}
	concepts := map[string]*models.Concept{}

	for _, name := range []string{"alpha", "beta", "gamma", "delta"} {
		id := uuid.New()
		ids[name] = id
		concepts[name] = &models.Concept{ID: id, Name: name}
	}

	vectors := map[uuid.UUID]map[models.Space][]float32{
		ids["alpha"]: {models.SpaceHuman: e1, models.SpaceAI: e1},
		ids["beta"]:  {models.SpaceHuman: e1, models.SpaceAI: e2},
		ids["gamma"]: {models.SpaceHuman: e2, models.SpaceAI: e1},
		ids["delta"]: {models.SpaceHuman: e2, models.SpaceAI: e2},
	}

	neighbors := map[models.Space][]models.ConceptNeighbor{
		models.SpaceHuman: {{Name: "beta", Distance: 0}, {Name: "gamma", Distance: 1}},
		models.SpaceAI:    {{Name: "gamma", Distance: 0}, {Name: "delta", Distance: 1}},
	}

	return &fakeConceptSource{concepts: concepts}, &fakeVectorSource{vectors: vectors, neighbors: neighbors}
}

func TestScanService_Scan(t *testing.T) {
	concepts, vectors := scanFixture()
	rels := &fakeRelationshipWriter{}
	scans := &fakeScanWriter{}
	invalidator := &fakeInvalidator{}

	svc := NewScanService(concepts, vectors, rels, scans, invalidator, nil, nil)

	result, err := svc.Scan(context.Background(), "alpha", 2)
	require.NoError(t, err)

	assert.Equal(t, "alpha", result.Anchor)
	assert.Equal(t, []string{"beta", "gamma"}, result.HumanNeighbors)
	assert.Equal(t, []string{"gamma", "delta"}, result.AINeighbors)
	assert.Equal(t, 2, vectors.lastLimit)
	assert.Equal(t, "alpha", vectors.lastExclude)

	// Union of both neighbor lists, first-seen order.
	require.Len(t, result.Pairs, 3)
	assert.Equal(t, "beta", result.Pairs[0].Name)
	assert.Equal(t, "gamma", result.Pairs[1].Name)
	assert.Equal(t, "delta", result.Pairs[2].Name)

	assert.InDelta(t, 1.0, result.Pairs[0].Delta, 1e-9)
	assert.InDelta(t, 1.0, result.Pairs[1].Delta, 1e-9)
	assert.InDelta(t, 0.0, result.Pairs[2].Delta, 1e-9)
	assert.InDelta(t, 2.0/3.0, result.AvgDelta, 1e-9)

	require.Len(t, rels.rels, 3)
	for _, rel := range rels.rels {
		assert.Equal(t, "alpha", rel.ConceptA)
		assert.Equal(t, "scan", rel.Type)
	}

	require.Len(t, scans.scans, 1)
	assert.Equal(t, "alpha", scans.scans[0].AnchorConcept)
	assert.Equal(t, []string{"beta", "gamma"}, scans.scans[0].HumanVector)
	assert.Equal(t, []string{"gamma", "delta"}, scans.scans[0].AIVector)
	assert.InDelta(t, 2.0/3.0, scans.scans[0].AvgDelta, 1e-9)

	assert.Equal(t, 1, invalidator.calls, "layout cache is invalidated after a scan")
}

func TestScanService_Scan_AnchorNotFound(t *testing.T) {
	concepts, vectors := scanFixture()
	svc := NewScanService(concepts, vectors, &fakeRelationshipWriter{}, &fakeScanWriter{}, nil, nil, nil)

	_, err := svc.Scan(context.Background(), "phlogiston", 2)
	require.ErrorIs(t, err, drifterrors.ErrNotFound)
}

func TestScanService_Scan_AnchorMissingEmbedding(t *testing.T) {
	concepts, vectors := scanFixture()
	delete(vectors.vectors[concepts.concepts["alpha"].ID], models.SpaceAI)

	svc := NewScanService(concepts, vectors, &fakeRelationshipWriter{}, &fakeScanWriter{}, nil, nil, nil)

	_, err := svc.Scan(context.Background(), "alpha", 2)
	require.ErrorIs(t, err, drifterrors.ErrNotFound)
}

func TestScanService_Scan_SkipsNeighborsWithoutEmbeddings(t *testing.T) {
	concepts, vectors := scanFixture()
	// The vector index returns a neighbor that no longer has a concept row.
	vectors.neighbors[models.SpaceHuman] = append(vectors.neighbors[models.SpaceHuman],
		models.ConceptNeighbor{Name: "ghost", Distance: 0.5})

	rels := &fakeRelationshipWriter{}
	svc := NewScanService(concepts, vectors, rels, &fakeScanWriter{}, nil, nil, nil)

	result, err := svc.Scan(context.Background(), "alpha", 3)
	require.NoError(t, err)

	for _, pair := range result.Pairs {
		assert.NotEqual(t, "ghost", pair.Name)
	}

	assert.Len(t, rels.rels, 3)
}

func TestScanService_Scan_DefaultNeighborCount(t *testing.T) {
	concepts, vectors := scanFixture()
	svc := NewScanService(concepts, vectors, &fakeRelationshipWriter{}, &fakeScanWriter{}, nil, nil, nil)

	_, err := svc.Scan(context.Background(), "alpha", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultScanNeighbors, vectors.lastLimit)
}
