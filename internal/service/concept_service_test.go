package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmap/cartographer/internal/jobs"
	"github.com/driftmap/cartographer/internal/models"
)

type fakeConceptStore struct {
	byName map[string]*models.Concept
}

func newFakeConceptStore() *fakeConceptStore {
	return &fakeConceptStore{byName: map[string]*models.Concept{}}
}

func (f *fakeConceptStore) Upsert(_ context.Context, name string) (*models.Concept, error) {
	if existing, ok := f.byName[name]; ok {
		return existing, nil
	}

	concept := &models.Concept{ID: uuid.New(), Name: name}
	f.byName[name] = concept

	return concept, nil
}

func (f *fakeConceptStore) GetByName(ctx context.Context, name string) (*models.Concept, error) {
	concept, ok := f.byName[name]
	if !ok {
		return nil, errors.New("not found")
	}

	return concept, nil
}

func (f *fakeConceptStore) List(_ context.Context) ([]models.Concept, error) {
	out := make([]models.Concept, 0, len(f.byName))
	for _, c := range f.byName {
		out = append(out, *c)
	}

	return out, nil
}

type fakeJobInserter struct {
	inserted []jobs.EmbeddingJobArgs
	err      error
}

func (f *fakeJobInserter) InsertEmbeddingJob(_ context.Context, args jobs.EmbeddingJobArgs) error {
	if f.err != nil {
		return f.err
	}

	f.inserted = append(f.inserted, args)

	return nil
}

func TestConceptService_Create_EnqueuesJobPerSpace(t *testing.T) {
	store := newFakeConceptStore()
	inserter := &fakeJobInserter{}
	svc := NewConceptService(store, inserter, nil, nil)

	concept, err := svc.Create(context.Background(), "entropy")
	require.NoError(t, err)
	assert.Equal(t, "entropy", concept.Name)

	require.Len(t, inserter.inserted, 2)

	spaces := []models.Space{inserter.inserted[0].Space, inserter.inserted[1].Space}
	assert.ElementsMatch(t, []models.Space{models.SpaceHuman, models.SpaceAI}, spaces)

	for _, args := range inserter.inserted {
		assert.Equal(t, concept.ID, args.ConceptID)
		assert.Equal(t, "entropy", args.ConceptName)
	}
}

func TestConceptService_Create_EnqueueFailureIsNotFatal(t *testing.T) {
	store := newFakeConceptStore()
	inserter := &fakeJobInserter{err: errors.New("queue unavailable")}
	svc := NewConceptService(store, inserter, nil, nil)

	concept, err := svc.Create(context.Background(), "entropy")
	require.NoError(t, err)
	assert.NotNil(t, concept)
}

func TestConceptService_Create_NilInserter(t *testing.T) {
	store := newFakeConceptStore()
	svc := NewConceptService(store, nil, nil, nil)

	concept, err := svc.Create(context.Background(), "entropy")
	require.NoError(t, err)
	assert.Equal(t, "entropy", concept.Name)
}

func TestConceptService_Create_UpsertIsIdempotent(t *testing.T) {
	store := newFakeConceptStore()
	svc := NewConceptService(store, nil, nil, nil)

	first, err := svc.Create(context.Background(), "entropy")
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), "entropy")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
