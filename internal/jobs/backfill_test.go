package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmap/cartographer/internal/models"
)

type fakeConceptLister struct {
	missing map[models.Space][]models.Concept
	err     error
}

func (f *fakeConceptLister) ListMissingEmbeddings(_ context.Context, space models.Space) ([]models.Concept, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.missing[space], nil
}

type fakeInserter struct {
	inserted []EmbeddingJobArgs
	failFor  string
}

func (f *fakeInserter) InsertEmbeddingJob(_ context.Context, args EmbeddingJobArgs) error {
	if f.failFor != "" && args.ConceptName == f.failFor {
		return errors.New("insert failed")
	}

	f.inserted = append(f.inserted, args)

	return nil
}

func concept(name string) models.Concept {
	return models.Concept{ID: uuid.New(), Name: name}
}

func TestBackfill(t *testing.T) {
	lister := &fakeConceptLister{missing: map[models.Space][]models.Concept{
		models.SpaceHuman: {concept("entropy"), concept("gravity")},
		models.SpaceAI:    {concept("entropy")},
	}}
	inserter := &fakeInserter{}

	stats, err := Backfill(context.Background(), lister, inserter, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Enqueued[models.SpaceHuman])
	assert.Equal(t, 1, stats.Enqueued[models.SpaceAI])
	assert.Zero(t, stats.Errors)
	assert.Len(t, inserter.inserted, 3)
}

func TestBackfill_SingleSpace(t *testing.T) {
	lister := &fakeConceptLister{missing: map[models.Space][]models.Concept{
		models.SpaceHuman: {concept("entropy")},
		models.SpaceAI:    {concept("entropy"), concept("gravity")},
	}}
	inserter := &fakeInserter{}

	stats, err := Backfill(context.Background(), lister, inserter, nil, models.SpaceAI)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Enqueued[models.SpaceAI])
	_, listed := stats.Enqueued[models.SpaceHuman]
	assert.False(t, listed)

	for _, args := range inserter.inserted {
		assert.Equal(t, models.SpaceAI, args.Space)
	}
}

func TestBackfill_EnqueueFailureSkipsConcept(t *testing.T) {
	lister := &fakeConceptLister{missing: map[models.Space][]models.Concept{
		models.SpaceHuman: {concept("entropy"), concept("gravity")},
	}}
	inserter := &fakeInserter{failFor: "entropy"}

	stats, err := Backfill(context.Background(), lister, inserter, nil, models.SpaceHuman)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Enqueued[models.SpaceHuman])
	assert.Equal(t, 1, stats.Errors, "a lost enqueue must surface in the exit status")
	require.Len(t, inserter.inserted, 1)
	assert.Equal(t, "gravity", inserter.inserted[0].ConceptName)
}

func TestBackfill_ListFailureCountsAsError(t *testing.T) {
	lister := &fakeConceptLister{err: errors.New("db down")}

	stats, err := Backfill(context.Background(), lister, &fakeInserter{}, nil, models.SpaceHuman)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors)
	assert.Zero(t, stats.Enqueued[models.SpaceHuman])
}
