package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/internal/observability"
)

// ConceptLister returns the concepts still missing an embedding per space.
type ConceptLister interface {
	ListMissingEmbeddings(ctx context.Context, space models.Space) ([]models.Concept, error)
}

// BackfillStats holds per-space enqueue counts from a backfill run.
type BackfillStats struct {
	Enqueued map[models.Space]int
	Errors   int
}

// Backfill enqueues embedding jobs for every concept missing a vector in any
// of the given spaces. Per-concept enqueue failures are logged and counted,
// not fatal; a failed work-list query aborts only that space.
func Backfill(
	ctx context.Context,
	lister ConceptLister,
	inserter JobInserter,
	metrics observability.EmbeddingMetrics,
	spaces ...models.Space,
) (*BackfillStats, error) {
	if len(spaces) == 0 {
		spaces = []models.Space{models.SpaceHuman, models.SpaceAI}
	}

	stats := &BackfillStats{Enqueued: make(map[models.Space]int, len(spaces))}

	for _, space := range spaces {
		count, failed, err := backfillSpace(ctx, lister, inserter, space)
		if err != nil {
			slog.Error("failed to backfill space", "space", space, "error", err)
			stats.Errors++
		}

		stats.Errors += failed
		stats.Enqueued[space] = count

		if metrics != nil && count > 0 {
			metrics.RecordJobsEnqueued(ctx, string(space), int64(count))
		}
	}

	return stats, nil
}

func backfillSpace(ctx context.Context, lister ConceptLister, inserter JobInserter, space models.Space) (count, failed int, err error) {
	concepts, err := lister.ListMissingEmbeddings(ctx, space)
	if err != nil {
		return 0, 0, fmt.Errorf("list concepts missing %s embeddings: %w", space, err)
	}

	for _, concept := range concepts {
		if err := inserter.InsertEmbeddingJob(ctx, EmbeddingJobArgs{
			ConceptID:   concept.ID,
			ConceptName: concept.Name,
			Space:       space,
		}); err != nil {
			slog.Error("failed to enqueue embedding job",
				"concept_id", concept.ID, "space", space, "error", err)
			failed++

			continue
		}

		count++
	}

	return count, failed, nil
}
