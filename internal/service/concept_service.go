package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/driftmap/cartographer/internal/jobs"
	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/internal/observability"
)

// ConceptStore is the repository surface the concept service needs.
type ConceptStore interface {
	Upsert(ctx context.Context, name string) (*models.Concept, error)
	GetByName(ctx context.Context, name string) (*models.Concept, error)
	List(ctx context.Context) ([]models.Concept, error)
}

// ConceptService registers concepts and enqueues the embedding jobs that give
// them coordinates in both spaces.
type ConceptService struct {
	concepts ConceptStore
	inserter jobs.JobInserter
	metrics  observability.EmbeddingMetrics
	logger   *slog.Logger
}

// NewConceptService creates a concept service. inserter may be nil (e.g. in
// the batch CLI); concepts are then stored without enqueueing embedding jobs.
func NewConceptService(
	concepts ConceptStore,
	inserter jobs.JobInserter,
	metrics observability.EmbeddingMetrics,
	logger *slog.Logger,
) *ConceptService {
	if logger == nil {
		logger = slog.Default()
	}

	return &ConceptService{
		concepts: concepts,
		inserter: inserter,
		metrics:  metrics,
		logger:   logger,
	}
}

// Create upserts a concept by name and enqueues one embedding job per space.
// Enqueue failures are logged, not fatal; the backfill command picks up
// concepts whose jobs were lost.
func (s *ConceptService) Create(ctx context.Context, name string) (*models.Concept, error) {
	concept, err := s.concepts.Upsert(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("upsert concept: %w", err)
	}

	if s.inserter != nil {
		for _, space := range []models.Space{models.SpaceHuman, models.SpaceAI} {
			err := s.inserter.InsertEmbeddingJob(ctx, jobs.EmbeddingJobArgs{
				ConceptID:   concept.ID,
				ConceptName: concept.Name,
				Space:       space,
			})
			if err != nil {
				s.logger.WarnContext(ctx, "failed to enqueue embedding job",
					"concept", concept.Name, "space", space, "error", err)

				continue
			}

			if s.metrics != nil {
				s.metrics.RecordJobsEnqueued(ctx, string(space), 1)
			}
		}
	}

	return concept, nil
}

// Get returns a concept by name.
func (s *ConceptService) Get(ctx context.Context, name string) (*models.Concept, error) {
	return s.concepts.GetByName(ctx, name)
}

// List returns all concepts ordered by name.
func (s *ConceptService) List(ctx context.Context) ([]models.Concept, error) {
	return s.concepts.List(ctx)
}
