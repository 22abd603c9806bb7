package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"golang.org/x/time/rate"

	"github.com/driftmap/cartographer/internal/drifterrors"
	"github.com/driftmap/cartographer/internal/embeddings"
	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/internal/observability"
)

// EmbeddingStore persists generated vectors.
type EmbeddingStore interface {
	Upsert(ctx context.Context, conceptID uuid.UUID, space models.Space, model string, embedding []float32) error
}

// EmbeddingWorkerDeps holds the dependencies for the embedding worker.
// HumanClient and AIClient may be different providers with different
// dimensionalities; the job's Space selects between them.
type EmbeddingWorkerDeps struct {
	HumanClient embeddings.Client
	AIClient    embeddings.Client
	Store       EmbeddingStore
	RateLimiter *rate.Limiter
	Metrics     observability.EmbeddingMetrics
}

// EmbeddingWorker processes embedding generation jobs.
type EmbeddingWorker struct {
	river.WorkerDefaults[EmbeddingJobArgs]
	deps EmbeddingWorkerDeps
}

// NewEmbeddingWorker creates a new embedding worker with the given dependencies.
func NewEmbeddingWorker(deps EmbeddingWorkerDeps) *EmbeddingWorker {
	return &EmbeddingWorker{deps: deps}
}

// Work processes one embedding job.
func (w *EmbeddingWorker) Work(ctx context.Context, job *river.Job[EmbeddingJobArgs]) error {
	args := job.Args
	start := time.Now()

	slog.Debug("processing embedding job",
		"job_id", job.ID,
		"concept_id", args.ConceptID,
		"space", args.Space,
	)

	client := w.client(args.Space)
	if client == nil {
		slog.Error("no embedding client for space",
			"job_id", job.ID,
			"space", args.Space,
		)
		// Return nil to mark job as complete - a bad space won't be fixed by retry.
		return nil
	}

	// Wait for rate limit token if configured.
	if w.deps.RateLimiter != nil {
		if err := w.deps.RateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	vector, err := client.Embed(ctx, args.ConceptName)
	if err != nil {
		w.recordOutcome(ctx, args.Space, "error", start)
		slog.Error("failed to generate embedding",
			"job_id", job.ID,
			"concept_id", args.ConceptID,
			"space", args.Space,
			"error", err,
		)

		return err // River will retry based on configuration.
	}

	if err := w.deps.Store.Upsert(ctx, args.ConceptID, args.Space, client.Model(), vector); err != nil {
		if errors.Is(err, drifterrors.ErrNotFound) {
			w.recordOutcome(ctx, args.Space, "skipped", start)
			slog.Info("concept deleted before embedding job completed",
				"job_id", job.ID,
				"concept_id", args.ConceptID,
			)
			// Return nil to mark job as complete - the concept no longer exists.
			return nil
		}

		w.recordOutcome(ctx, args.Space, "error", start)
		slog.Error("failed to store embedding",
			"job_id", job.ID,
			"concept_id", args.ConceptID,
			"space", args.Space,
			"error", err,
		)

		return err
	}

	w.recordOutcome(ctx, args.Space, "success", start)
	slog.Info("embedding generated",
		"job_id", job.ID,
		"concept_id", args.ConceptID,
		"space", args.Space,
		"dimensions", len(vector),
	)

	return nil
}

func (w *EmbeddingWorker) client(space models.Space) embeddings.Client {
	switch space {
	case models.SpaceHuman:
		return w.deps.HumanClient
	case models.SpaceAI:
		return w.deps.AIClient
	default:
		return nil
	}
}

func (w *EmbeddingWorker) recordOutcome(ctx context.Context, space models.Space, outcome string, start time.Time) {
	if w.deps.Metrics == nil {
		return
	}

	w.deps.Metrics.RecordEmbeddingOutcome(ctx, string(space), outcome)
	w.deps.Metrics.RecordEmbeddingDuration(ctx, time.Since(start), string(space))
}
