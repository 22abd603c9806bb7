package jobs

import (
	"context"
)

// JobInserter is an interface for enqueueing embedding jobs. Callers (API
// handlers, the backfill CLI) depend on this instead of River directly.
type JobInserter interface {
	// InsertEmbeddingJob enqueues an embedding generation job.
	InsertEmbeddingJob(ctx context.Context, args EmbeddingJobArgs) error
}
