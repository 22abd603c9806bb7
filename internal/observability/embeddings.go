package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EmbeddingMetrics records embedding backfill metrics (enqueue, worker).
// Methods accept ctx for future exemplar support.
type EmbeddingMetrics interface {
	RecordJobsEnqueued(ctx context.Context, space string, count int64)
	RecordEmbeddingOutcome(ctx context.Context, space, outcome string)
	RecordEmbeddingDuration(ctx context.Context, duration time.Duration, space string)
}

// embeddingMetrics implements EmbeddingMetrics.
type embeddingMetrics struct {
	jobsEnqueued metric.Int64Counter
	outcomes     metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameEmbeddingJobs,
		metric.WithDescription("Total embedding jobs enqueued per space"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding jobs enqueued counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		MetricNameEmbeddingOutcomes,
		metric.WithDescription("Total embedding job outcomes by space and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding outcomes counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Embedding job duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	return &embeddingMetrics{
		jobsEnqueued: jobsEnqueued,
		outcomes:     outcomes,
		duration:     duration,
	}, nil
}

func attrSpace(space string) attribute.KeyValue {
	return attribute.String(AttrSpace, Normalize(space, AllowedSpaces))
}

func (e *embeddingMetrics) RecordJobsEnqueued(ctx context.Context, space string, count int64) {
	e.jobsEnqueued.Add(ctx, count, metric.WithAttributes(attrSpace(space)))
}

func (e *embeddingMetrics) RecordEmbeddingOutcome(ctx context.Context, space, outcome string) {
	e.outcomes.Add(ctx, 1, metric.WithAttributes(
		attrSpace(space),
		attribute.String(AttrOutcome, Normalize(outcome, AllowedOutcomes)),
	))
}

func (e *embeddingMetrics) RecordEmbeddingDuration(ctx context.Context, duration time.Duration, space string) {
	e.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrSpace(space)))
}
