package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LayoutMetrics records layout pipeline and scan metrics with bounded
// cardinality (mode, outcome).
type LayoutMetrics interface {
	RecordLayoutRun(ctx context.Context, mode, outcome string)
	RecordLayoutDuration(ctx context.Context, duration time.Duration)
	RecordScan(ctx context.Context, outcome string)
}

type layoutMetrics struct {
	runs     metric.Int64Counter
	duration metric.Float64Histogram
	scans    metric.Int64Counter
}

// NewLayoutMetrics creates LayoutMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewLayoutMetrics(meter metric.Meter) (LayoutMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	runs, err := meter.Int64Counter(
		MetricNameLayoutRuns,
		metric.WithDescription("Per-mode layout run outcomes. Label mode: sphere, organic, manifold."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create layout runs counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameLayoutDuration,
		metric.WithDescription("Full layout pipeline duration (all modes plus merge) in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create layout duration histogram: %w", err)
	}

	scans, err := meter.Int64Counter(
		MetricNameScans,
		metric.WithDescription("Interactive scan outcomes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create scans counter: %w", err)
	}

	return &layoutMetrics{runs: runs, duration: duration, scans: scans}, nil
}

func (m *layoutMetrics) RecordLayoutRun(ctx context.Context, mode, outcome string) {
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrMode, Normalize(mode, AllowedModes)),
		attribute.String(AttrOutcome, Normalize(outcome, AllowedOutcomes)),
	))
}

func (m *layoutMetrics) RecordLayoutDuration(ctx context.Context, duration time.Duration) {
	m.duration.Record(ctx, duration.Seconds())
}

func (m *layoutMetrics) RecordScan(ctx context.Context, outcome string) {
	m.scans.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOutcome, Normalize(outcome, AllowedOutcomes)),
	))
}
