// Package observability provides OpenTelemetry metrics (Prometheus exporter)
// and optional tracing for the cartographer API.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameRequestCount      = "drift_http_requests_total"
	MetricNameRequestDuration   = "drift_http_request_duration_seconds"
	MetricNameCacheHits         = "drift_cache_hits_total"
	MetricNameCacheMisses       = "drift_cache_misses_total"
	MetricNameLayoutRuns        = "drift_layout_runs_total"
	MetricNameLayoutDuration    = "drift_layout_duration_seconds"
	MetricNameScans             = "drift_scans_total"
	MetricNameEmbeddingJobs     = "drift_embedding_jobs_enqueued_total"
	MetricNameEmbeddingOutcomes = "drift_embedding_outcomes_total"
	MetricNameEmbeddingDuration = "drift_embedding_duration_seconds"
)

// Attribute keys.
const (
	AttrMode    = "mode"
	AttrOutcome = "outcome"
	AttrSpace   = "space"
	AttrCache   = "cache"
)

// Outcome values for layout runs, scans, and embedding jobs.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// AllowedModes bounds the mode attribute cardinality.
var AllowedModes = map[string]bool{
	"sphere":   true,
	"organic":  true,
	"manifold": true,
}

// AllowedOutcomes bounds the outcome attribute for layout runs, scans, and
// embedding jobs.
var AllowedOutcomes = map[string]bool{
	"success": true,
	"skipped": true,
	"error":   true,
}

// AllowedSpaces bounds the space attribute.
var AllowedSpaces = map[string]bool{
	"human": true,
	"ai":    true,
}

// AllowedCacheNames bounds the cache attribute.
var AllowedCacheNames = map[string]bool{
	"layout_document": true,
}

// Normalize returns value if in allowed, otherwise "other".
func Normalize(value string, allowed map[string]bool) string {
	if allowed[value] {
		return value
	}

	return "other"
}

// NormalizeCacheName returns name if it is a known cache, otherwise "other".
func NormalizeCacheName(name string) string {
	return Normalize(name, AllowedCacheNames)
}
