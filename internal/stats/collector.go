// Package stats provides metric collection interfaces and the access
// counters backing the cache's stats snapshot.
package stats

// Metric names used throughout the library.
const (
	// Read path.
	MetricGets         = "marginalia_gets_total"
	MetricL1Hits       = "marginalia_l1_hits_total"
	MetricL2Hits       = "marginalia_l2_hits_total"
	MetricSemanticHits = "marginalia_semantic_hits_total"
	MetricMisses       = "marginalia_misses_total"

	// Write path and maintenance.
	MetricSets            = "marginalia_sets_total"
	MetricEvictions       = "marginalia_evictions_total"
	MetricCorruptEntries  = "marginalia_corrupt_entries_total"
	MetricStoreErrors     = "marginalia_store_errors_total"
	MetricL2WritesDropped = "marginalia_l2_writes_dropped_total"
	MetricInvalidations   = "marginalia_invalidations_total"
	MetricInvalidatedKeys = "marginalia_invalidated_keys_total"
	MetricScopeViolations = "marginalia_scope_violations_total"

	// Generation.
	MetricGenerations      = "marginalia_generations_total"
	MetricGenerationErrors = "marginalia_generation_errors_total"
	MetricCoalescedWaits   = "marginalia_coalesced_waits_total"

	// Gauges and histograms.
	MetricL1Entries         = "marginalia_l1_entries"
	MetricL1Bytes           = "marginalia_l1_bytes"
	MetricGenerationSeconds = "marginalia_generation_seconds"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
