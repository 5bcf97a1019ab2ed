// Package metrics provides a unified interface for exporting cache counters.
package metrics

// Metric names used throughout the library.
const (
	MetricHits      = "strata_hits_total"
	MetricMisses    = "strata_misses_total"
	MetricErrors    = "strata_errors_total"
	MetricEvictions = "strata_evictions_total"
	MetricEntries   = "strata_entries"
	MetricFallbacks = "strata_fallback_hits_total"
)

// Collector receives counter and gauge updates from the cache layers.
// Implementations must be safe for concurrent use.
type Collector interface {
	// IncCounter increments a counter metric by delta for the given layer.
	IncCounter(name, layer string, delta int64)

	// SetGauge sets a gauge metric to value for the given layer.
	SetGauge(name, layer string, value int64)
}
