// Package stats provides a unified interface for collecting worker metrics.
package stats

// Metric names used throughout the worker.
const (
	// Fetch routing.
	MetricFetches          = "swcache_fetches_total"
	MetricFetchLatency     = "swcache_fetch_latency_seconds"
	MetricNetworkErrors    = "swcache_network_errors_total"
	MetricOfflineFallbacks = "swcache_offline_fallbacks_total"
	MetricRevalidations    = "swcache_revalidations_total"

	// Cache stores.
	MetricCacheHits      = "swcache_cache_hits_total"
	MetricCacheMisses    = "swcache_cache_misses_total"
	MetricCacheWrites    = "swcache_cache_writes_total"
	MetricCacheErrors    = "swcache_cache_errors_total"
	MetricCacheEvictions = "swcache_cache_evictions_total"
	MetricCacheSize      = "swcache_cache_size"

	// Background sync.
	MetricSyncEnqueued = "swcache_sync_enqueued_total"
	MetricSyncReplayed = "swcache_sync_replayed_total"
	MetricSyncFailed   = "swcache_sync_failed_total"
	MetricSyncPending  = "swcache_sync_pending"

	// Push notifications.
	MetricPushShown   = "swcache_push_shown_total"
	MetricPushDropped = "swcache_push_dropped_total"
	MetricPushClicks  = "swcache_push_clicks_total"
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
