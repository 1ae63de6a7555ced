// Package metrics holds package-level promauto vars tracking cache
// hits/misses per tier, evictions, retries, and prefetch activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequestsTotal counts every Get against a tier, labeled by
	// tier ("memory"/"disk") and outcome ("hit"/"miss").
	CacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagecache_requests_total",
		Help: "Total cache lookups by tier and outcome.",
	}, []string{"tier", "outcome"})

	// EvictionsTotal counts entries evicted, labeled by tier and reason
	// ("lru"/"ttl"/"explicit").
	EvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagecache_evictions_total",
		Help: "Total cache entries evicted by tier and reason.",
	}, []string{"tier", "reason"})

	// DownloadBytesTotal counts bytes received over HTTP.
	DownloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagecache_download_bytes_total",
		Help: "Total bytes downloaded from origin servers.",
	})

	// DownloadRetriesTotal counts retry attempts.
	DownloadRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagecache_download_retries_total",
		Help: "Total download retry attempts.",
	})

	// DownloadFailuresTotal counts final (non-retryable or
	// budget-exhausted) download failures.
	DownloadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagecache_download_failures_total",
		Help: "Total downloads that ultimately failed.",
	})

	// InFlightGauge tracks the current number of deduplicated in-flight
	// fetches.
	InFlightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imagecache_inflight_requests",
		Help: "Current number of in-flight (deduplicated) fetches.",
	})

	// PrefetchJobsGauge tracks the current number of tracked prefetch
	// jobs.
	PrefetchJobsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imagecache_prefetch_jobs",
		Help: "Current number of tracked prefetch jobs.",
	})

	// DiskBytesGauge tracks the measured disk cache size.
	DiskBytesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imagecache_disk_bytes",
		Help: "Current measured disk cache size in bytes.",
	})
)

// RecordHit/RecordMiss are small helpers so callers don't repeat the
// label pair at every call site.
func RecordHit(tier string)  { CacheRequestsTotal.WithLabelValues(tier, "hit").Inc() }
func RecordMiss(tier string) { CacheRequestsTotal.WithLabelValues(tier, "miss").Inc() }

// RecordEviction records one eviction for tier/reason.
func RecordEviction(tier, reason string) {
	EvictionsTotal.WithLabelValues(tier, reason).Inc()
}
