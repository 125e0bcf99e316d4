package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// hitsTotal tracks cache hits across all managers in the process.
	hitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptools_cache_hits_total",
		Help: "Total number of cache hits",
	})

	// missesTotal tracks cache misses.
	missesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iptools_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// evictionsTotal tracks removed entries by reason.
	evictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptools_cache_evictions_total",
		Help: "Total number of cache entries removed by reason",
	}, []string{"reason"}) // "clear", "expired", "invalidate", "stale"

	// storeErrorsTotal tracks cache storage failures that were not
	// absorbed as zero results.
	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptools_cache_errors_total",
		Help: "Total number of cache storage errors by operation",
	}, []string{"operation"}) // "get", "set", "delete"
)
