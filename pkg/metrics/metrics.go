// Package metrics documents the Prometheus metrics exported by the
// iptools packages. Metrics are defined in their owning packages
// (cache, client, retry, ratelimit) to keep the dependency graph flat;
// this package holds the inventory and the shared registry reference.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registry the iptools metrics register
// against (via promauto in their owning packages).
var Registry = prometheus.DefaultRegisterer

// Metric inventory
//
// Cache (pkg/cache):
//   - iptools_cache_hits_total (Counter): cache hits
//   - iptools_cache_misses_total (Counter): cache misses
//   - iptools_cache_evictions_total{reason} (Counter): removed entries
//     by reason (clear, expired, invalidate, stale)
//   - iptools_cache_errors_total{operation} (Counter): storage faults
//     by operation (get, set, delete)
//
// Requests (pkg/client):
//   - iptools_requests_total{service, status} (Counter)
//   - iptools_request_duration_seconds{service} (Histogram)
//   - iptools_errors_total{service, kind} (Counter): kinds are
//     not_found, rate_limit, auth, server, api, network
//
// Retry (pkg/retry):
//   - iptools_retries_total{operation} (Counter)
//   - iptools_retry_backoff_seconds{operation} (Histogram)
//   - iptools_retry_exhausted_total{operation} (Counter)
//
// OPS throttling (pkg/ratelimit):
//   - iptools_ops_quota_per_minute{service} (Gauge)
//   - iptools_ops_throttled_total{service} (Counter)
//
// Example queries:
//
//	# Cache hit rate
//	rate(iptools_cache_hits_total[5m]) /
//	(rate(iptools_cache_hits_total[5m]) + rate(iptools_cache_misses_total[5m]))
//
//	# P95 request latency per service
//	histogram_quantile(0.95, rate(iptools_request_duration_seconds_bucket[5m]))
