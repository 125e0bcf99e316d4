// Package cache provides persistent HTTP response caching backed by an
// embedded SQLite database file.
//
// Each API family gets its own database file ({cache_name}.db under the
// cache root). Responses are keyed by their normalized request
// signature (method plus URL with sorted query) and stored in a single
// table:
//
//	cache(key TEXT PRIMARY KEY, data BLOB, created_at REAL)
//
// created_at is epoch seconds, which keeps age-based expiry a single
// cutoff comparison.
//
// # Basic Usage
//
//	httpClient, manager, err := cache.BuildCachedHTTPClient(cache.Options{
//		UseCache:  true,
//		CacheName: "epo_ops",
//	})
//	if err != nil {
//		return err
//	}
//	defer manager.Close()
//
//	// Requests through httpClient are now cached transparently.
//
// # Cache Management
//
//	stats, err := manager.GetStats(ctx)
//	fmt.Printf("Hit rate: %.1f%%\n", stats.HitRate())
//
//	// Remove everything.
//	cleared, err := manager.ClearAll(ctx)
//
//	// Remove entries older than an hour.
//	cleared, err = manager.ClearExpired(ctx, time.Hour)
//
//	// Remove entries whose URL matches a pattern.
//	cleared, err = manager.InvalidatePattern(ctx, `api\.example\.com`)
//
// # Freshness
//
// Without an explicit TTL override, entry freshness follows standard
// HTTP caching headers (Cache-Control max-age, then Expires, then a
// 5 minute default). A non-zero TTL in Options overrides header-driven
// expiry for every entry stored by that client. Non-2xx responses are
// never cached.
//
// # Concurrency
//
// The store relies on SQLite's own file locking; transient
// SQLITE_BUSY errors are absorbed by a bounded retry with exponential
// backoff and jitter. Concurrent misses for the same key are collapsed
// into a single upstream request. Hit/miss counters are process-local
// and best-effort under concurrency.
//
// # Metrics
//
// The package exports Prometheus metrics over the default registry:
//
//   - iptools_cache_hits_total
//   - iptools_cache_misses_total
//   - iptools_cache_evictions_total{reason}
//   - iptools_cache_errors_total{operation}
package cache
