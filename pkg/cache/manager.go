package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMaxAge is the expiry window ClearExpired falls back to when
// the manager has no configured TTL.
const DefaultMaxAge = 24 * time.Hour

// Manager is the entry point clients use for cache introspection and
// control. It tracks process-lifetime hit/miss counters and hides the
// storage engine behind stats, clear and invalidate operations.
//
// One Manager belongs to one client instance; its counters are not
// persisted and reset each process start.
type Manager struct {
	databasePath string
	ttl          time.Duration
	maxRetries   int

	hits   atomic.Int64
	misses atomic.Int64

	mu    sync.Mutex
	store *Store
}

// ManagerConfig holds the configuration for a cache manager.
type ManagerConfig struct {
	// DatabasePath is the cache database file. Parent directories are
	// created eagerly.
	DatabasePath string

	// TTL is the default expiry window. Zero means header-driven
	// expiry for entries and a 24h window for ClearExpired.
	TTL time.Duration

	// MaxRetries bounds storage operation attempts under lock
	// contention (default 5).
	MaxRetries int
}

// NewManager creates a cache manager rooted at cfg.DatabasePath,
// creating parent directories as needed.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Manager{
		databasePath: cfg.DatabasePath,
		ttl:          cfg.TTL,
		maxRetries:   cfg.MaxRetries,
	}, nil
}

// DatabasePath returns the cache database file path.
func (m *Manager) DatabasePath() string {
	return m.databasePath
}

// TTL returns the configured default expiry window (zero when expiry
// is header-driven).
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Storage returns the lazily-constructed store handle.
func (m *Manager) Storage() *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		m.store = NewStore(m.databasePath, m.maxRetries)
	}
	return m.store
}

// RecordHit records a cache lookup that was served from storage.
func (m *Manager) RecordHit() {
	m.hits.Add(1)
	hitsTotal.Inc()
}

// RecordMiss records a cache lookup that went to the network.
func (m *Manager) RecordMiss() {
	m.misses.Add(1)
	missesTotal.Inc()
}

// GetStats returns current cache statistics, merging the live hit/miss
// counters with the persistent entry count and file size.
func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	store := m.Storage()
	count, err := store.EntryCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Hits:         m.hits.Load(),
		Misses:       m.misses.Load(),
		EntryCount:   count,
		SizeBytes:    store.SizeBytes(),
		DatabasePath: m.databasePath,
	}, nil
}

// ClearAll removes every cache entry and returns the number cleared.
func (m *Manager) ClearAll(ctx context.Context) (int64, error) {
	return m.Storage().ClearAll(ctx)
}

// ClearExpired removes entries older than maxAge. A zero maxAge uses
// the configured TTL, or 24 hours when none is set.
func (m *Manager) ClearExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		if m.ttl > 0 {
			maxAge = m.ttl
		} else {
			maxAge = DefaultMaxAge
		}
	}
	return m.Storage().ClearExpired(ctx, time.Now().Add(-maxAge))
}

// InvalidatePattern removes entries whose key matches the regular
// expression and returns the number removed.
func (m *Manager) InvalidatePattern(ctx context.Context, urlPattern string) (int64, error) {
	return m.Storage().InvalidatePattern(ctx, urlPattern)
}

// Close releases the storage handle. Safe to call multiple times.
func (m *Manager) Close() error {
	m.mu.Lock()
	store := m.store
	m.store = nil
	m.mu.Unlock()

	if store == nil {
		return nil
	}
	return store.Close()
}
