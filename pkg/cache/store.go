package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"

	"github.com/openip/iptools/pkg/retry"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	created_at REAL NOT NULL
)`

// Store is durable key-value storage for HTTP response entries, backed
// by a single SQLite database file. The database and its schema are
// created lazily on first write; read operations against a missing
// file or table report zero entries rather than an error.
type Store struct {
	path   string
	policy retry.Policy

	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// NewStore creates a store rooted at the given database file path.
// maxRetries bounds the attempts used to absorb transient lock
// contention; values below 1 fall back to the storage default.
func NewStore(path string, maxRetries int) *Store {
	policy := retry.StoragePolicy()
	if maxRetries >= 1 {
		policy.MaxAttempts = maxRetries
	}
	return &Store{path: path, policy: policy}
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// open returns the lazily-created database handle.
func (s *Store) open() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("cache store is closed")
	}
	if s.db != nil {
		return s.db, nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// A single writer avoids most SQLITE_BUSY churn under concurrent
	// requests; the retry policy absorbs the rest.
	db.SetMaxOpenConns(1)
	s.db = db
	return db, nil
}

// exists reports whether the database file has been created yet.
func (s *Store) exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// isBusy reports whether err is transient lock contention worth
// retrying.
func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		// SQLITE_BUSY (5) and SQLITE_LOCKED (6).
		code := se.Code()
		return code == 5 || code == 6
	}
	return err != nil && strings.Contains(err.Error(), "database is locked")
}

// isMissingTable reports whether err means the cache table has not
// been initialized by any write yet.
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// Get retrieves the entry stored under key. The second return value is
// false on a miss, including when the store file or table does not
// exist yet.
func (s *Store) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if !s.exists() {
		return nil, false, nil
	}
	db, err := s.open()
	if err != nil {
		return nil, false, err
	}

	var entry *Entry
	err = s.policy.DoRetryable(ctx, func() error {
		var data []byte
		row := db.QueryRowContext(ctx, `SELECT data FROM cache WHERE key = ?`, key)
		if err := row.Scan(&data); err != nil {
			if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
				entry = nil
				return nil
			}
			return err
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			// Corrupted entry, treat as a miss.
			entry = nil
			return nil
		}
		entry = &e
		return nil
	}, isBusy)
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return entry, entry != nil, nil
}

// Set stores entry under key, superseding any previous entry for that
// key. The schema is created on first write.
func (s *Store) Set(ctx context.Context, key string, entry *Entry) error {
	db, err := s.open()
	if err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	createdAt := float64(entry.CachedAt.UnixNano()) / float64(time.Second)

	err = s.policy.DoRetryable(ctx, func() error {
		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO cache (key, data, created_at) VALUES (?, ?, ?)`,
			key, data, createdAt)
		return err
	}, isBusy)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes the entry stored under key, if any.
func (s *Store) Delete(ctx context.Context, key string) error {
	if !s.exists() {
		return nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}

	err = s.policy.DoRetryable(ctx, func() error {
		_, err := db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key)
		if isMissingTable(err) {
			return nil
		}
		return err
	}, isBusy)
	if err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// EntryCount returns the number of stored entries. A missing file or
// table counts as zero.
func (s *Store) EntryCount(ctx context.Context) (int64, error) {
	if !s.exists() {
		return 0, nil
	}
	db, err := s.open()
	if err != nil {
		return 0, err
	}

	var count int64
	err = s.policy.DoRetryable(ctx, func() error {
		row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache`)
		if err := row.Scan(&count); err != nil {
			if isMissingTable(err) {
				count = 0
				return nil
			}
			return err
		}
		return nil
	}, isBusy)
	if err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return count, nil
}

// SizeBytes returns the size of the database file, or zero if it does
// not exist yet.
func (s *Store) SizeBytes() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// ClearAll deletes every entry and returns the prior count. A missing
// file or table clears nothing.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	if !s.exists() {
		return 0, nil
	}
	db, err := s.open()
	if err != nil {
		return 0, err
	}

	var cleared int64
	err = s.policy.DoRetryable(ctx, func() error {
		row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache`)
		if err := row.Scan(&cleared); err != nil {
			if isMissingTable(err) {
				cleared = 0
				return nil
			}
			return err
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM cache`); err != nil {
			return err
		}
		return nil
	}, isBusy)
	if err != nil {
		return 0, fmt.Errorf("cache clear: %w", err)
	}

	evictionsTotal.WithLabelValues("clear").Add(float64(cleared))
	return cleared, nil
}

// ClearExpired deletes entries created before the cutoff and returns
// the number removed.
func (s *Store) ClearExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if !s.exists() {
		return 0, nil
	}
	db, err := s.open()
	if err != nil {
		return 0, err
	}

	cutoffTS := float64(cutoff.UnixNano()) / float64(time.Second)

	var cleared int64
	err = s.policy.DoRetryable(ctx, func() error {
		res, err := db.ExecContext(ctx, `DELETE FROM cache WHERE created_at < ?`, cutoffTS)
		if err != nil {
			if isMissingTable(err) {
				cleared = 0
				return nil
			}
			return err
		}
		cleared, err = res.RowsAffected()
		return err
	}, isBusy)
	if err != nil {
		return 0, fmt.Errorf("cache clear expired: %w", err)
	}

	evictionsTotal.WithLabelValues("expired").Add(float64(cleared))
	return cleared, nil
}

// InvalidatePattern deletes every entry whose key matches the regular
// expression and returns the number removed. The scan loads all keys
// into memory, which is fine for caches bounded to tens of thousands
// of entries.
func (s *Store) InvalidatePattern(ctx context.Context, urlPattern string) (int64, error) {
	re, err := regexp.Compile(urlPattern)
	if err != nil {
		return 0, fmt.Errorf("invalid url pattern: %w", err)
	}

	if !s.exists() {
		return 0, nil
	}
	db, err := s.open()
	if err != nil {
		return 0, err
	}

	var cleared int64
	err = s.policy.DoRetryable(ctx, func() error {
		rows, err := db.QueryContext(ctx, `SELECT key FROM cache`)
		if err != nil {
			if isMissingTable(err) {
				cleared = 0
				return nil
			}
			return err
		}
		defer rows.Close()

		var matched []any
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			if re.MatchString(key) {
				matched = append(matched, key)
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(matched) == 0 {
			cleared = 0
			return nil
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(matched)), ",")
		if _, err := db.ExecContext(ctx,
			`DELETE FROM cache WHERE key IN (`+placeholders+`)`, matched...); err != nil {
			return err
		}
		cleared = int64(len(matched))
		return nil
	}, isBusy)
	if err != nil {
		return 0, fmt.Errorf("cache invalidate: %w", err)
	}

	evictionsTotal.WithLabelValues("invalidate").Add(float64(cleared))
	return cleared, nil
}

// Close releases the database handle. Safe to call multiple times,
// including on a store that was never opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
