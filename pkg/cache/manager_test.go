package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// populateDB creates a cache database with three entries: fresh,
// one hour old, and two hours old. The two-hour entry lives on a
// different host so pattern tests can tell them apart.
func populateDB(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(createTableSQL); err != nil {
		t.Fatalf("create table: %v", err)
	}

	now := float64(time.Now().UnixNano()) / float64(time.Second)
	rows := []struct {
		key       string
		createdAt float64
	}{
		{"GET https://api.example.com/resource/1", now},
		{"GET https://api.example.com/resource/2", now - 3600},
		{"GET https://api.other.com/item/abc", now - 7200},
	}
	for _, row := range rows {
		if _, err := db.Exec(
			`INSERT INTO cache (key, data, created_at) VALUES (?, ?, ?)`,
			row.key, []byte("data"), row.createdAt); err != nil {
			t.Fatalf("insert %q: %v", row.key, err)
		}
	}
}

func newTestManager(t *testing.T, path string) *Manager {
	t.Helper()
	manager, err := NewManager(ManagerConfig{DatabasePath: path})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestNewManager_CreatesParentDirectories(t *testing.T) {
	deep := filepath.Join(t.TempDir(), "a", "b", "c", "cache.db")
	newTestManager(t, deep)

	if _, err := os.Stat(filepath.Dir(deep)); err != nil {
		t.Errorf("parent directory not created: %v", err)
	}
}

func TestNewManager_RequiresPath(t *testing.T) {
	if _, err := NewManager(ManagerConfig{}); err == nil {
		t.Error("expected error for empty database path")
	}
}

func TestManager_RecordHitAndMiss(t *testing.T) {
	manager := newTestManager(t, filepath.Join(t.TempDir(), "cache.db"))

	manager.RecordHit()
	manager.RecordHit()
	manager.RecordMiss()

	stats, err := manager.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
	want := 2.0 / 3.0 * 100
	if got := stats.HitRate(); got < want-0.01 || got > want+0.01 {
		t.Errorf("HitRate() = %v, want ~%v", got, want)
	}
}

func TestManager_GetStats_MissingDatabase(t *testing.T) {
	manager := newTestManager(t, filepath.Join(t.TempDir(), "missing.db"))

	stats, err := manager.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.EntryCount != 0 {
		t.Errorf("EntryCount = %d, want 0", stats.EntryCount)
	}
	if stats.SizeBytes != 0 {
		t.Errorf("SizeBytes = %d, want 0", stats.SizeBytes)
	}
}

func TestManager_GetStats_Populated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	populateDB(t, path)
	manager := newTestManager(t, path)

	stats, err := manager.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.EntryCount != 3 {
		t.Errorf("EntryCount = %d, want 3", stats.EntryCount)
	}
	if stats.SizeBytes == 0 {
		t.Error("SizeBytes = 0, want > 0")
	}
	if stats.DatabasePath != path {
		t.Errorf("DatabasePath = %q, want %q", stats.DatabasePath, path)
	}
}

func TestManager_ClearAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	populateDB(t, path)
	manager := newTestManager(t, path)
	ctx := context.Background()

	cleared, err := manager.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}
	if cleared != 3 {
		t.Errorf("ClearAll() = %d, want 3", cleared)
	}

	stats, err := manager.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.EntryCount != 0 {
		t.Errorf("EntryCount after clear = %d, want 0", stats.EntryCount)
	}
}

func TestManager_ClearAll_MissingDatabase(t *testing.T) {
	manager := newTestManager(t, filepath.Join(t.TempDir(), "missing.db"))

	cleared, err := manager.ClearAll(context.Background())
	if err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}
	if cleared != 0 {
		t.Errorf("ClearAll() = %d, want 0", cleared)
	}
}

func TestManager_ClearExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	populateDB(t, path)
	manager := newTestManager(t, path)
	ctx := context.Background()

	// Only the two-hour-old entry is past a 90 minute cutoff.
	cleared, err := manager.ClearExpired(ctx, 90*time.Minute)
	if err != nil {
		t.Fatalf("ClearExpired() error: %v", err)
	}
	if cleared != 1 {
		t.Errorf("ClearExpired(90m) = %d, want 1", cleared)
	}

	stats, err := manager.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", stats.EntryCount)
	}
}

func TestManager_ClearExpired_ShortCutoff(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	populateDB(t, path)
	manager := newTestManager(t, path)

	// Both the 1h and 2h entries are past a 30 minute cutoff.
	cleared, err := manager.ClearExpired(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatalf("ClearExpired() error: %v", err)
	}
	if cleared != 2 {
		t.Errorf("ClearExpired(30m) = %d, want 2", cleared)
	}
}

func TestManager_ClearExpired_DefaultsToTTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	populateDB(t, path)

	manager, err := NewManager(ManagerConfig{DatabasePath: path, TTL: 90 * time.Minute})
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	defer manager.Close()

	cleared, err := manager.ClearExpired(context.Background(), 0)
	if err != nil {
		t.Fatalf("ClearExpired() error: %v", err)
	}
	if cleared != 1 {
		t.Errorf("ClearExpired(0) with 90m TTL = %d, want 1", cleared)
	}
}

func TestManager_InvalidatePattern(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		pattern string
		want    int64
	}{
		{"matches one host", `api\.example\.com`, 2},
		{"matches nothing", `nonexistent\.domain`, 0},
		{"anchored resource", `/resource/1$`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.db")
			populateDB(t, path)
			manager := newTestManager(t, path)

			cleared, err := manager.InvalidatePattern(ctx, tt.pattern)
			if err != nil {
				t.Fatalf("InvalidatePattern(%q) error: %v", tt.pattern, err)
			}
			if cleared != tt.want {
				t.Errorf("InvalidatePattern(%q) = %d, want %d", tt.pattern, cleared, tt.want)
			}
		})
	}
}

func TestManager_InvalidatePattern_BadRegexp(t *testing.T) {
	manager := newTestManager(t, filepath.Join(t.TempDir(), "cache.db"))

	if _, err := manager.InvalidatePattern(context.Background(), `(`); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestManager_Close_Idempotent(t *testing.T) {
	manager := newTestManager(t, filepath.Join(t.TempDir(), "cache.db"))

	if err := manager.Close(); err != nil {
		t.Errorf("first Close() error: %v", err)
	}
	if err := manager.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
