package cache

// Stats describes cache usage and storage for one client.
//
// Hits and Misses are process-lifetime counters and reset on restart;
// EntryCount and SizeBytes reflect the persistent store.
type Stats struct {
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	EntryCount   int64  `json:"entry_count"`
	SizeBytes    int64  `json:"size_bytes"`
	DatabasePath string `json:"database_path"`
}

// HitRate returns the cache hit rate as a percentage. Returns 0 when no
// lookups have been recorded yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100
}

// SizeMB returns the cache size in megabytes.
func (s Stats) SizeMB() float64 {
	return float64(s.SizeBytes) / (1024 * 1024)
}
