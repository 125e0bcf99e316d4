package cache

import (
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Options configures BuildCachedHTTPClient.
type Options struct {
	// UseCache enables the persistent response cache.
	UseCache bool

	// CacheName names the cache database file ({CacheName}.db).
	CacheName string

	// CacheDir overrides the cache root directory.
	CacheDir string

	// TTL overrides header-driven expiry for all cached entries.
	TTL time.Duration

	// MaxRetries bounds storage operation attempts (default 5).
	MaxRetries int

	// Headers are merged into every request as fallback values.
	Headers map[string]string

	// Base is the underlying transport (default http.DefaultTransport).
	Base http.RoundTripper

	// Timeout is the overall client timeout (default 30s).
	Timeout time.Duration
}

// DefaultCacheDir returns the per-user cache root.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "iptools")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "iptools")
}

// BuildCachedHTTPClient returns an http.Client with optional response
// caching and the cache manager owning the store. The manager is nil
// when caching is disabled.
func BuildCachedHTTPClient(opts Options) (*http.Client, *Manager, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if !opts.UseCache {
		return &http.Client{
			Transport: NewTransport(opts.Base, nil, opts.Headers, 0),
			Timeout:   timeout,
		}, nil, nil
	}

	cacheName := opts.CacheName
	if cacheName == "" {
		cacheName = "default"
	}
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}

	manager, err := NewManager(ManagerConfig{
		DatabasePath: filepath.Join(cacheDir, cacheName+".db"),
		TTL:          opts.TTL,
		MaxRetries:   opts.MaxRetries,
	})
	if err != nil {
		return nil, nil, err
	}

	return &http.Client{
		Transport: NewTransport(opts.Base, manager, opts.Headers, opts.TTL),
		Timeout:   timeout,
	}, manager, nil
}
