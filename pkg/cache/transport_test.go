package cache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, ttl time.Duration) (*http.Client, *Manager) {
	t.Helper()
	httpClient, manager, err := BuildCachedHTTPClient(Options{
		UseCache: true,
		CacheDir: t.TempDir(),
		TTL:      ttl,
	})
	if err != nil {
		t.Fatalf("BuildCachedHTTPClient() error: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return httpClient, manager
}

func TestTransport_MissThenHit(t *testing.T) {
	var upstream int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstream, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value":42}`))
	}))
	defer server.Close()

	httpClient, manager := newTestClient(t, time.Hour)

	for i := 0; i < 3; i++ {
		resp, err := httpClient.Get(server.URL + "/resource")
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if string(body) != `{"value":42}` {
			t.Errorf("request %d body = %q", i, body)
		}
	}

	if n := atomic.LoadInt64(&upstream); n != 1 {
		t.Errorf("upstream requests = %d, want 1", n)
	}

	stats, err := manager.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("stats = %d hits / %d misses, want 2 / 1", stats.Hits, stats.Misses)
	}
}

func TestTransport_ErrorsNotCached(t *testing.T) {
	var upstream int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstream, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	httpClient, _ := newTestClient(t, time.Hour)

	for i := 0; i < 2; i++ {
		resp, err := httpClient.Get(server.URL + "/broken")
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("request %d status = %d, want 500", i, resp.StatusCode)
		}
	}

	if n := atomic.LoadInt64(&upstream); n != 2 {
		t.Errorf("upstream requests = %d, want 2 (errors must not be cached)", n)
	}
}

func TestTransport_PostNotCached(t *testing.T) {
	var upstream int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstream, 1)
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	httpClient, _ := newTestClient(t, time.Hour)

	for i := 0; i < 2; i++ {
		resp, err := httpClient.Post(server.URL+"/submit", "application/json", nil)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		resp.Body.Close()
	}

	if n := atomic.LoadInt64(&upstream); n != 2 {
		t.Errorf("upstream requests = %d, want 2 (POST bypasses the cache)", n)
	}
}

func TestTransport_StaleEntryRefetched(t *testing.T) {
	var upstream int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstream, 1)
		w.Write([]byte("fresh"))
	}))
	defer server.Close()

	httpClient, manager := newTestClient(t, 10*time.Millisecond)

	resp, err := httpClient.Get(server.URL + "/short-lived")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	time.Sleep(30 * time.Millisecond)

	resp, err = httpClient.Get(server.URL + "/short-lived")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if n := atomic.LoadInt64(&upstream); n != 2 {
		t.Errorf("upstream requests = %d, want 2 after expiry", n)
	}

	stats, err := manager.GetStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Misses != 2 {
		t.Errorf("misses = %d, want 2", stats.Misses)
	}
}

func TestTransport_DefaultHeaders(t *testing.T) {
	var gotUA, gotLang, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotCustom = r.Header.Get("X-API-KEY")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	httpClient, _, err := BuildCachedHTTPClient(Options{
		Headers: map[string]string{"X-API-KEY": "secret"},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := httpClient.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Errorf("User-Agent = %q, want browser-style default", gotUA)
	}
	if gotLang != "en-US,en;q=0.9" {
		t.Errorf("Accept-Language = %q", gotLang)
	}
	if gotCustom != "secret" {
		t.Errorf("X-API-KEY = %q, want %q", gotCustom, "secret")
	}
}

func TestTransport_DoesNotModifyCallerRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	transport := NewTransport(nil, nil, map[string]string{"X-API-KEY": "secret"}, 0)

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	// Fallback headers go onto an internal clone, never the caller's
	// request.
	if got := req.Header.Get("User-Agent"); got != "" {
		t.Errorf("caller User-Agent = %q, want untouched", got)
	}
	if got := req.Header.Get("X-API-KEY"); got != "" {
		t.Errorf("caller X-API-KEY = %q, want untouched", got)
	}
}

func TestTransport_CallerHeaderWins(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	httpClient, _, err := BuildCachedHTTPClient(Options{})
	if err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "iptools-test/1.0")
	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if gotUA != "iptools-test/1.0" {
		t.Errorf("User-Agent = %q, want caller value preserved", gotUA)
	}
}

func TestTransport_PersistsAcrossClients(t *testing.T) {
	var upstream int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&upstream, 1)
		w.Write([]byte("persisted"))
	}))
	defer server.Close()

	dir := t.TempDir()
	build := func() (*http.Client, *Manager) {
		c, m, err := BuildCachedHTTPClient(Options{
			UseCache: true,
			CacheDir: dir,
			TTL:      time.Hour,
		})
		if err != nil {
			t.Fatal(err)
		}
		return c, m
	}

	first, manager := build()
	resp, err := first.Get(server.URL + "/doc")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if err := manager.Close(); err != nil {
		t.Fatal(err)
	}

	second, manager := build()
	defer manager.Close()
	resp, err = second.Get(server.URL + "/doc")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if string(body) != "persisted" {
		t.Errorf("body = %q, want %q", body, "persisted")
	}
	if n := atomic.LoadInt64(&upstream); n != 1 {
		t.Errorf("upstream requests = %d, want 1 (entry must survive reopen)", n)
	}

	if _, err := filepath.Glob(filepath.Join(dir, "*.db")); err != nil {
		t.Fatal(err)
	}
}
