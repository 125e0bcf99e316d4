package cache

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/openip/iptools/pkg/logging"
)

// Default headers merged into every outbound request. Caller-supplied
// values take precedence; these act as a fallback only.
var defaultHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/127.0.0.0 Safari/537.36",
	"Accept-Language": "en-US,en;q=0.9",
}

// Transport is an http.RoundTripper with transparent read-through
// response caching. GET and HEAD responses are looked up in the store
// by normalized (method, URL) signature; hits are served from storage,
// misses go to the network and successful responses are stored.
//
// With a nil manager the transport only merges default headers and
// passes requests straight through.
type Transport struct {
	base    http.RoundTripper
	manager *Manager
	headers map[string]string
	ttl     time.Duration
	group   singleflight.Group
	logger  zerolog.Logger
}

// captured is a network response snapshot shared between collapsed
// concurrent requests. Each caller synthesizes its own http.Response
// from it.
type captured struct {
	status int
	header http.Header
	body   []byte
}

// NewTransport wraps base with response caching through manager.
// Extra headers are merged on top of the built-in defaults. A non-zero
// ttl overrides header-driven expiry for all entries stored by this
// transport.
func NewTransport(base http.RoundTripper, manager *Manager, headers map[string]string, ttl time.Duration) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	merged := make(map[string]string, len(defaultHeaders)+len(headers))
	for k, v := range defaultHeaders {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	return &Transport{
		base:    base,
		manager: manager,
		headers: merged,
		ttl:     ttl,
		logger:  logging.NewLogger("cache-transport"),
	}
}

// RoundTrip implements http.RoundTripper. The caller's request is
// never modified; fallback headers go onto a clone.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	if t.manager == nil || !cacheable(req.Method) {
		return t.base.RoundTrip(req)
	}

	key := Key{Method: req.Method, URL: req.URL}.String()
	store := t.manager.Storage()
	ctx := req.Context()

	entry, ok, err := store.Get(ctx, key)
	if err != nil {
		storeErrorsTotal.WithLabelValues("get").Inc()
		t.logger.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
	}
	if ok && !entry.IsExpired() {
		t.manager.RecordHit()
		t.logger.Debug().Str("key", key).Msg("Cache hit")
		return entry.Response(req), nil
	}
	if ok {
		// Stale entry, superseded by the re-fetch below.
		if err := store.Delete(ctx, key); err != nil {
			storeErrorsTotal.WithLabelValues("delete").Inc()
		} else {
			evictionsTotal.WithLabelValues("stale").Inc()
		}
	}

	t.manager.RecordMiss()
	t.logger.Debug().Str("key", key).Msg("Cache miss")

	// Collapse concurrent misses for the same key into one upstream
	// request; every caller gets its own response built from the
	// shared capture.
	v, err, _ := t.group.Do(key, func() (any, error) {
		return t.fetch(req, key)
	})
	if err != nil {
		return nil, err
	}

	cap := v.(*captured)
	return (&Entry{
		Data:       cap.body,
		StatusCode: cap.status,
		Header:     cap.header,
	}).Response(req), nil
}

// fetch performs the network call, stores a cacheable response and
// returns the captured snapshot.
func (t *Transport) fetch(req *http.Request, key string) (*captured, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	// Only successful responses are cached.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		entry, err := ResponseToEntry(resp, t.ttl)
		if err == nil && entry.TTL() > 0 {
			if err := t.manager.Storage().Set(req.Context(), key, entry); err != nil {
				storeErrorsTotal.WithLabelValues("set").Inc()
				t.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
			} else {
				t.logger.Debug().
					Str("key", key).
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return &captured{
		status: resp.StatusCode,
		header: resp.Header.Clone(),
		body:   body,
	}, nil
}

// cacheable reports whether responses to the given method are eligible
// for caching.
func cacheable(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == ""
}
