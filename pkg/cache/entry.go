package cache

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultFreshness is the fallback freshness window when the
	// response carries no usable caching headers and no explicit TTL
	// override is configured.
	DefaultFreshness = 5 * time.Minute
)

// Entry represents a cached HTTP response.
type Entry struct {
	// Data is the response body.
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response.
	StatusCode int `json:"status_code"`

	// Header holds the response headers.
	Header http.Header `json:"header"`

	// CachedAt is when the response was stored.
	CachedAt time.Time `json:"cached_at"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry has gone stale.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Response rebuilds an http.Response from the entry. The returned
// response carries its own body reader and is safe to consume
// independently of other responses built from the same entry.
func (e *Entry) Response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        http.StatusText(e.StatusCode),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Data)),
		ContentLength: int64(len(e.Data)),
		Request:       req,
	}
}

// ResponseToEntry converts an HTTP response to a cache entry, reading
// and restoring the body. A non-zero ttl overrides header-driven
// expiry.
func ResponseToEntry(resp *http.Response, ttl time.Duration) (*Entry, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	entry := &Entry{
		Data:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		CachedAt:   now,
	}

	if ttl > 0 {
		entry.Expires = now.Add(ttl)
	} else {
		entry.Expires = headerExpiry(resp.Header, now)
	}

	return entry, nil
}

// headerExpiry derives the expiry time from standard HTTP caching
// headers: Cache-Control max-age wins over Expires; without either the
// default freshness window applies.
func headerExpiry(headers http.Header, now time.Time) time.Time {
	if maxAge, ok := parseMaxAge(headers.Get("Cache-Control")); ok {
		return now.Add(maxAge)
	}

	if expiresStr := headers.Get("Expires"); expiresStr != "" {
		if expires, err := http.ParseTime(expiresStr); err == nil {
			if expires.Before(now) {
				return now
			}
			return expires
		}
	}

	return now.Add(DefaultFreshness)
}

// parseMaxAge extracts the max-age directive from a Cache-Control
// header value. no-store and no-cache yield a zero freshness window.
func parseMaxAge(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	for _, directive := range strings.Split(value, ",") {
		directive = strings.TrimSpace(strings.ToLower(directive))
		if directive == "no-store" || directive == "no-cache" {
			return 0, true
		}
		if rest, ok := strings.CutPrefix(directive, "max-age="); ok {
			seconds, err := strconv.Atoi(rest)
			if err != nil || seconds < 0 {
				return 0, true
			}
			return time.Duration(seconds) * time.Second, true
		}
	}
	return 0, false
}
