// Package client provides the shared request core for the patent-office
// API clients: cached HTTP transport, retry with backoff, and uniform
// translation of upstream HTTP status codes into a typed error
// taxonomy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/openip/iptools/pkg/cache"
	"github.com/openip/iptools/pkg/logging"
	"github.com/openip/iptools/pkg/retry"
)

// Prometheus metrics for request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptools_requests_total",
		Help: "Total requests by service and status",
	}, []string{"service", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "iptools_request_duration_seconds",
		Help:    "Request duration in seconds by service",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"service"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptools_errors_total",
		Help: "Total request errors by service and kind",
	}, []string{"service", "kind"})
)

// Config holds the configuration common to every API-family client.
type Config struct {
	// BaseURL is the API root; trailing slashes are stripped.
	BaseURL string

	// Service names the API family. It doubles as the cache database
	// name and the metrics label.
	Service string

	// HTTPClient supplies an external transport. The client does not
	// own it (it is never closed) and no cache manager is created.
	HTTPClient *http.Client

	// UseCache enables the persistent response cache when the client
	// owns its transport.
	UseCache bool

	// CacheDir overrides the cache root directory.
	CacheDir string

	// TTL overrides header-driven cache expiry.
	TTL time.Duration

	// MaxRetries is the request attempt budget (default 4).
	MaxRetries int

	// Headers are merged into every request as fallback values.
	Headers map[string]string
}

// DefaultConfig returns the standard configuration for an API family.
func DefaultConfig(baseURL, service string) Config {
	return Config{
		BaseURL:    baseURL,
		Service:    service,
		UseCache:   true,
		MaxRetries: 4,
	}
}

// Client is the single choke point through which every outbound
// request for one API family passes.
type Client struct {
	baseURL string
	service string
	httpc   *http.Client
	manager *cache.Manager
	owns    bool
	policy  retry.Policy
	headers map[string]string
	logger  zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New creates a client. Without an external HTTPClient the client
// builds and owns a cached transport plus (when caching is enabled) a
// cache manager rooted at {cache_dir}/{service}.db.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	service := cfg.Service
	if service == "" {
		service = "default"
	}

	policy := retry.DefaultPolicy(service)
	if cfg.MaxRetries >= 1 {
		policy.MaxAttempts = cfg.MaxRetries
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		service: service,
		policy:  policy,
		logger:  logging.NewLogger("client").With().Str("service", service).Logger(),
	}

	if cfg.HTTPClient != nil {
		c.httpc = cfg.HTTPClient
		c.headers = cfg.Headers
		return c, nil
	}

	httpc, manager, err := cache.BuildCachedHTTPClient(cache.Options{
		UseCache:  cfg.UseCache,
		CacheName: service,
		CacheDir:  cfg.CacheDir,
		TTL:       cfg.TTL,
		Headers:   cfg.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}
	c.httpc = httpc
	c.manager = manager
	c.owns = true
	return c, nil
}

// RequestOptions carries the optional parts of a request.
type RequestOptions struct {
	// Params are query parameters.
	Params url.Values

	// JSONBody is marshaled as the request body.
	JSONBody any

	// Context is a short label prefixed to error messages.
	Context string

	// Timeout bounds each attempt; zero uses the transport default.
	Timeout time.Duration
}

// Request issues an HTTP request against the configured base URL and
// returns the response. Terminal non-2xx statuses are translated into
// the typed error taxonomy; server faults, throttling and transport
// failures are retried with backoff up to the attempt budget, and the
// final attempt's error propagates unchanged.
func (c *Client) Request(ctx context.Context, method, path string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	fullURL := c.baseURL + path
	if len(opts.Params) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + opts.Params.Encode()
	}

	var body []byte
	if opts.JSONBody != nil {
		var err error
		body, err = json.Marshal(opts.JSONBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(c.service).Observe(time.Since(start).Seconds())
	}()

	var resp *http.Response
	err := c.policy.DoRetryable(ctx, func() error {
		var attemptErr error
		resp, attemptErr = c.attempt(ctx, method, fullURL, body, opts)
		return attemptErr
	}, retryableError)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// attempt performs one HTTP call and classifies the outcome.
func (c *Client) attempt(ctx context.Context, method, fullURL string, body []byte, opts *RequestOptions) (*http.Response, error) {
	attemptCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(c.service, "network").Inc()
		c.logger.Warn().Err(err).Str("url", fullURL).Msg("Request failed")
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		requestsTotal.WithLabelValues(c.service, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		return resp, nil
	}

	requestsTotal.WithLabelValues(c.service, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	diag, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	statusErr := statusError(resp.StatusCode, string(diag), opts.Context)
	errorsTotal.WithLabelValues(c.service, errorKind(statusErr)).Inc()
	c.logger.Warn().
		Int("status", resp.StatusCode).
		Str("url", fullURL).
		Str("kind", errorKind(statusErr)).
		Msg("Upstream error")
	return nil, statusErr
}

// errorKind labels a typed error for metrics.
func errorKind(err error) string {
	switch err.(type) {
	case *NotFoundError:
		return "not_found"
	case *RateLimitError:
		return "rate_limit"
	case *AuthError:
		return "auth"
	case *ServerError:
		return "server"
	default:
		return "api"
	}
}

// RequestJSON issues a request and decodes the response body as JSON.
func (c *Client) RequestJSON(ctx context.Context, method, path string, opts *RequestOptions) (map[string]any, error) {
	resp, err := c.Request(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return DecodeJSON(resp)
}

// DecodeJSON decodes a response body into a generic mapping. The body
// is not closed.
func DecodeJSON(resp *http.Response) (map[string]any, error) {
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CacheEnabled reports whether this client has a cache manager.
func (c *Client) CacheEnabled() bool {
	return c.manager != nil
}

// CacheStats returns cache statistics, or ErrCachingDisabled.
func (c *Client) CacheStats(ctx context.Context) (cache.Stats, error) {
	if c.manager == nil {
		return cache.Stats{}, ErrCachingDisabled
	}
	return c.manager.GetStats(ctx)
}

// CacheClear removes all cache entries, or fails with
// ErrCachingDisabled.
func (c *Client) CacheClear(ctx context.Context) (int64, error) {
	if c.manager == nil {
		return 0, ErrCachingDisabled
	}
	return c.manager.ClearAll(ctx)
}

// CacheClearExpired removes entries older than maxAge (zero: the
// configured TTL, else 24h), or fails with ErrCachingDisabled.
func (c *Client) CacheClearExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	if c.manager == nil {
		return 0, ErrCachingDisabled
	}
	return c.manager.ClearExpired(ctx, maxAge)
}

// CacheInvalidate removes entries whose key matches the regular
// expression, or fails with ErrCachingDisabled.
func (c *Client) CacheInvalidate(ctx context.Context, urlPattern string) (int64, error) {
	if c.manager == nil {
		return 0, ErrCachingDisabled
	}
	return c.manager.InvalidatePattern(ctx, urlPattern)
}

// Close releases the transport and cache manager if this client owns
// them. Safe to call multiple times; externally supplied transports
// are never closed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if !c.owns {
			return
		}
		c.httpc.CloseIdleConnections()
		if c.manager != nil {
			c.closeErr = c.manager.Close()
		}
	})
	return c.closeErr
}
