package client

import (
	"errors"
	"fmt"
)

// maxErrorBody bounds how much of an upstream response body an error
// carries for diagnostics.
const maxErrorBody = 500

// ErrCachingDisabled is returned by cache-control methods on a client
// constructed with caching turned off. This is a programmer error, not
// a runtime fault, and is never retried.
var ErrCachingDisabled = errors.New("caching is disabled for this client")

// APIError is the generic error for a non-2xx upstream response. The
// more specific kinds below embed it, so errors.As against *APIError
// matches any of them.
type APIError struct {
	Message    string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// NotFoundError reports a 404: the resource is absent upstream.
type NotFoundError struct{ APIError }

// Unwrap exposes the embedded APIError to errors.As.
func (e *NotFoundError) Unwrap() error { return &e.APIError }

// RateLimitError reports a 429: upstream throttling.
type RateLimitError struct{ APIError }

// Unwrap exposes the embedded APIError to errors.As.
func (e *RateLimitError) Unwrap() error { return &e.APIError }

// AuthError reports a 401 or 403: credential or permission failure.
type AuthError struct{ APIError }

// Unwrap exposes the embedded APIError to errors.As.
func (e *AuthError) Unwrap() error { return &e.APIError }

// ServerError reports a 5xx: upstream failure, expected transient.
type ServerError struct{ APIError }

// Unwrap exposes the embedded APIError to errors.As.
func (e *ServerError) Unwrap() error { return &e.APIError }

// statusError translates a terminal non-2xx status into the typed
// error for its status class.
func statusError(status int, body, context string) error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}

	var msg string
	if context != "" {
		msg = fmt.Sprintf("%s: %d", context, status)
	} else {
		msg = fmt.Sprintf("HTTP %d", status)
	}

	base := APIError{Message: msg, StatusCode: status, Body: body}

	switch {
	case status == 404:
		return &NotFoundError{base}
	case status == 429:
		return &RateLimitError{base}
	case status == 401 || status == 403:
		return &AuthError{base}
	case status >= 500 && status < 600:
		return &ServerError{base}
	default:
		return &base
	}
}

// retryableError reports whether err should trigger another attempt:
// server faults and throttling are expected to be transient, as are
// transport-level failures (which carry no status at all). Not-found,
// auth and other client errors surface immediately.
func retryableError(err error) bool {
	var notFound *NotFoundError
	var auth *AuthError
	if errors.As(err, &notFound) || errors.As(err, &auth) {
		return false
	}

	var server *ServerError
	var rateLimit *RateLimitError
	if errors.As(err, &server) || errors.As(err, &rateLimit) {
		return true
	}

	var api *APIError
	if errors.As(err, &api) {
		// Remaining 4xx catch-all.
		return false
	}

	// Network or timeout failure.
	return true
}
