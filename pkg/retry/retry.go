// Package retry provides a reusable retry executor with exponential
// backoff and jitter for fallible operations (network calls, storage
// operations).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptools_retries_total",
		Help: "Total number of retry attempts by operation",
	}, []string{"operation"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "iptools_retry_backoff_seconds",
		Help:    "Backoff duration for retries by operation",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"operation"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptools_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by operation",
	}, []string{"operation"})
)

// ErrContextCancelled is returned when the context is cancelled during
// a backoff wait.
var ErrContextCancelled = errors.New("context cancelled")

// Policy holds the configuration for the retry executor.
type Policy struct {
	// Op labels the operation in logs and metrics.
	Op string

	// MaxAttempts is the total attempt budget (including the first attempt).
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// Multiplier is the exponential backoff factor.
	Multiplier float64
}

// DefaultPolicy returns the retry policy used for outbound HTTP requests.
func DefaultPolicy(op string) Policy {
	return Policy{
		Op:             op,
		MaxAttempts:    4,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
	}
}

// StoragePolicy returns the retry policy used for cache storage
// operations, tuned to absorb transient lock contention on the
// database file.
func StoragePolicy() Policy {
	p := DefaultPolicy("storage")
	p.MaxAttempts = 5
	return p
}

// Do executes fn, retrying every failure up to the attempt budget.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	return p.DoRetryable(ctx, fn, nil)
}

// DoRetryable executes fn with exponential backoff and jitter. A nil
// retryable predicate retries every error; otherwise errors it rejects
// are returned immediately.
//
// On exhaustion the last attempt's error is returned verbatim, never a
// synthesized "exhausted" error.
func (p Policy) DoRetryable(ctx context.Context, fn func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	multiplier := p.Multiplier
	if multiplier <= 1 {
		multiplier = 2.0
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Debug().
					Str("operation", p.Op).
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return lastErr
		}

		if attempt >= attempts {
			break
		}

		retriesTotal.WithLabelValues(p.Op).Inc()

		// Jitter (±20% randomness) to avoid synchronized retries.
		wait := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		if p.MaxBackoff > 0 && wait > p.MaxBackoff {
			wait = p.MaxBackoff
		}
		retryBackoffSeconds.WithLabelValues(p.Op).Observe(wait.Seconds())

		log.Debug().
			Str("operation", p.Op).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(err).
			Msg("Retrying after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * multiplier)
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(p.Op).Inc()
	log.Warn().
		Str("operation", p.Op).
		Int("max_attempts", attempts).
		Err(lastErr).
		Msg("Retry attempts exhausted")

	if lastErr != nil {
		return lastErr
	}
	// Unreachable: the loop either returns nil or records an error.
	return fmt.Errorf("retry: %s exited without result", p.Op)
}
