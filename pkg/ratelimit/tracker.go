package ratelimit

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttling state.
var (
	quotaGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "iptools_ops_quota_per_minute",
		Help: "Allowed OPS requests per minute by service bucket",
	}, []string{"service"})

	throttledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iptools_ops_throttled_total",
		Help: "Requests advised to back off due to OPS throttling state",
	}, []string{"service"})
)

// HeaderThrottlingControl is the OPS response header that carries
// throttling state.
const HeaderThrottlingControl = "X-Throttling-Control"

// Tracker keeps the most recent OPS throttling state in memory. It is
// fed from response headers and consulted before issuing requests.
type Tracker struct {
	mu     sync.RWMutex
	state  State
	logger zerolog.Logger
}

// NewTracker creates a throttling tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// UpdateFromHeaders records the throttling state from an OPS response.
// Responses without the header leave the state untouched; malformed
// headers are logged and ignored.
func (t *Tracker) UpdateFromHeaders(h http.Header) {
	value := h.Get(HeaderThrottlingControl)
	if value == "" {
		return
	}

	state, err := ParseThrottlingControl(value)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Unparseable throttling header")
		return
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	for name, svc := range state.Services {
		quotaGauge.WithLabelValues(name).Set(float64(svc.RequestsPerMinute))
	}

	if state.SystemStatus != "idle" {
		t.logger.Debug().
			Str("system", state.SystemStatus).
			Msg("OPS throttling state updated")
	}
}

// ShouldThrottle reports whether requests to the given service bucket
// should be paused based on the last observed state. Unknown services
// and an empty state are never throttled.
func (t *Tracker) ShouldThrottle(service string) bool {
	t.mu.RLock()
	svc, ok := t.state.Services[service]
	t.mu.RUnlock()

	if !ok {
		return false
	}
	if svc.Light == LightRed || svc.Light == LightBlack {
		throttledTotal.WithLabelValues(service).Inc()
		return true
	}
	return false
}

// Snapshot returns a copy of the last observed throttling state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := State{
		SystemStatus: t.state.SystemStatus,
		UpdatedAt:    t.state.UpdatedAt,
		Services:     make(map[string]ServiceState, len(t.state.Services)),
	}
	for name, svc := range t.state.Services {
		snapshot.Services[name] = svc
	}
	return snapshot
}
