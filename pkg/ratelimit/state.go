// Package ratelimit tracks upstream throttling state for the EPO OPS
// API, parsed from its X-Throttling-Control response header.
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TrafficLight is the per-service load indicator OPS reports.
type TrafficLight string

const (
	// LightGreen means the service accepts the full request rate.
	LightGreen TrafficLight = "green"

	// LightYellow means the service is under load and the allowed
	// rate is reduced.
	LightYellow TrafficLight = "yellow"

	// LightRed means the service is overloaded and requests should
	// be paused.
	LightRed TrafficLight = "red"

	// LightBlack means the client is blocked for this service.
	LightBlack TrafficLight = "black"
)

// ServiceState is the throttling state of one OPS service bucket
// (search, retrieval, inpadoc-data, images, other).
type ServiceState struct {
	Light TrafficLight

	// RequestsPerMinute is the allowed request rate at the current
	// load level.
	RequestsPerMinute int
}

// State is a snapshot of the OPS throttling control header.
type State struct {
	// SystemStatus is the overall system load ("idle", "busy",
	// "overloaded").
	SystemStatus string

	// Services maps service bucket names to their state.
	Services map[string]ServiceState

	// UpdatedAt is when the snapshot was taken.
	UpdatedAt time.Time
}

// ParseThrottlingControl parses an X-Throttling-Control header value.
//
// Example input:
//
//	idle (images=green:200, inpadoc-data=green:60, other=green:1000, retrieval=green:200, search=green:30)
func ParseThrottlingControl(value string) (State, error) {
	value = strings.TrimSpace(value)
	open := strings.Index(value, "(")
	close := strings.LastIndex(value, ")")
	if open < 0 || close < open {
		return State{}, fmt.Errorf("malformed throttling header: %q", value)
	}

	state := State{
		SystemStatus: strings.TrimSpace(value[:open]),
		Services:     make(map[string]ServiceState),
		UpdatedAt:    time.Now(),
	}

	for _, part := range strings.Split(value[open+1:close], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, rest, ok := strings.Cut(part, "=")
		if !ok {
			return State{}, fmt.Errorf("malformed service state: %q", part)
		}
		light, limitStr, ok := strings.Cut(rest, ":")
		if !ok {
			return State{}, fmt.Errorf("malformed service state: %q", part)
		}
		limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
		if err != nil {
			return State{}, fmt.Errorf("malformed request limit in %q: %w", part, err)
		}
		state.Services[strings.TrimSpace(name)] = ServiceState{
			Light:             TrafficLight(strings.TrimSpace(light)),
			RequestsPerMinute: limit,
		}
	}

	return state, nil
}
