// Package ratelimit provides a pure fixed-window rate limit algorithm, used
// to guard operator-invoked triggers against operational abuse.
// All functions are deterministic - same input always produces same output.
package ratelimit

import "time"

// WindowState represents the current state of a caller's window (value type).
type WindowState struct {
	Count     int       // invocations in the current window
	WindowEnd time.Time // when the current window ends
}

// Config holds rate limit configuration (value type).
type Config struct {
	Limit  int           // invocations per window
	Window time.Duration // window duration
}

// CheckResult represents the outcome of a rate limit check (value type).
type CheckResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Reason    string
}

// ReasonLimitExceeded is the denial reason.
const ReasonLimitExceeded = "rate_limit_exceeded"

// Check performs a fixed-window rate limit check.
// Returns the result and the updated state; the caller persists the state.
// This is a PURE function.
func Check(state WindowState, cfg Config, now time.Time) (CheckResult, WindowState) {
	if now.After(state.WindowEnd) || state.WindowEnd.IsZero() {
		state = WindowState{
			Count:     0,
			WindowEnd: now.Truncate(cfg.Window).Add(cfg.Window),
		}
	}

	if state.Count >= cfg.Limit {
		return CheckResult{
			Allowed: false,
			ResetAt: state.WindowEnd,
			Reason:  ReasonLimitExceeded,
		}, state
	}

	state.Count++
	return CheckResult{
		Allowed:   true,
		Remaining: cfg.Limit - state.Count,
		ResetAt:   state.WindowEnd,
	}, state
}
