// Package ratelimit implements the rate-decision engine: four rate limiting
// algorithms expressed as pure steps over (state, now), an orchestrator that
// runs a step inside the key store's atomic update, and HTTP middleware that
// enforces decisions with standard rate limit response headers.
//
// Algorithm trade-offs, for choosing a policy:
//
//	leaky_bucket    smooth outflow, queue semantics, O(1) state
//	token_bucket    bursts up to capacity, O(1) state
//	fixed_window    cheapest, but up to 2x limit across a window boundary
//	sliding_window  exact over a rolling window, O(limit) state per key
package ratelimit

import (
	"encoding/json"
	"fmt"
	"time"

	"ratelimiter/internal/models"
)

// State is the per-key algorithm state persisted between decisions. Each
// algorithm uses only its own fields; the zero value means "never seen",
// i.e. full budget.
type State struct {
	// Leaky bucket: current queue depth and last leak application.
	Level    float64   `json:"level,omitempty"`
	LastLeak time.Time `json:"last_leak,omitempty"`

	// Token bucket: available tokens and last refill application.
	Tokens     float64   `json:"tokens,omitempty"`
	LastRefill time.Time `json:"last_refill,omitempty"`

	// Fixed window: aligned window start and requests counted in it.
	WindowStart time.Time `json:"window_start,omitempty"`
	Count       uint64    `json:"count,omitempty"`

	// Sliding window: request log, oldest first, trimmed on each decision.
	Timestamps []time.Time `json:"timestamps,omitempty"`
}

// Decision is the outcome of one rate limit check. RetryAfter is zero when
// the request is allowed. Limit, Remaining and ResetAt feed the standard
// X-RateLimit-* response headers.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Limit      int
	Remaining  int
	ResetAt    time.Time
}

// stepFunc applies one request arrival to a key's state. fresh is true when
// the key has no stored state (full budget). Steps are pure: same
// (policy, state, now) in, same (decision, state) out.
type stepFunc func(p models.Policy, s State, fresh bool, now time.Time) (Decision, State)

// stepFor returns the decide step for the policy's algorithm.
func stepFor(alg models.Algorithm) (stepFunc, error) {
	switch alg {
	case models.AlgorithmLeakyBucket:
		return decideLeakyBucket, nil
	case models.AlgorithmTokenBucket:
		return decideTokenBucket, nil
	case models.AlgorithmFixedWindow:
		return decideFixedWindow, nil
	case models.AlgorithmSlidingWindow:
		return decideSlidingWindow, nil
	default:
		return nil, &models.ConfigError{Field: "algorithm", Reason: fmt.Sprintf("unknown algorithm %q", alg)}
	}
}

// marshalState serializes state for the key store.
func marshalState(s State) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// unmarshalState deserializes stored state. Undecodable state is treated as
// corrupt and surfaces as an error rather than silently resetting a budget.
func unmarshalState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return s, nil
}

// elapsedSince clamps negative elapsed time to zero. A stored timestamp
// ahead of now means clock skew (shared store, multiple writers); skew is
// advisory here, so the step proceeds with zero elapsed rather than leaking
// or refilling a negative amount.
func elapsedSince(last time.Time, now time.Time) float64 {
	if last.IsZero() || !now.After(last) {
		return 0
	}
	return now.Sub(last).Seconds()
}

// secondsToDuration converts a fractional second count to a duration,
// clamping negatives to zero.
func secondsToDuration(s float64) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s * float64(time.Second))
}
