// Package models - Rate limit policies and their validation.
// A policy names one algorithm plus its immutable parameters. Policies are
// validated at construction/registration time so an invalid parameter can
// never surface mid-request.
package models

import (
	"fmt"
	"time"
)

// Algorithm identifies one of the supported rate limiting algorithms.
// The set is closed: adding an algorithm means adding a decide step to the
// engine, not loading a plugin.
type Algorithm string

const (
	AlgorithmLeakyBucket   Algorithm = "leaky_bucket"
	AlgorithmTokenBucket   Algorithm = "token_bucket"
	AlgorithmFixedWindow   Algorithm = "fixed_window"
	AlgorithmSlidingWindow Algorithm = "sliding_window"
)

// String returns the wire name of the algorithm.
func (a Algorithm) String() string {
	return string(a)
}

// Valid reports whether a is one of the four supported algorithms.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmLeakyBucket, AlgorithmTokenBucket, AlgorithmFixedWindow, AlgorithmSlidingWindow:
		return true
	}
	return false
}

// Policy is an immutable rate limit definition. Capacity and Rate apply to
// the bucket algorithms; Limit and Window apply to the window algorithms.
type Policy struct {
	Name      string        `yaml:"name" json:"name"`
	Algorithm Algorithm     `yaml:"algorithm" json:"algorithm"`
	Capacity  uint64        `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	Rate      float64       `yaml:"rate,omitempty" json:"rate,omitempty"`
	Limit     uint64        `yaml:"limit,omitempty" json:"limit,omitempty"`
	Window    time.Duration `yaml:"window,omitempty" json:"window,omitempty"`

	// Retention overrides the store TTL for this policy's keys.
	// Zero means "derived from the policy" (a few windows / drain times).
	Retention time.Duration `yaml:"retention,omitempty" json:"retention,omitempty"`
}

// ConfigError reports an invalid policy parameter. It is returned from
// Validate and policy registration, never from a per-request decision.
type ConfigError struct {
	Policy string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Policy == "" {
		return fmt.Sprintf("invalid policy: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid policy %q: %s %s", e.Policy, e.Field, e.Reason)
}

// Validate checks the policy parameters for its algorithm. All failures are
// *ConfigError values.
func (p Policy) Validate() error {
	if !p.Algorithm.Valid() {
		return &ConfigError{Policy: p.Name, Field: "algorithm", Reason: fmt.Sprintf("unknown algorithm %q", p.Algorithm)}
	}

	switch p.Algorithm {
	case AlgorithmLeakyBucket, AlgorithmTokenBucket:
		if p.Capacity == 0 {
			return &ConfigError{Policy: p.Name, Field: "capacity", Reason: "must be positive"}
		}
		// A zero rate would mean a bucket that never drains or refills.
		if p.Rate <= 0 {
			return &ConfigError{Policy: p.Name, Field: "rate", Reason: "must be positive"}
		}
	case AlgorithmFixedWindow, AlgorithmSlidingWindow:
		if p.Limit == 0 {
			return &ConfigError{Policy: p.Name, Field: "limit", Reason: "must be positive"}
		}
		if p.Window <= 0 {
			return &ConfigError{Policy: p.Name, Field: "window", Reason: "must be positive"}
		}
	}

	if p.Retention < 0 {
		return &ConfigError{Policy: p.Name, Field: "retention", Reason: "cannot be negative"}
	}

	return nil
}

// StateRetention returns how long a key's state stays meaningful: the
// explicit retention when set, otherwise a few windows (window algorithms)
// or a few full drain/refill periods (bucket algorithms).
func (p Policy) StateRetention() time.Duration {
	if p.Retention > 0 {
		return p.Retention
	}

	switch p.Algorithm {
	case AlgorithmFixedWindow, AlgorithmSlidingWindow:
		return 3 * p.Window
	default:
		if p.Rate <= 0 {
			return time.Hour
		}
		drain := time.Duration(float64(p.Capacity) / p.Rate * float64(time.Second))
		if drain < time.Minute {
			drain = time.Minute
		}
		return 3 * drain
	}
}

// EffectiveLimit is the budget reported in X-RateLimit-Limit headers:
// capacity for bucket algorithms, limit for window algorithms.
func (p Policy) EffectiveLimit() int {
	switch p.Algorithm {
	case AlgorithmFixedWindow, AlgorithmSlidingWindow:
		return int(p.Limit)
	default:
		return int(p.Capacity)
	}
}
