package ratelimit

import (
	"time"

	"ratelimiter/internal/models"
)

// decideFixedWindow counts requests within wall-clock-aligned windows.
// Alignment uses time.Truncate, so every key shares the same window
// boundaries regardless of when its first request arrived.
//
// Inherent to the algorithm: up to 2x the limit can pass across a window
// boundary (a burst at the end of one window plus a burst at the start of
// the next). Callers needing exactness use sliding_window instead.
func decideFixedWindow(p models.Policy, s State, fresh bool, now time.Time) (Decision, State) {
	windowStart := now.Truncate(p.Window)

	if fresh || !now.Before(s.WindowStart.Add(p.Window)) {
		s.WindowStart = windowStart
		s.Count = 0
	}

	resetAt := s.WindowStart.Add(p.Window)

	if s.Count < p.Limit {
		s.Count++
		return Decision{
			Allowed:   true,
			Limit:     int(p.Limit),
			Remaining: int(p.Limit - s.Count),
			ResetAt:   resetAt,
		}, s
	}

	return Decision{
		Allowed:    false,
		RetryAfter: resetAt.Sub(now),
		Limit:      int(p.Limit),
		Remaining:  0,
		ResetAt:    resetAt,
	}, s
}
