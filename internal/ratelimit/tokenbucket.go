package ratelimit

import (
	"math"
	"time"

	"ratelimiter/internal/models"
)

// decideTokenBucket refills tokens continuously up to capacity and charges
// one token per allowed request. A fresh key starts with a full bucket, so
// the configured burst is available immediately.
func decideTokenBucket(p models.Policy, s State, fresh bool, now time.Time) (Decision, State) {
	capacity := float64(p.Capacity)

	tokens := s.Tokens
	if fresh {
		tokens = capacity
	}

	tokens = math.Min(capacity, tokens+elapsedSince(s.LastRefill, now)*p.Rate)
	s.LastRefill = now

	if tokens >= 1 {
		tokens--
		s.Tokens = tokens
		return Decision{
			Allowed:   true,
			Limit:     int(p.Capacity),
			Remaining: int(math.Floor(tokens)),
			ResetAt:   now.Add(secondsToDuration((capacity - tokens) / p.Rate)),
		}, s
	}

	s.Tokens = tokens
	return Decision{
		Allowed:    false,
		RetryAfter: secondsToDuration((1 - tokens) / p.Rate),
		Limit:      int(p.Capacity),
		Remaining:  0,
		ResetAt:    now.Add(secondsToDuration((capacity - tokens) / p.Rate)),
	}, s
}
