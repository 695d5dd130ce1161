package ratelimit

import (
	"math"
	"time"

	"ratelimiter/internal/models"
)

// decideLeakyBucket models the bucket as a queue that drains at a constant
// rate. Each allowed request deepens the queue by one; a request arriving at
// a full bucket is denied until enough has leaked out.
func decideLeakyBucket(p models.Policy, s State, fresh bool, now time.Time) (Decision, State) {
	capacity := float64(p.Capacity)

	level := s.Level
	if fresh {
		level = 0
	}

	// Apply the leak accumulated since the last decision.
	level = math.Max(0, level-elapsedSince(s.LastLeak, now)*p.Rate)
	s.LastLeak = now

	if level < capacity {
		level++
		s.Level = level
		return Decision{
			Allowed:   true,
			Limit:     int(p.Capacity),
			Remaining: int(capacity - level),
			ResetAt:   now.Add(secondsToDuration(level / p.Rate)),
		}, s
	}

	// Full: the request would overflow. Persisting the leaked level with
	// LastLeak=now keeps a retry from re-leaking the same elapsed time.
	s.Level = level
	retry := secondsToDuration((level - capacity + 1) / p.Rate)
	return Decision{
		Allowed:    false,
		RetryAfter: retry,
		Limit:      int(p.Capacity),
		Remaining:  0,
		ResetAt:    now.Add(secondsToDuration(level / p.Rate)),
	}, s
}
