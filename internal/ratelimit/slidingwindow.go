package ratelimit

import (
	"time"

	"ratelimiter/internal/models"
)

// decideSlidingWindow keeps a log of request timestamps and counts those in
// the rolling window ending now. Entries older than the window are trimmed
// off the front before each decision, so the log never exceeds the limit by
// more than transient growth between purges.
func decideSlidingWindow(p models.Policy, s State, fresh bool, now time.Time) (Decision, State) {
	if fresh {
		s.Timestamps = nil
	}

	// Prefix-trim expired entries; the log is ordered oldest first.
	cutoff := now.Add(-p.Window)
	trim := 0
	for trim < len(s.Timestamps) && s.Timestamps[trim].Before(cutoff) {
		trim++
	}
	if trim > 0 {
		s.Timestamps = append([]time.Time(nil), s.Timestamps[trim:]...)
	}

	if uint64(len(s.Timestamps)) < p.Limit {
		s.Timestamps = append(s.Timestamps, now)
		return Decision{
			Allowed:   true,
			Limit:     int(p.Limit),
			Remaining: int(p.Limit) - len(s.Timestamps),
			ResetAt:   s.Timestamps[0].Add(p.Window),
		}, s
	}

	oldest := s.Timestamps[0]
	retry := oldest.Add(p.Window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return Decision{
		Allowed:    false,
		RetryAfter: retry,
		Limit:      int(p.Limit),
		Remaining:  0,
		ResetAt:    oldest.Add(p.Window),
	}, s
}
