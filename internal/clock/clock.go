// Package clock abstracts the time source so rate limit decisions are
// deterministic under test. Production code uses System; tests drive a
// Manual clock forward explicitly.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time for rate limit decisions.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock. Go timestamps carry a monotonic
// component within a process, so elapsed-time math is regression-safe here;
// cross-process skew is handled by the engine clamping negative elapsed
// time to zero.
type System struct{}

// Now returns the current time.
func (System) Now() time.Time { return time.Now() }

// Manual is a hand-advanced clock for tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the manual clock's current instant.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d. Negative values move it backward,
// which tests use to exercise clock-skew handling.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set jumps the clock to an absolute instant.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
