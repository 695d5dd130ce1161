package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"

	"ratelimiter/internal/clock"
	"ratelimiter/internal/models"
	"ratelimiter/internal/store"
)

// Limiter orchestrates rate limit checks: it validates the policy, runs the
// algorithm's decide step inside the key store's atomic update, and keeps
// per-policy counters for the status endpoint.
//
// Layering multiple limits on one logical key is the caller's composition:
// issue one Check per policy (with distinct keys) and deny if any denies.
type Limiter struct {
	store store.Store
	clock clock.Clock

	// counters maps policy name → *policyCounters.
	counters sync.Map
}

// policyCounters tracks decisions for one policy since process start.
type policyCounters struct {
	total   atomic.Uint64
	allowed atomic.Uint64
	denied  atomic.Uint64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source for deterministic decisions in tests.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// New creates a Limiter over the given key store.
func New(st store.Store, opts ...Option) *Limiter {
	l := &Limiter{
		store: st,
		clock: clock.System{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check decides whether the request identified by key is within the
// policy's budget, persisting the updated state on every call (denied
// requests still pay their leak/refill bookkeeping).
//
// Invalid policies fail with *models.ConfigError before the store is
// touched. Store faults satisfy errors.Is(err, store.ErrUnavailable); the
// caller chooses fail-open versus fail-closed. A cancelled context aborts
// the whole check with no state mutation.
func (l *Limiter) Check(ctx context.Context, key string, p models.Policy) (Decision, error) {
	if err := p.Validate(); err != nil {
		return Decision{}, err
	}
	step, err := stepFor(p.Algorithm)
	if err != nil {
		return Decision{}, err
	}

	var decision Decision
	err = l.store.Update(ctx, key, p.StateRetention(), func(cur []byte, found bool) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var state State
		if found {
			var err error
			state, err = unmarshalState(cur)
			if err != nil {
				return nil, err
			}
		}

		var next State
		decision, next = step(p, state, !found, l.clock.Now())
		return marshalState(next)
	})
	if err != nil {
		return Decision{}, err
	}

	l.count(p.Name, decision.Allowed)
	return decision, nil
}

// count records one decision against the policy's counters.
func (l *Limiter) count(policy string, allowed bool) {
	v, ok := l.counters.Load(policy)
	if !ok {
		v, _ = l.counters.LoadOrStore(policy, &policyCounters{})
	}
	c := v.(*policyCounters)
	c.total.Add(1)
	if allowed {
		c.allowed.Add(1)
	} else {
		c.denied.Add(1)
	}
}

// Stats returns the decision counters for one policy.
func (l *Limiter) Stats(policy string) models.PolicyStats {
	v, ok := l.counters.Load(policy)
	if !ok {
		return models.PolicyStats{}
	}
	c := v.(*policyCounters)

	stats := models.PolicyStats{
		Total:   c.total.Load(),
		Allowed: c.allowed.Load(),
		Denied:  c.denied.Load(),
	}
	if stats.Total > 0 {
		stats.AcceptanceRate = float64(stats.Allowed) / float64(stats.Total)
	}
	return stats
}

// Store exposes the underlying key store for health checks and occupancy
// reporting.
func (l *Limiter) Store() store.Store {
	return l.store
}
