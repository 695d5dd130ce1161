package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratelimiter/internal/clock"
	"ratelimiter/internal/models"
	"ratelimiter/internal/store"
)

func newTestLimiter(t *testing.T) (*Limiter, *clock.Manual) {
	t.Helper()
	st := store.NewMemoryStore(0)
	t.Cleanup(func() { st.Close() })
	clk := clock.NewManual(baseTime)
	return New(st, WithClock(clk)), clk
}

func TestLimiter_LazyInitialization(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := tokenBucketPolicy(5, 1)

	// Absence of state means full budget.
	d, err := l.Check(context.Background(), "fresh-key", p)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestLimiter_StatePersistsAcrossChecks(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := tokenBucketPolicy(3, 1)

	for i := 0; i < 3; i++ {
		d, err := l.Check(context.Background(), "k", p)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := l.Check(context.Background(), "k", p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLimiter_IndependentKeys(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := tokenBucketPolicy(1, 1)

	d1, err := l.Check(context.Background(), "a", p)
	require.NoError(t, err)
	d2, err := l.Check(context.Background(), "b", p)
	require.NoError(t, err)

	assert.True(t, d1.Allowed)
	assert.True(t, d2.Allowed)
}

func TestLimiter_InvalidPolicy(t *testing.T) {
	l, _ := newTestLimiter(t)

	cases := []models.Policy{
		{Name: "no-alg", Algorithm: "unknown"},
		{Name: "zero-cap", Algorithm: models.AlgorithmTokenBucket, Capacity: 0, Rate: 1},
		{Name: "zero-rate", Algorithm: models.AlgorithmLeakyBucket, Capacity: 5, Rate: 0},
		{Name: "zero-limit", Algorithm: models.AlgorithmFixedWindow, Limit: 0, Window: time.Second},
		{Name: "zero-window", Algorithm: models.AlgorithmSlidingWindow, Limit: 5, Window: 0},
	}
	for _, p := range cases {
		_, err := l.Check(context.Background(), "k", p)
		var cfgErr *models.ConfigError
		assert.ErrorAs(t, err, &cfgErr, "policy %s", p.Name)
	}
}

func TestLimiter_NoDoubleSpendUnderConcurrency(t *testing.T) {
	// 100 concurrent requests against one key with capacity 10 and a
	// refill rate slow enough to be irrelevant: exactly 10 may pass.
	l, _ := newTestLimiter(t)
	p := tokenBucketPolicy(10, 0.000001)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed, denied := 0, 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Check(context.Background(), "contended", p)
			assert.NoError(t, err)
			mu.Lock()
			if d.Allowed {
				allowed++
			} else {
				denied++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
	assert.Equal(t, 90, denied)
}

func TestLimiter_WindowAlgorithmsInOrchestrator(t *testing.T) {
	l, clk := newTestLimiter(t)
	p := slidingWindowPolicy(2, time.Second)

	d, err := l.Check(context.Background(), "k", p)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Check(context.Background(), "k", p)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Check(context.Background(), "k", p)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	clk.Advance(1100 * time.Millisecond)
	d, err = l.Check(context.Background(), "k", p)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiter_CancelledContextLeavesStateUntouched(t *testing.T) {
	st := store.NewMemoryStore(0)
	defer st.Close()
	l := New(st, WithClock(clock.NewManual(baseTime)))
	p := tokenBucketPolicy(5, 1)

	_, err := l.Check(context.Background(), "k", p)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Check(ctx, "k", p)
	assert.ErrorIs(t, err, context.Canceled)

	// The cancelled check must not have spent a token.
	d, err := l.Check(context.Background(), "k", p)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Remaining)
}

// failingStore simulates an unreachable backend.
type failingStore struct{}

func (failingStore) Update(ctx context.Context, key string, ttl time.Duration, fn store.UpdateFunc) error {
	return fmt.Errorf("write state: %w: connection refused", store.ErrUnavailable)
}
func (failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("read state: %w: connection refused", store.ErrUnavailable)
}
func (failingStore) Delete(ctx context.Context, key string) error { return nil }
func (failingStore) Ping(ctx context.Context) error {
	return fmt.Errorf("%w: connection refused", store.ErrUnavailable)
}
func (failingStore) Stats(ctx context.Context) (store.Stats, error) { return store.Stats{}, nil }
func (failingStore) Close() error                                   { return nil }

func TestLimiter_SurfacesStoreUnavailable(t *testing.T) {
	l := New(failingStore{})

	_, err := l.Check(context.Background(), "k", tokenBucketPolicy(5, 1))
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestLimiter_CorruptStateSurfacesError(t *testing.T) {
	st := store.NewMemoryStore(0)
	defer st.Close()
	require.NoError(t, st.Update(context.Background(), "k", time.Minute, func(cur []byte, found bool) ([]byte, error) {
		return []byte("{not json"), nil
	}))

	l := New(st)
	_, err := l.Check(context.Background(), "k", tokenBucketPolicy(5, 1))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrUnavailable))
}

func TestLimiter_StatsCounters(t *testing.T) {
	l, _ := newTestLimiter(t)
	p := tokenBucketPolicy(2, 0.000001)

	for i := 0; i < 5; i++ {
		_, err := l.Check(context.Background(), "k", p)
		require.NoError(t, err)
	}

	stats := l.Stats("tb")
	assert.Equal(t, uint64(5), stats.Total)
	assert.Equal(t, uint64(2), stats.Allowed)
	assert.Equal(t, uint64(3), stats.Denied)
	assert.InDelta(t, 0.4, stats.AcceptanceRate, 1e-9)

	assert.Equal(t, models.PolicyStats{}, l.Stats("unseen"))
}
