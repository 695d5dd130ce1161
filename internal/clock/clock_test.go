package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_Now(t *testing.T) {
	before := time.Now()
	got := System{}.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestManual_AdvanceAndSet(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := NewManual(start)

	assert.Equal(t, start, clk.Now())

	clk.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clk.Now())

	// Set can move backwards, for skew scenarios.
	clk.Set(start.Add(-time.Minute))
	assert.Equal(t, start.Add(-time.Minute), clk.Now())
}

func TestManual_ConcurrentAccess(t *testing.T) {
	clk := NewManual(time.Unix(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			clk.Advance(time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			_ = clk.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Unix(0, 0).Add(50*time.Millisecond), clk.Now())
}
