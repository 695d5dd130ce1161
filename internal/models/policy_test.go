package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlgorithm_Valid(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmLeakyBucket, AlgorithmTokenBucket, AlgorithmFixedWindow, AlgorithmSlidingWindow} {
		assert.True(t, alg.Valid(), alg)
	}
	assert.False(t, Algorithm("").Valid())
	assert.False(t, Algorithm("gcra").Valid())
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name      string
		policy    Policy
		wantField string
	}{
		{
			name:   "valid token bucket",
			policy: Policy{Name: "api", Algorithm: AlgorithmTokenBucket, Capacity: 10, Rate: 1},
		},
		{
			name:   "valid leaky bucket",
			policy: Policy{Name: "uploads", Algorithm: AlgorithmLeakyBucket, Capacity: 5, Rate: 0.5},
		},
		{
			name:   "valid fixed window",
			policy: Policy{Name: "login", Algorithm: AlgorithmFixedWindow, Limit: 5, Window: time.Minute},
		},
		{
			name:   "valid sliding window",
			policy: Policy{Name: "search", Algorithm: AlgorithmSlidingWindow, Limit: 30, Window: time.Minute},
		},
		{
			name:      "unknown algorithm",
			policy:    Policy{Name: "x", Algorithm: "gcra", Capacity: 10, Rate: 1},
			wantField: "algorithm",
		},
		{
			name:      "zero capacity",
			policy:    Policy{Name: "x", Algorithm: AlgorithmTokenBucket, Capacity: 0, Rate: 1},
			wantField: "capacity",
		},
		{
			name:      "zero rate",
			policy:    Policy{Name: "x", Algorithm: AlgorithmLeakyBucket, Capacity: 10, Rate: 0},
			wantField: "rate",
		},
		{
			name:      "negative rate",
			policy:    Policy{Name: "x", Algorithm: AlgorithmTokenBucket, Capacity: 10, Rate: -1},
			wantField: "rate",
		},
		{
			name:      "zero limit",
			policy:    Policy{Name: "x", Algorithm: AlgorithmFixedWindow, Limit: 0, Window: time.Minute},
			wantField: "limit",
		},
		{
			name:      "zero window",
			policy:    Policy{Name: "x", Algorithm: AlgorithmSlidingWindow, Limit: 5, Window: 0},
			wantField: "window",
		},
		{
			name:      "negative retention",
			policy:    Policy{Name: "x", Algorithm: AlgorithmTokenBucket, Capacity: 10, Rate: 1, Retention: -time.Second},
			wantField: "retention",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.Equal(t, tt.policy.Name, cfgErr.Policy)
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Policy: "api", Field: "rate", Reason: "must be positive"}
	assert.Contains(t, err.Error(), "api")
	assert.Contains(t, err.Error(), "rate")

	anonymous := &ConfigError{Field: "algorithm", Reason: "unknown"}
	assert.Contains(t, anonymous.Error(), "algorithm")
	assert.NotContains(t, anonymous.Error(), `""`)
}

func TestPolicy_StateRetention(t *testing.T) {
	// Explicit retention wins.
	p := Policy{Algorithm: AlgorithmTokenBucket, Capacity: 10, Rate: 1, Retention: time.Hour}
	assert.Equal(t, time.Hour, p.StateRetention())

	// Window algorithms keep a few windows.
	p = Policy{Algorithm: AlgorithmFixedWindow, Limit: 5, Window: time.Minute}
	assert.Equal(t, 3*time.Minute, p.StateRetention())

	// Bucket algorithms keep a few drain periods.
	p = Policy{Algorithm: AlgorithmTokenBucket, Capacity: 120, Rate: 1}
	assert.Equal(t, 6*time.Minute, p.StateRetention())

	// Fast-draining buckets still keep at least a minute per period.
	p = Policy{Algorithm: AlgorithmLeakyBucket, Capacity: 1, Rate: 100}
	assert.Equal(t, 3*time.Minute, p.StateRetention())
}

func TestPolicy_EffectiveLimit(t *testing.T) {
	assert.Equal(t, 10, Policy{Algorithm: AlgorithmTokenBucket, Capacity: 10}.EffectiveLimit())
	assert.Equal(t, 7, Policy{Algorithm: AlgorithmLeakyBucket, Capacity: 7}.EffectiveLimit())
	assert.Equal(t, 5, Policy{Algorithm: AlgorithmFixedWindow, Limit: 5}.EffectiveLimit())
	assert.Equal(t, 30, Policy{Algorithm: AlgorithmSlidingWindow, Limit: 30}.EffectiveLimit())
}
