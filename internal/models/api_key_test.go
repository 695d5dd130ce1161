package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	raw, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "rl_"))
	assert.Len(t, raw, len("rl_")+44)

	other, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestHashAPIKey(t *testing.T) {
	hash := HashAPIKey("rl_test")

	// SHA-256 hex digest.
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashAPIKey("rl_test"))
	assert.NotEqual(t, hash, HashAPIKey("rl_other"))
}

func TestAPIKey_Matches(t *testing.T) {
	raw, err := GenerateAPIKey()
	require.NoError(t, err)

	key := APIKey{Name: "ci", KeyHash: HashAPIKey(raw), Enabled: true}

	assert.True(t, key.Matches(raw))
	assert.False(t, key.Matches("rl_wrong"))
	assert.False(t, key.Matches(""))
}

func TestAPIKey_HasPermission(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		enabled     bool
		required    string
		want        bool
	}{
		{"exact match", []string{"read"}, true, "read", true},
		{"write implies read", []string{"write"}, true, "read", true},
		{"admin implies write", []string{"admin"}, true, "write", true},
		{"admin implies read", []string{"admin"}, true, "read", true},
		{"read does not imply write", []string{"read"}, true, "write", false},
		{"write does not imply admin", []string{"write"}, true, "admin", false},
		{"disabled key has nothing", []string{"admin"}, false, "read", false},
		{"no permissions", nil, true, "read", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := APIKey{Permissions: tt.permissions, Enabled: tt.enabled}
			assert.Equal(t, tt.want, key.HasPermission(tt.required))
		})
	}
}
