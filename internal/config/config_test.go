package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratelimiter/internal/models"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "test_config.yaml")

	configContent := `
server:
  port: 8081
  host: "localhost"
  read_timeout: 30s
  write_timeout: 30s
  idle_timeout: 60s
  tls_enabled: false

store:
  type: "file"
  path: "./data/states.json"
  flush_interval: 10s
  sweep_interval: 1m

limits:
  default_policy: "api"
  fail_open: true
  policies:
    - name: "api"
      algorithm: "token_bucket"
      capacity: 100
      rate: 10
    - name: "login"
      algorithm: "fixed_window"
      limit: 5
      window: 1m
    - name: "search"
      algorithm: "sliding_window"
      limit: 30
      window: 1m
    - name: "uploads"
      algorithm: "leaky_bucket"
      capacity: 10
      rate: 0.5

security:
  enable_auth: true
  api_keys:
    - name: "Test Key"
      key_hash: "abc123"
      permissions: ["read", "write"]
      enabled: true
  admin_rate_per_second: 2
  admin_burst: 5

logging:
  level: "debug"
  format: "json"
  output: "stdout"

metrics:
  enabled: true
  path: "/metrics"
  port: 9090
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	require.NoError(t, err)

	config, err := Load(configFile)
	require.NoError(t, err)

	// Verify server config
	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, config.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, config.Server.IdleTimeout)
	assert.False(t, config.Server.TLSEnabled)

	// Verify store config
	assert.Equal(t, models.StoreTypeFile, config.Store.Type)
	assert.Equal(t, "./data/states.json", config.Store.Path)
	assert.Equal(t, 10*time.Second, config.Store.FlushInterval)
	assert.Equal(t, time.Minute, config.Store.SweepInterval)

	// Verify limits config
	assert.Equal(t, "api", config.Limits.DefaultPolicy)
	assert.True(t, config.Limits.FailOpen)
	require.Len(t, config.Limits.Policies, 4)

	api, ok := config.Limits.PolicyByName("api")
	require.True(t, ok)
	assert.Equal(t, models.AlgorithmTokenBucket, api.Algorithm)
	assert.Equal(t, uint64(100), api.Capacity)
	assert.Equal(t, 10.0, api.Rate)

	login, ok := config.Limits.PolicyByName("login")
	require.True(t, ok)
	assert.Equal(t, models.AlgorithmFixedWindow, login.Algorithm)
	assert.Equal(t, uint64(5), login.Limit)
	assert.Equal(t, time.Minute, login.Window)

	uploads, ok := config.Limits.PolicyByName("uploads")
	require.True(t, ok)
	assert.Equal(t, models.AlgorithmLeakyBucket, uploads.Algorithm)
	assert.Equal(t, 0.5, uploads.Rate)

	// Verify security config
	assert.True(t, config.Security.EnableAuth)
	require.Len(t, config.Security.APIKeys, 1)
	assert.Equal(t, "Test Key", config.Security.APIKeys[0].Name)
	assert.Equal(t, "abc123", config.Security.APIKeys[0].KeyHash)
	assert.Equal(t, []string{"read", "write"}, config.Security.APIKeys[0].Permissions)
	assert.True(t, config.Security.APIKeys[0].Enabled)
	assert.Equal(t, 2.0, config.Security.AdminRatePerSecond)
	assert.Equal(t, 5, config.Security.AdminBurst)

	// Verify logging config
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "stdout", config.Logging.Output)

	// Verify metrics config
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	assert.Equal(t, 9090, config.Metrics.Port)
}

func TestLoad_WithoutConfigFile(t *testing.T) {
	config, err := Load("")
	require.NoError(t, err)

	// Should use defaults
	defaults := models.NewDefaultConfig()
	assert.Equal(t, defaults.Server.Port, config.Server.Port)
	assert.Equal(t, defaults.Store.Type, config.Store.Type)
	assert.Equal(t, defaults.Limits.DefaultPolicy, config.Limits.DefaultPolicy)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server: [not a map"), 0644))

	_, err := Load(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoad_InvalidPolicyFailsValidation(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "bad_policy.yaml")

	configContent := `
limits:
  default_policy: "api"
  policies:
    - name: "api"
      algorithm: "token_bucket"
      capacity: 0
      rate: 10
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	_, err := Load(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoad_UnknownDefaultPolicyFails(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "bad_default.yaml")

	configContent := `
limits:
  default_policy: "missing"
  policies:
    - name: "api"
      algorithm: "token_bucket"
      capacity: 10
      rate: 1
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	_, err := Load(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("RATELIMITER_PORT", "9999")
	t.Setenv("RATELIMITER_HOST", "127.0.0.1")
	t.Setenv("RATELIMITER_STORE_TYPE", "memory")
	t.Setenv("RATELIMITER_STORE_SWEEP_INTERVAL", "30s")
	t.Setenv("RATELIMITER_FAIL_OPEN", "true")
	t.Setenv("RATELIMITER_LOG_LEVEL", "debug")
	t.Setenv("RATELIMITER_METRICS_ENABLED", "false")

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, models.StoreTypeMemory, config.Store.Type)
	assert.Equal(t, 30*time.Second, config.Store.SweepInterval)
	assert.True(t, config.Limits.FailOpen)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.False(t, config.Metrics.Enabled)
}

func TestLoad_EnvironmentIgnoresMalformedValues(t *testing.T) {
	t.Setenv("RATELIMITER_PORT", "not-a-number")
	t.Setenv("RATELIMITER_READ_TIMEOUT", "junk")

	config, err := Load("")
	require.NoError(t, err)

	defaults := models.NewDefaultConfig()
	assert.Equal(t, defaults.Server.Port, config.Server.Port)
	assert.Equal(t, defaults.Server.ReadTimeout, config.Server.ReadTimeout)
}

func TestLoad_FileAndEnvironmentPrecedence(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server:\n  port: 8082\n"), 0644))

	t.Setenv("RATELIMITER_PORT", "9001")

	config, err := Load(configFile)
	require.NoError(t, err)

	// Environment wins over file
	assert.Equal(t, 9001, config.Server.Port)
}

func TestSaveExample(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "nested", "example.yaml")

	require.NoError(t, SaveExample(configFile))

	data, err := os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "token_bucket")
	assert.Contains(t, string(data), "leaky_bucket")
	assert.Contains(t, string(data), "default_policy")
}
