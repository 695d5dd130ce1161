package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StoreTypeMemory, cfg.Store.Type)
	assert.Equal(t, "default", cfg.Limits.DefaultPolicy)
	assert.False(t, cfg.Limits.FailOpen)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Security.EnableAuth)
}

func TestServerConfig_Validate(t *testing.T) {
	valid := NewDefaultConfig().Server

	bad := valid
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Port = 70000
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Host = ""
	assert.Error(t, bad.Validate())

	bad = valid
	bad.ReadTimeout = -time.Second
	assert.Error(t, bad.Validate())

	bad = valid
	bad.TLSEnabled = true
	assert.Error(t, bad.Validate())

	bad.TLSCertFile = "/cert.pem"
	bad.TLSKeyFile = "/key.pem"
	assert.NoError(t, bad.Validate())
}

func TestStoreConfig_Validate(t *testing.T) {
	assert.NoError(t, (&StoreConfig{Type: StoreTypeMemory}).Validate())

	assert.Error(t, (&StoreConfig{Type: StoreTypeFile}).Validate())
	assert.NoError(t, (&StoreConfig{Type: StoreTypeFile, Path: "/tmp/states.json"}).Validate())

	assert.Error(t, (&StoreConfig{Type: StoreTypeSQLite}).Validate())
	assert.NoError(t, (&StoreConfig{Type: StoreTypeSQLite, Database: DatabaseConfig{DSN: "states.db"}}).Validate())

	assert.Error(t, (&StoreConfig{Type: StoreTypePostgres}).Validate())
	assert.Error(t, (&StoreConfig{Type: "redis"}).Validate())

	assert.Error(t, (&StoreConfig{Type: StoreTypeMemory, SweepInterval: -time.Second}).Validate())
}

func TestLimitsConfig_Validate(t *testing.T) {
	valid := LimitsConfig{
		Policies: []Policy{
			{Name: "api", Algorithm: AlgorithmTokenBucket, Capacity: 10, Rate: 1},
		},
		DefaultPolicy: "api",
	}
	assert.NoError(t, valid.Validate())

	noName := LimitsConfig{Policies: []Policy{{Algorithm: AlgorithmTokenBucket, Capacity: 10, Rate: 1}}}
	assert.Error(t, noName.Validate())

	dup := LimitsConfig{Policies: []Policy{
		{Name: "api", Algorithm: AlgorithmTokenBucket, Capacity: 10, Rate: 1},
		{Name: "api", Algorithm: AlgorithmFixedWindow, Limit: 5, Window: time.Minute},
	}}
	assert.Error(t, dup.Validate())

	badDefault := valid
	badDefault.DefaultPolicy = "missing"
	assert.Error(t, badDefault.Validate())

	// Empty default disables self-enforcement and is fine.
	noDefault := valid
	noDefault.DefaultPolicy = ""
	assert.NoError(t, noDefault.Validate())

	invalidPolicy := LimitsConfig{Policies: []Policy{
		{Name: "api", Algorithm: AlgorithmTokenBucket, Capacity: 0, Rate: 1},
	}}
	assert.Error(t, invalidPolicy.Validate())
}

func TestLimitsConfig_PolicyByName(t *testing.T) {
	lc := LimitsConfig{Policies: []Policy{
		{Name: "api", Algorithm: AlgorithmTokenBucket, Capacity: 10, Rate: 1},
	}}

	p, ok := lc.PolicyByName("api")
	require.True(t, ok)
	assert.Equal(t, "api", p.Name)

	_, ok = lc.PolicyByName("missing")
	assert.False(t, ok)
}

func TestSecurityConfig_Validate(t *testing.T) {
	assert.NoError(t, (&SecurityConfig{}).Validate())

	authNoKeys := SecurityConfig{EnableAuth: true}
	assert.Error(t, authNoKeys.Validate())

	keyNoName := SecurityConfig{EnableAuth: true, APIKeys: []APIKey{{KeyHash: "abc"}}}
	assert.Error(t, keyNoName.Validate())

	keyNoHash := SecurityConfig{EnableAuth: true, APIKeys: []APIKey{{Name: "ci"}}}
	assert.Error(t, keyNoHash.Validate())

	valid := SecurityConfig{EnableAuth: true, APIKeys: []APIKey{{Name: "ci", KeyHash: "abc"}}}
	assert.NoError(t, valid.Validate())

	negRate := SecurityConfig{AdminRatePerSecond: -1}
	assert.Error(t, negRate.Validate())
}

func TestLoggingConfig_Validate(t *testing.T) {
	assert.NoError(t, (&LoggingConfig{Level: "info", Format: "json", Output: "stdout"}).Validate())
	assert.Error(t, (&LoggingConfig{Level: "verbose", Format: "json"}).Validate())
	assert.Error(t, (&LoggingConfig{Level: "info", Format: "xml"}).Validate())
	assert.Error(t, (&LoggingConfig{Level: "info", Format: "text", Output: "file"}).Validate())
	assert.NoError(t, (&LoggingConfig{Level: "info", Format: "text", Output: "file", FilePath: "/tmp/rl.log"}).Validate())
}

func TestMetricsConfig_Validate(t *testing.T) {
	// Disabled metrics skip validation entirely.
	assert.NoError(t, (&MetricsConfig{Enabled: false}).Validate())

	assert.Error(t, (&MetricsConfig{Enabled: true, Port: 0, Path: "/metrics"}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Port: 9090, Path: ""}).Validate())
	assert.NoError(t, (&MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"}).Validate())
}

func TestObservabilityConfig_Validate(t *testing.T) {
	assert.Error(t, (&ObservabilityConfig{}).Validate())

	disabled := ObservabilityConfig{ServiceName: "rl"}
	assert.NoError(t, disabled.Validate())

	stdout := ObservabilityConfig{ServiceName: "rl", Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 1}}
	assert.NoError(t, stdout.Validate())

	otlpNoEndpoint := ObservabilityConfig{ServiceName: "rl", Tracing: TracingConfig{Enabled: true, Exporter: "otlp"}}
	assert.Error(t, otlpNoEndpoint.Validate())

	badExporter := ObservabilityConfig{ServiceName: "rl", Tracing: TracingConfig{Enabled: true, Exporter: "jaeger"}}
	assert.Error(t, badExporter.Validate())

	badRate := ObservabilityConfig{ServiceName: "rl", Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 2}}
	assert.Error(t, badRate.Validate())
}
