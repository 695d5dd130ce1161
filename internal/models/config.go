// Package models - Service configuration and operational settings.
// Hierarchical configuration with per-component grouping, environment
// friendly defaults, and fail-fast validation at startup.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Store type constants
const (
	StoreTypeMemory   = "memory"
	StoreTypeFile     = "file"
	StoreTypePostgres = "postgres"
	StoreTypeSQLite   = "sqlite"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`               // HTTP server configuration
	Store         StoreConfig         `yaml:"store" json:"store"`                 // Key state persistence
	Limits        LimitsConfig        `yaml:"limits" json:"limits"`               // Rate limit policies and enforcement
	Security      SecurityConfig      `yaml:"security" json:"security"`           // API authentication
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`             // Structured logging
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`             // Prometheus metrics endpoint
	Observability ObservabilityConfig `yaml:"observability" json:"observability"` // Tracing
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

type StoreConfig struct {
	Type          string         `yaml:"type" json:"type"`
	Path          string         `yaml:"path" json:"path"`                     // file store snapshot path
	FlushInterval time.Duration  `yaml:"flush_interval" json:"flush_interval"` // file store snapshot cadence
	SweepInterval time.Duration  `yaml:"sweep_interval" json:"sweep_interval"` // stale key eviction cadence
	Database      DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// LimitsConfig holds the rate limit policies the service enforces, plus the
// enforcement wiring for the service's own HTTP surface.
type LimitsConfig struct {
	// Policies are the named limits available to /api/v1/check callers and
	// the enforcement middleware. Each must pass Policy.Validate.
	Policies []Policy `yaml:"policies" json:"policies"`

	// DefaultPolicy names the policy the enforcement middleware applies to
	// incoming requests. Empty disables self-enforcement.
	DefaultPolicy string `yaml:"default_policy" json:"default_policy"`

	// FailOpen controls behavior when the key store is unreachable during
	// middleware enforcement: true allows the request through, false denies
	// with 503. The engine itself never makes this choice.
	FailOpen bool `yaml:"fail_open" json:"fail_open"`
}

// PolicyByName returns the named policy, or false when absent.
func (lc LimitsConfig) PolicyByName(name string) (Policy, bool) {
	for _, p := range lc.Policies {
		if p.Name == name {
			return p, true
		}
	}
	return Policy{}, false
}

type SecurityConfig struct {
	EnableAuth bool     `yaml:"enable_auth" json:"enable_auth"`
	APIKeys    []APIKey `yaml:"api_keys" json:"api_keys"`

	// AdminRatePerSecond / AdminBurst bound mutating admin requests per
	// client IP, independent of the engine's own policies.
	AdminRatePerSecond float64 `yaml:"admin_rate_per_second" json:"admin_rate_per_second"`
	AdminBurst         int     `yaml:"admin_burst" json:"admin_burst"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // "stdout" or "otlp"
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration with production-ready defaults:
// memory store, a conservative token bucket default policy, fail-closed
// enforcement, JSON logging, and metrics enabled.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			TLSEnabled:   false,
		},
		Store: StoreConfig{
			Type:          StoreTypeMemory,
			SweepInterval: 5 * time.Minute,
			FlushInterval: 30 * time.Second,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Limits: LimitsConfig{
			Policies: []Policy{
				{
					Name:      "default",
					Algorithm: AlgorithmTokenBucket,
					Capacity:  10,
					Rate:      1, // one request per second, burst of ten
				},
			},
			DefaultPolicy: "default",
			FailOpen:      false,
		},
		Security: SecurityConfig{
			EnableAuth:         false,
			APIKeys:            []APIKey{},
			AdminRatePerSecond: 5,
			AdminBurst:         10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "ratelimiter",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("invalid store config: %w", err)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("invalid limits config: %w", err)
	}
	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}
	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}
	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}
	return nil
}

func (stc *StoreConfig) Validate() error {
	switch stc.Type {
	case StoreTypeMemory:
		// No additional configuration required.
	case StoreTypeFile:
		if stc.Path == "" {
			return errors.New("path is required for file store")
		}
	case StoreTypePostgres, StoreTypeSQLite:
		if stc.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s store", stc.Type)
		}
	default:
		return fmt.Errorf("invalid store type: %s", stc.Type)
	}
	if stc.SweepInterval < 0 {
		return errors.New("sweep interval cannot be negative")
	}
	if stc.FlushInterval < 0 {
		return errors.New("flush interval cannot be negative")
	}
	return nil
}

func (lc *LimitsConfig) Validate() error {
	seen := make(map[string]bool, len(lc.Policies))
	for _, p := range lc.Policies {
		if p.Name == "" {
			return errors.New("policy name cannot be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate policy name: %s", p.Name)
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if lc.DefaultPolicy != "" && !seen[lc.DefaultPolicy] {
		return fmt.Errorf("default policy %q is not defined", lc.DefaultPolicy)
	}
	return nil
}

func (sec *SecurityConfig) Validate() error {
	if sec.EnableAuth && len(sec.APIKeys) == 0 {
		return errors.New("auth is enabled but no API keys are configured")
	}
	for _, k := range sec.APIKeys {
		if k.Name == "" {
			return errors.New("API key name cannot be empty")
		}
		if k.KeyHash == "" {
			return fmt.Errorf("API key %s has no key hash", k.Name)
		}
	}
	if sec.AdminRatePerSecond < 0 {
		return errors.New("admin rate cannot be negative")
	}
	if sec.AdminBurst < 0 {
		return errors.New("admin burst cannot be negative")
	}
	return nil
}

func (lg *LoggingConfig) Validate() error {
	switch lg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lg.Level)
	}
	switch lg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lg.Format)
	}
	if lg.Output == "file" && lg.FilePath == "" {
		return errors.New("file path is required when log output is file")
	}
	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}
	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}
	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}
	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if oc.ServiceName == "" {
		return errors.New("service name cannot be empty")
	}
	if oc.Tracing.Enabled {
		switch oc.Tracing.Exporter {
		case "stdout":
		case "otlp":
			if oc.Tracing.OTLPEndpoint == "" {
				return errors.New("OTLP endpoint is required for the otlp exporter")
			}
		default:
			return fmt.Errorf("invalid tracing exporter: %s", oc.Tracing.Exporter)
		}
		if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
			return errors.New("sample rate must be between 0 and 1")
		}
	}
	return nil
}
