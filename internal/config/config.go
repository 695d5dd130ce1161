package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ratelimiter/internal/models"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnvironment loads configuration from environment variables
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("RATELIMITER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if host := os.Getenv("RATELIMITER_HOST"); host != "" {
		config.Server.Host = host
	}

	if timeout := os.Getenv("RATELIMITER_READ_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.ReadTimeout = d
		}
	}

	if timeout := os.Getenv("RATELIMITER_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.WriteTimeout = d
		}
	}

	if timeout := os.Getenv("RATELIMITER_IDLE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Server.IdleTimeout = d
		}
	}

	if tls := os.Getenv("RATELIMITER_TLS_ENABLED"); tls != "" {
		config.Server.TLSEnabled = strings.ToLower(tls) == "true"
	}

	if certFile := os.Getenv("RATELIMITER_TLS_CERT_FILE"); certFile != "" {
		config.Server.TLSCertFile = certFile
	}

	if keyFile := os.Getenv("RATELIMITER_TLS_KEY_FILE"); keyFile != "" {
		config.Server.TLSKeyFile = keyFile
	}

	// Store configuration
	if storeType := os.Getenv("RATELIMITER_STORE_TYPE"); storeType != "" {
		config.Store.Type = storeType
	}

	if storePath := os.Getenv("RATELIMITER_STORE_PATH"); storePath != "" {
		config.Store.Path = storePath
	}

	if interval := os.Getenv("RATELIMITER_STORE_FLUSH_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Store.FlushInterval = d
		}
	}

	if interval := os.Getenv("RATELIMITER_STORE_SWEEP_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Store.SweepInterval = d
		}
	}

	if dsn := os.Getenv("RATELIMITER_DATABASE_DSN"); dsn != "" {
		config.Store.Database.DSN = dsn
	}

	if maxOpen := os.Getenv("RATELIMITER_DATABASE_MAX_OPEN_CONNS"); maxOpen != "" {
		if conns, err := strconv.Atoi(maxOpen); err == nil {
			config.Store.Database.MaxOpenConns = conns
		}
	}

	if maxIdle := os.Getenv("RATELIMITER_DATABASE_MAX_IDLE_CONNS"); maxIdle != "" {
		if conns, err := strconv.Atoi(maxIdle); err == nil {
			config.Store.Database.MaxIdleConns = conns
		}
	}

	// Limits configuration
	if def := os.Getenv("RATELIMITER_DEFAULT_POLICY"); def != "" {
		config.Limits.DefaultPolicy = def
	}

	if failOpen := os.Getenv("RATELIMITER_FAIL_OPEN"); failOpen != "" {
		config.Limits.FailOpen = strings.ToLower(failOpen) == "true"
	}

	// Security configuration
	if auth := os.Getenv("RATELIMITER_ENABLE_AUTH"); auth != "" {
		config.Security.EnableAuth = strings.ToLower(auth) == "true"
	}

	// Logging configuration
	if level := os.Getenv("RATELIMITER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if format := os.Getenv("RATELIMITER_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if output := os.Getenv("RATELIMITER_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}

	if filePath := os.Getenv("RATELIMITER_LOG_FILE_PATH"); filePath != "" {
		config.Logging.FilePath = filePath
	}

	// Metrics configuration
	if metrics := os.Getenv("RATELIMITER_METRICS_ENABLED"); metrics != "" {
		config.Metrics.Enabled = strings.ToLower(metrics) == "true"
	}

	if path := os.Getenv("RATELIMITER_METRICS_PATH"); path != "" {
		config.Metrics.Path = path
	}

	if port := os.Getenv("RATELIMITER_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Metrics.Port = p
		}
	}

	// Observability configuration
	if tracing := os.Getenv("RATELIMITER_TRACING_ENABLED"); tracing != "" {
		config.Observability.Tracing.Enabled = strings.ToLower(tracing) == "true"
	}

	if exporter := os.Getenv("RATELIMITER_TRACING_EXPORTER"); exporter != "" {
		config.Observability.Tracing.Exporter = exporter
	}

	if endpoint := os.Getenv("RATELIMITER_OTLP_ENDPOINT"); endpoint != "" {
		config.Observability.Tracing.OTLPEndpoint = endpoint
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Get default config with some example values
	config := models.NewDefaultConfig()

	config.Limits.Policies = []models.Policy{
		{Name: "default", Algorithm: models.AlgorithmTokenBucket, Capacity: 100, Rate: 10},
		{Name: "login", Algorithm: models.AlgorithmFixedWindow, Limit: 5, Window: time.Minute},
		{Name: "search", Algorithm: models.AlgorithmSlidingWindow, Limit: 30, Window: time.Minute},
		{Name: "uploads", Algorithm: models.AlgorithmLeakyBucket, Capacity: 10, Rate: 0.5},
	}
	config.Limits.DefaultPolicy = "default"

	// Enable authentication for example
	config.Security.EnableAuth = true
	config.Security.APIKeys = []models.APIKey{
		{
			Name:        "admin",
			KeyHash:     "sha256-hex-of-your-key-here",
			Permissions: []string{"admin"},
			Enabled:     true,
		},
	}

	// Example TLS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
