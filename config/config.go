// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Quota      QuotaConfig      `yaml:"quota"`
	Suspension SuspensionConfig `yaml:"suspension"`
	BreakGlass BreakGlassConfig `yaml:"break_glass"`
	Usage      UsageConfig      `yaml:"usage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (postgres possible later)
	DSN    string `yaml:"dsn"`
}

// SnapshotConfig configures the cached snapshot path.
type SnapshotConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	BuildTimeout time.Duration `yaml:"build_timeout"`
	RetryAfter   time.Duration `yaml:"retry_after"`
}

// QuotaConfig configures quota evaluation.
type QuotaConfig struct {
	WarnThresholdPct float64 `yaml:"warn_threshold_pct"` // advisory threshold, percent of hard cap
}

// SuspensionConfig configures the suspension check job and its HTTP trigger.
type SuspensionConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
	TriggerLimit  int           `yaml:"trigger_limit"` // trigger endpoint calls per window per caller
	TriggerWindow time.Duration `yaml:"trigger_window"`
}

// BreakGlassConfig configures break-glass override sessions.
type BreakGlassConfig struct {
	SessionTTL      time.Duration `yaml:"session_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// UsageConfig configures the asynchronous usage recorder.
type UsageConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	COREPLANE_SERVER_HOST         - Server host (default: 0.0.0.0)
//	COREPLANE_SERVER_PORT         - Server port (default: 8080)
//	COREPLANE_DATABASE_DSN        - Database path (default: coreplane.db)
//	COREPLANE_SNAPSHOT_TTL        - Snapshot cache TTL (default: 45s)
//	COREPLANE_QUOTA_WARN_PCT      - Advisory warning threshold (default: 90)
//	COREPLANE_SUSPENSION_INTERVAL - Suspension check interval (default: 1m)
//	COREPLANE_BREAKGLASS_TTL      - Break-glass session TTL (default: 1h)
//	COREPLANE_LOG_LEVEL           - Log level: debug, info, warn, error (default: info)
//	COREPLANE_LOG_FORMAT          - Log format: json or console (default: json)
//	COREPLANE_METRICS_ENABLED     - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables. Every setting has a default, so the fallback always yields a
// runnable configuration.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies COREPLANE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("COREPLANE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("COREPLANE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("COREPLANE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("COREPLANE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("COREPLANE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("COREPLANE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Snapshot configuration
	if v := os.Getenv("COREPLANE_SNAPSHOT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshot.TTL = d
		}
	}
	if v := os.Getenv("COREPLANE_SNAPSHOT_BUILD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshot.BuildTimeout = d
		}
	}
	if v := os.Getenv("COREPLANE_SNAPSHOT_RETRY_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshot.RetryAfter = d
		}
	}

	// Quota configuration
	if v := os.Getenv("COREPLANE_QUOTA_WARN_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Quota.WarnThresholdPct = f
		}
	}

	// Suspension configuration
	if v := os.Getenv("COREPLANE_SUSPENSION_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Suspension.CheckInterval = d
		}
	}
	if v := os.Getenv("COREPLANE_SUSPENSION_TRIGGER_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Suspension.TriggerLimit = n
		}
	}
	if v := os.Getenv("COREPLANE_SUSPENSION_TRIGGER_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Suspension.TriggerWindow = d
		}
	}

	// Break-glass configuration
	if v := os.Getenv("COREPLANE_BREAKGLASS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BreakGlass.SessionTTL = d
		}
	}
	if v := os.Getenv("COREPLANE_BREAKGLASS_CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BreakGlass.CleanupInterval = d
		}
	}

	// Usage recorder configuration
	if v := os.Getenv("COREPLANE_USAGE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Usage.BatchSize = n
		}
	}
	if v := os.Getenv("COREPLANE_USAGE_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Usage.FlushInterval = d
		}
	}

	// Logging configuration
	if v := os.Getenv("COREPLANE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COREPLANE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("COREPLANE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("COREPLANE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "coreplane.db"
	}

	if cfg.Snapshot.TTL == 0 {
		cfg.Snapshot.TTL = 45 * time.Second
	}
	if cfg.Snapshot.BuildTimeout == 0 {
		cfg.Snapshot.BuildTimeout = 2 * time.Second
	}
	if cfg.Snapshot.RetryAfter == 0 {
		cfg.Snapshot.RetryAfter = 10 * time.Second
	}

	if cfg.Quota.WarnThresholdPct == 0 {
		cfg.Quota.WarnThresholdPct = 90
	}

	if cfg.Suspension.CheckInterval == 0 {
		cfg.Suspension.CheckInterval = time.Minute
	}
	if cfg.Suspension.TriggerLimit == 0 {
		cfg.Suspension.TriggerLimit = 6
	}
	if cfg.Suspension.TriggerWindow == 0 {
		cfg.Suspension.TriggerWindow = time.Minute
	}

	if cfg.BreakGlass.SessionTTL == 0 {
		cfg.BreakGlass.SessionTTL = time.Hour
	}
	if cfg.BreakGlass.CleanupInterval == 0 {
		cfg.BreakGlass.CleanupInterval = 10 * time.Minute
	}

	if cfg.Usage.BatchSize == 0 {
		cfg.Usage.BatchSize = 100
	}
	if cfg.Usage.FlushInterval == 0 {
		cfg.Usage.FlushInterval = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite', got %q", cfg.Database.Driver)
	}

	if cfg.Snapshot.TTL < 0 {
		return fmt.Errorf("snapshot.ttl must not be negative")
	}
	if cfg.Snapshot.BuildTimeout < 0 {
		return fmt.Errorf("snapshot.build_timeout must not be negative")
	}

	if cfg.Quota.WarnThresholdPct < 0 || cfg.Quota.WarnThresholdPct > 100 {
		return fmt.Errorf("quota.warn_threshold_pct must be between 0 and 100, got %v", cfg.Quota.WarnThresholdPct)
	}

	if cfg.Suspension.TriggerLimit < 0 {
		return fmt.Errorf("suspension.trigger_limit must not be negative")
	}

	if cfg.BreakGlass.SessionTTL < 0 {
		return fmt.Errorf("break_glass.session_ttl must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	return nil
}
