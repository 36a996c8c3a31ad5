// Package config loads the server and backfill settings from config/server.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultPath is where the binaries look when no path is given.
const DefaultPath = "config/server.yaml"

// Configuration validation errors.
var (
	ErrMissingAddr      = errors.New("server.addr is required")
	ErrInvalidLogLevel  = errors.New("logging.level must be one of: debug, info, warn, warning, error")
	ErrInvalidMemoTTL   = errors.New("classifier.memo_ttl must be a positive duration")
	ErrInvalidBatchSize = errors.New("backfill.limit must be at least 1")
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Backfill   BackfillConfig   `yaml:"backfill"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigin is sent as Access-Control-Allow-Origin.
	AllowedOrigin string `yaml:"allowed_origin"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CatalogConfig points at an alternative canonical catalog. Empty means the
// built-in one.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// ClassifierConfig tunes the classification memo.
type ClassifierConfig struct {
	MemoTTL string `yaml:"memo_ttl"`
}

// BackfillConfig holds the defaults of a backfill run.
type BackfillConfig struct {
	Limit int `yaml:"limit"`
	// Pushgateway receives the run's metrics when set, e.g. http://pushgateway:9091.
	Pushgateway string `yaml:"pushgateway"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Server:     ServerConfig{Addr: ":8080", AllowedOrigin: "*"},
		Logging:    LoggingConfig{Level: "info"},
		Classifier: ClassifierConfig{MemoTTL: "10m"},
		Backfill:   BackfillConfig{Limit: 500},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return ErrMissingAddr
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel
	}

	if ttl, err := time.ParseDuration(c.Classifier.MemoTTL); err != nil || ttl <= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidMemoTTL, c.Classifier.MemoTTL)
	}

	if c.Backfill.Limit < 1 {
		return ErrInvalidBatchSize
	}

	return nil
}

// MemoTTL returns the parsed classifier memo TTL. Call after Validate.
func (c *Config) MemoTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Classifier.MemoTTL)
	return ttl
}
