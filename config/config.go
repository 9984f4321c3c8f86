// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration for watchlater.
type Config struct {
	// DataDir is the directory holding the local document store
	// (default: ~/.local/share/watchlater)
	DataDir string `json:"data_dir"`

	// OAuthClientSecret pairs with the OAuth client id from settings for
	// the authorization-code exchange
	OAuthClientSecret string `json:"oauth_client_secret"`
	// AIEndpoint is the AI tagging service URL (empty disables AI tagging)
	AIEndpoint string `json:"ai_endpoint"`

	// CaptureInterval is the delay between capture source polls
	CaptureInterval time.Duration `json:"capture_interval"`
	// CaptureTimeout is the absolute window to wait for a capture
	CaptureTimeout time.Duration `json:"capture_timeout"`
	// DriftInterval is the period between background remote drift checks
	DriftInterval time.Duration `json:"drift_interval"`

	// MaxRetries is the maximum number of retries for failed remote operations
	MaxRetries int `json:"max_retries"`
	// InitialBackoff is the initial backoff duration for retries
	InitialBackoff time.Duration `json:"initial_backoff"`
	// MaxBackoff is the maximum backoff duration for retries
	MaxBackoff time.Duration `json:"max_backoff"`
	// BackoffMultiplier is the multiplier for exponential backoff (must be > 1)
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:           filepath.Join(os.Getenv("HOME"), ".local", "share", "watchlater"),
		CaptureInterval:   500 * time.Millisecond,
		CaptureTimeout:    30 * time.Second,
		DriftInterval:     time.Minute,
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Load loads configuration from environment variables, config file, and applies defaults.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Override with environment variables
	cfg.loadFromEnv()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from watchlater.json in current directory or home directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"watchlater.json",
		filepath.Join(os.Getenv("HOME"), ".config", "watchlater", "watchlater.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("WATCHLATER_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("WATCHLATER_OAUTH_CLIENT_SECRET"); v != "" {
		c.OAuthClientSecret = v
	}
	if v := os.Getenv("WATCHLATER_AI_ENDPOINT"); v != "" {
		c.AIEndpoint = v
	}
	if v := os.Getenv("WATCHLATER_CAPTURE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CaptureInterval = d
		}
	}
	if v := os.Getenv("WATCHLATER_CAPTURE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CaptureTimeout = d
		}
	}
	if v := os.Getenv("WATCHLATER_DRIFT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DriftInterval = d
		}
	}
	if v := os.Getenv("WATCHLATER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	if v := os.Getenv("WATCHLATER_INITIAL_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.InitialBackoff = d
		}
	}
	if v := os.Getenv("WATCHLATER_MAX_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.MaxBackoff = d
		}
	}
}

// Validate checks that configuration values are valid and consistent.
// It returns an error if any configuration value is invalid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if c.CaptureInterval <= 0 {
		return fmt.Errorf("capture_interval must be positive")
	}
	if c.CaptureTimeout <= 0 {
		return fmt.Errorf("capture_timeout must be positive")
	}
	if c.DriftInterval <= 0 {
		return fmt.Errorf("drift_interval must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	return nil
}
