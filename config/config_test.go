package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DataDir == "" {
		t.Error("DefaultConfig().DataDir is empty")
	}
	if cfg.CaptureInterval != 500*time.Millisecond {
		t.Errorf("CaptureInterval = %v, want 500ms", cfg.CaptureInterval)
	}
	if cfg.CaptureTimeout != 30*time.Second {
		t.Errorf("CaptureTimeout = %v, want 30s", cfg.CaptureTimeout)
	}
	if cfg.DriftInterval != time.Minute {
		t.Errorf("DriftInterval = %v, want 1m", cfg.DriftInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WATCHLATER_DATA_DIR", "/tmp/watchlater-test")
	t.Setenv("WATCHLATER_CAPTURE_TIMEOUT", "45s")
	t.Setenv("WATCHLATER_MAX_RETRIES", "7")
	t.Setenv("WATCHLATER_AI_ENDPOINT", "https://tags.example.com/v1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/tmp/watchlater-test" {
		t.Errorf("DataDir = %q, want env override", cfg.DataDir)
	}
	if cfg.CaptureTimeout != 45*time.Second {
		t.Errorf("CaptureTimeout = %v, want 45s", cfg.CaptureTimeout)
	}
	if cfg.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", cfg.MaxRetries)
	}
	if cfg.AIEndpoint != "https://tags.example.com/v1" {
		t.Errorf("AIEndpoint = %q, want env override", cfg.AIEndpoint)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, true},
		{"zero capture interval", func(c *Config) { c.CaptureInterval = 0 }, true},
		{"zero drift interval", func(c *Config) { c.DriftInterval = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"max below initial backoff", func(c *Config) { c.MaxBackoff = c.InitialBackoff / 2 }, true},
		{"multiplier of 1", func(c *Config) { c.BackoffMultiplier = 1.0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
