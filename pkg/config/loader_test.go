package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := CreateDefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graytera.yaml")

	cfg := CreateDefaultConfig()
	cfg.Target.BaseURL = "https://shop.example.com"
	cfg.Scan.TimeDelay = 5 * time.Second
	cfg.Exploit.Oracle.NoiseRetries = 4

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Target.BaseURL != cfg.Target.BaseURL {
		t.Errorf("base_url mismatch: got %s, want %s", loaded.Target.BaseURL, cfg.Target.BaseURL)
	}
	if loaded.Scan.TimeDelay != cfg.Scan.TimeDelay {
		t.Errorf("time_delay mismatch: got %v, want %v", loaded.Scan.TimeDelay, cfg.Scan.TimeDelay)
	}
	if loaded.Exploit.Oracle.NoiseRetries != 4 {
		t.Errorf("noise_retries mismatch: got %d, want 4", loaded.Exploit.Oracle.NoiseRetries)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfigOrCreateDefaultFallsBack(t *testing.T) {
	cfg, err := LoadConfigOrCreateDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("expected default config, got error: %v", err)
	}
	if cfg.Engine.MaxWorkers != 10 {
		t.Errorf("expected default max_workers 10, got %d", cfg.Engine.MaxWorkers)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("engine: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}

func TestValidateConfigRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing target url", func(c *Config) { c.Target.BaseURL = "" }},
		{"bad auth type", func(c *Config) { c.Target.Auth.Type = "kerberos" }},
		{"zero workers", func(c *Config) { c.Engine.MaxWorkers = 0 }},
		{"negative rate limit", func(c *Config) { c.Engine.RateLimit = -1 }},
		{"unknown technique", func(c *Config) { c.Scan.Techniques = []string{"oob"} }},
		{"one time trial", func(c *Config) { c.Scan.TimeTrials = 1 }},
		{"confidence above one", func(c *Config) { c.Scan.Confidence.Union = 1.3 }},
		{"inverted boolean bounds", func(c *Config) {
			c.Scan.Confidence.BooleanMin = 0.9
			c.Scan.Confidence.BooleanMax = 0.6
		}},
		{"negative noise retries", func(c *Config) { c.Exploit.Oracle.NoiseRetries = -1 }},
		{"zero oracle max length", func(c *Config) { c.Exploit.Oracle.MaxLength = 0 }},
		{"delegate enabled without timeout", func(c *Config) {
			c.Exploit.Delegate.Enable = true
			c.Exploit.Delegate.Timeout = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CreateDefaultConfig()
			tt.mutate(cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
