package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const DefaultConfigFilename = "graytera.yaml"

// LoadConfig loads configuration from a YAML file
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultConfigFilename
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	yamlData, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(yamlData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadConfigOrCreateDefault loads config from file or returns default if not found
func LoadConfigOrCreateDefault(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultConfigFilename
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return CreateDefaultConfig(), nil
	}

	return LoadConfig(filename)
}

// ValidateConfig validates the configuration for correctness
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}

	if err := validateTargetConfig(&cfg.Target); err != nil {
		return fmt.Errorf("target configuration error: %w", err)
	}

	if err := validateEngineConfig(&cfg.Engine); err != nil {
		return fmt.Errorf("engine configuration error: %w", err)
	}

	if err := validateScanConfig(&cfg.Scan); err != nil {
		return fmt.Errorf("scan configuration error: %w", err)
	}

	if err := validateExploitConfig(&cfg.Exploit); err != nil {
		return fmt.Errorf("exploit configuration error: %w", err)
	}

	return nil
}

// validateTargetConfig validates target-specific configuration
func validateTargetConfig(target *TargetConfig) error {
	if target.BaseURL == "" {
		return fmt.Errorf("target URL is required")
	}

	switch target.Auth.Type {
	case "", "none", "basic", "bearer", "custom":
	default:
		return fmt.Errorf("invalid auth type: %s", target.Auth.Type)
	}

	return nil
}

// validateEngineConfig validates engine-specific configuration
func validateEngineConfig(engine *EngineConfig) error {
	if engine.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive, got: %d", engine.MaxWorkers)
	}

	if engine.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %v", engine.Timeout)
	}

	if engine.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative, got: %d", engine.RateLimit)
	}

	if engine.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got: %d", engine.MaxRetries)
	}

	if engine.RetryDelay < 0 {
		return fmt.Errorf("retry delay cannot be negative, got: %v", engine.RetryDelay)
	}

	return nil
}

// validateScanConfig validates detection-specific configuration
func validateScanConfig(scan *ScanConfig) error {
	validTechniques := map[string]bool{
		"error":         true,
		"boolean_blind": true,
		"time_blind":    true,
		"union":         true,
	}

	for _, t := range scan.Techniques {
		if !validTechniques[t] {
			return fmt.Errorf("unknown technique: %s", t)
		}
	}

	if scan.MaxPayloads <= 0 {
		return fmt.Errorf("max payloads must be positive, got: %d", scan.MaxPayloads)
	}

	if scan.TimeTrials < 2 {
		return fmt.Errorf("time trials must be at least 2, got: %d", scan.TimeTrials)
	}

	c := scan.Confidence
	for name, v := range map[string]float64{
		"error":       c.Error,
		"boolean_min": c.BooleanMin,
		"boolean_max": c.BooleanMax,
		"time_min":    c.TimeMin,
		"time_max":    c.TimeMax,
		"union":       c.Union,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("confidence %s must be in [0,1], got: %v", name, v)
		}
	}

	if c.BooleanMin > c.BooleanMax {
		return fmt.Errorf("boolean confidence bounds inverted: %v > %v", c.BooleanMin, c.BooleanMax)
	}
	if c.TimeMin > c.TimeMax {
		return fmt.Errorf("time confidence bounds inverted: %v > %v", c.TimeMin, c.TimeMax)
	}

	return nil
}

// validateExploitConfig validates exploitation-specific configuration
func validateExploitConfig(exploit *ExploitConfig) error {
	if exploit.Oracle.NoiseRetries < 0 {
		return fmt.Errorf("noise retries cannot be negative, got: %d", exploit.Oracle.NoiseRetries)
	}

	if exploit.Oracle.MaxQueriesPerField <= 0 {
		return fmt.Errorf("max queries per field must be positive, got: %d", exploit.Oracle.MaxQueriesPerField)
	}

	if exploit.Oracle.MaxLength <= 0 {
		return fmt.Errorf("oracle max length must be positive, got: %d", exploit.Oracle.MaxLength)
	}

	if exploit.Delegate.Enable && exploit.Delegate.Timeout <= 0 {
		return fmt.Errorf("delegate timeout must be positive when delegate is enabled")
	}

	return nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(cfg *Config, filename string) error {
	if filename == "" {
		filename = DefaultConfigFilename
	}

	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("cannot save invalid configuration: %w", err)
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize configuration: %w", err)
	}

	if err := os.WriteFile(filename, yamlData, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
