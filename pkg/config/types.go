package config

import (
	"time"
)

// Config represents the main GrayTera configuration
type Config struct {
	// Core engine settings
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Target configuration
	Target TargetConfig `yaml:"target" json:"target"`

	// Detection configuration
	Scan ScanConfig `yaml:"scan" json:"scan"`

	// Exploitation configuration
	Exploit ExploitConfig `yaml:"exploit" json:"exploit"`

	// Reporting configuration
	Reports ReportsConfig `yaml:"reports" json:"reports"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// EngineConfig defines the core engine behavior
type EngineConfig struct {
	// Maximum concurrent workers for scanning and exploitation
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`

	// Timeout for individual HTTP requests
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Request rate limiting (requests per second)
	RateLimit int `yaml:"rate_limit" json:"rate_limit"`

	// Retry configuration for network failures
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// TargetConfig defines the target system configuration
type TargetConfig struct {
	// Target identification
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	// Connection details
	BaseURL string            `yaml:"base_url" json:"base_url"`
	Headers map[string]string `yaml:"headers" json:"headers"`

	// Authentication
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// TLS configuration
	TLS TLSConfig `yaml:"tls" json:"tls"`
}

// AuthConfig defines authentication parameters
type AuthConfig struct {
	// Authentication type (none, basic, bearer, custom)
	Type string `yaml:"type" json:"type"`

	// Credentials for basic auth
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`

	// Token for bearer auth
	Token string `yaml:"token" json:"token"`

	// Custom authentication headers
	CustomHeaders map[string]string `yaml:"custom_headers" json:"custom_headers"`
}

// TLSConfig defines TLS-specific connection parameters
type TLSConfig struct {
	// Skip certificate verification for testing
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" json:"insecure_skip_verify"`

	// Custom CA certificate path
	CACertPath string `yaml:"ca_cert_path" json:"ca_cert_path"`

	// Client certificate for mutual TLS
	ClientCertPath string `yaml:"client_cert_path" json:"client_cert_path"`
	ClientKeyPath  string `yaml:"client_key_path" json:"client_key_path"`

	// TLS version constraints
	MinVersion string `yaml:"min_version" json:"min_version"`
	MaxVersion string `yaml:"max_version" json:"max_version"`
}

// ScanConfig defines the detection strategy configuration
type ScanConfig struct {
	// Enabled techniques (error, boolean_blind, time_blind, union).
	// Empty means all techniques are enabled.
	Techniques []string `yaml:"techniques" json:"techniques"`

	// Per-injection-point overall timeout
	PointTimeout time.Duration `yaml:"point_timeout" json:"point_timeout"`

	// Maximum payload attempts per strategy per injection point
	MaxPayloads int `yaml:"max_payloads" json:"max_payloads"`

	// Parameters to test when none are discovered from the URL
	Parameters []string `yaml:"parameters" json:"parameters"`

	// Time-blind settings: induced delay and trial count
	TimeDelay  time.Duration `yaml:"time_delay" json:"time_delay"`
	TimeTrials int           `yaml:"time_trials" json:"time_trials"`

	// Union-based settings: upper bound for column-count probing
	MaxColumns int `yaml:"max_columns" json:"max_columns"`

	// Confidence bounds per technique. These are tunable constants,
	// not derived values.
	Confidence ConfidenceConfig `yaml:"confidence" json:"confidence"`
}

// ConfidenceConfig holds the tunable confidence bounds per technique.
type ConfidenceConfig struct {
	Error      float64 `yaml:"error" json:"error"`
	BooleanMin float64 `yaml:"boolean_min" json:"boolean_min"`
	BooleanMax float64 `yaml:"boolean_max" json:"boolean_max"`
	TimeMin    float64 `yaml:"time_min" json:"time_min"`
	TimeMax    float64 `yaml:"time_max" json:"time_max"`
	Union      float64 `yaml:"union" json:"union"`

	// Findings within this delta are resolved by the reliability
	// tie-break (error > union > boolean > time) during dedup.
	TieBreakDelta float64 `yaml:"tie_break_delta" json:"tie_break_delta"`
}

// ExploitConfig defines the exploitation cascade configuration
type ExploitConfig struct {
	Enable bool `yaml:"enable" json:"enable"`

	// Delegate (external exploitation tool) settings
	Delegate DelegateConfig `yaml:"delegate" json:"delegate"`

	// Blind-extraction oracle settings
	Oracle OracleConfig `yaml:"oracle" json:"oracle"`

	// Fields to extract (database, user, version)
	Fields []string `yaml:"fields" json:"fields"`
}

// DelegateConfig defines the external exploitation tool invocation
type DelegateConfig struct {
	Enable bool `yaml:"enable" json:"enable"`

	// Path to the sqlmap binary; resolved from PATH when empty
	BinaryPath string `yaml:"binary_path" json:"binary_path"`

	// Single-attempt timeout for the delegate call
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// OracleConfig defines the blind-extraction oracle behavior
type OracleConfig struct {
	// Retries per binary-search query on an ambiguous signal
	NoiseRetries int `yaml:"noise_retries" json:"noise_retries"`

	// Maximum total oracle queries per extracted field
	MaxQueriesPerField int `yaml:"max_queries_per_field" json:"max_queries_per_field"`

	// Wall-clock budget per extracted field
	FieldBudget time.Duration `yaml:"field_budget" json:"field_budget"`

	// Maximum characters recovered per field
	MaxLength int `yaml:"max_length" json:"max_length"`

	// Induced delay for the time-blind oracle
	TimeDelay time.Duration `yaml:"time_delay" json:"time_delay"`
}

// ReportsConfig defines reporting configuration
type ReportsConfig struct {
	// Output directory for result files
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Pretty-print exported JSON
	Pretty bool `yaml:"pretty" json:"pretty"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Log format (console, json)
	Format string `yaml:"format" json:"format"`
}
