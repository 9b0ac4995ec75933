package config

import "time"

// CreateDefaultConfig creates a configuration with sensible defaults
func CreateDefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxWorkers: 10,
			Timeout:    10 * time.Second,
			RateLimit:  10,
			MaxRetries: 3,
			RetryDelay: 500 * time.Millisecond,
		},
		Target: TargetConfig{
			Name:        "default-target",
			Description: "Default scan target",
			BaseURL:     "http://localhost:8080",
			Headers:     map[string]string{},
			Auth: AuthConfig{
				Type: "none",
			},
			TLS: TLSConfig{
				InsecureSkipVerify: false,
				MinVersion:         "1.2",
			},
		},
		Scan: ScanConfig{
			Techniques:   []string{"error", "boolean_blind", "time_blind", "union"},
			PointTimeout: 2 * time.Minute,
			MaxPayloads:  20,
			Parameters:   []string{"id", "search", "q", "page", "category"},
			TimeDelay:    3 * time.Second,
			TimeTrials:   3,
			MaxColumns:   10,
			Confidence: ConfidenceConfig{
				Error:         0.90,
				BooleanMin:    0.60,
				BooleanMax:    0.85,
				TimeMin:       0.50,
				TimeMax:       0.80,
				Union:         0.90,
				TieBreakDelta: 0.05,
			},
		},
		Exploit: ExploitConfig{
			Enable: false,
			Delegate: DelegateConfig{
				Enable:     true,
				BinaryPath: "",
				Timeout:    5 * time.Minute,
			},
			Oracle: OracleConfig{
				NoiseRetries:       2,
				MaxQueriesPerField: 512,
				FieldBudget:        10 * time.Minute,
				MaxLength:          64,
				TimeDelay:          3 * time.Second,
			},
			Fields: []string{"database", "user", "version"},
		},
		Reports: ReportsConfig{
			OutputDir: "./results",
			Pretty:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
