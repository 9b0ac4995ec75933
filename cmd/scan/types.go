package scan

import (
	"time"

	"github.com/ahmad-20th/GrayTera/pkg/config"
	"github.com/ahmad-20th/GrayTera/pkg/exploit"
	enginescan "github.com/ahmad-20th/GrayTera/pkg/scan"
)

// Colors for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// SessionResult represents the complete result of a scan session
type SessionResult struct {
	// Session metadata
	SessionID string        `json:"session_id"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`

	// Target information
	Target config.TargetConfig `json:"target"`

	// Scan output
	Summary  *enginescan.ScanSummary  `json:"summary"`
	Exploits []*exploit.ExploitResult `json:"exploits,omitempty"`
}

// Orchestrator wires the engine components for one CLI session
type Orchestrator struct {
	config  *config.Config
	target  *config.TargetConfig
	verbose bool
	noColor bool
}

// NewOrchestrator creates a scan orchestrator from loaded configuration
func NewOrchestrator(cfg *config.Config, verbose, noColor bool) *Orchestrator {
	return &Orchestrator{
		config:  cfg,
		target:  &cfg.Target,
		verbose: verbose,
		noColor: noColor,
	}
}
