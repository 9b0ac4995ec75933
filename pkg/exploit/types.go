// Package exploit turns confirmed findings into extracted data. A
// cascade controller first hands each vulnerability to an external
// delegate tool, then falls back to a built-in blind-extraction oracle
// when the delegate is unavailable or fails.
package exploit

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAmbiguousSignal means the oracle could not tell TRUE from
	// FALSE after exhausting its noise retries
	ErrAmbiguousSignal = errors.New("ambiguous oracle signal")

	// ErrUnsupportedTechnique means the finding's technique cannot
	// drive blind extraction
	ErrUnsupportedTechnique = errors.New("technique does not support blind extraction")

	// ErrToolUnavailable means the external delegate tool could not be
	// found or started
	ErrToolUnavailable = errors.New("exploitation tool unavailable")

	// ErrBudgetExceeded means a per-field query or wall-clock budget
	// ran out mid-extraction
	ErrBudgetExceeded = errors.New("extraction budget exceeded")
)

// ExploitResult is the immutable outcome of one cascade attempt.
// Exactly one is produced per processed vulnerability.
type ExploitResult struct {
	VulnerabilityID string            `json:"vulnerability_id"`
	Success         bool              `json:"success"`
	TechniqueUsed   string            `json:"technique_used"`
	ExtractedData   map[string]string `json:"extracted_data,omitempty"`
	Evidence        string            `json:"evidence,omitempty"`
	Error           string            `json:"error,omitempty"`
	StartedAt       time.Time         `json:"started_at"`
	Elapsed         time.Duration     `json:"elapsed"`
}

// DelegateRequest describes one exploitation job for an external tool
type DelegateRequest struct {
	TargetURL string
	Method    string
	Parameter string
	Technique string
	DBMS      string
	Fields    []string
}

// DelegateResult is what a delegate recovered
type DelegateResult struct {
	ExtractedData map[string]string
	Output        string
}

// Delegate is an external exploitation backend. The default
// implementation shells out to sqlmap; API-backed delegates satisfy the
// same contract.
type Delegate interface {
	Name() string
	Run(ctx context.Context, req DelegateRequest) (*DelegateResult, error)
}

// ExtractionPlan is the Analyze stage's output: what to extract and how
type ExtractionPlan struct {
	DBMS      string
	Technique string
	Fields    []string
}
