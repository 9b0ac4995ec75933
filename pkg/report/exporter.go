// Package report serializes scan and exploitation outcomes to flat JSON
// files suitable for downstream tooling.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ahmad-20th/GrayTera/pkg/exploit"
	"github.com/ahmad-20th/GrayTera/pkg/scan"
)

// VulnerabilityRecord is the flat export form of a finding. Timestamps
// are ISO 8601, durations are milliseconds, booleans and numbers stay
// native.
type VulnerabilityRecord struct {
	ID           string  `json:"id"`
	Technique    string  `json:"technique"`
	BaseURL      string  `json:"base_url"`
	Method       string  `json:"method"`
	Parameter    string  `json:"parameter"`
	Location     string  `json:"location"`
	Confidence   float64 `json:"confidence"`
	Evidence     string  `json:"evidence"`
	PayloadUsed  string  `json:"payload_used"`
	DBMS         string  `json:"dbms,omitempty"`
	DiscoveredAt string  `json:"discovered_at"`
	Status       string  `json:"status"`
}

// ExploitRecord is the flat export form of one cascade outcome
type ExploitRecord struct {
	VulnerabilityID string            `json:"vulnerability_id"`
	Success         bool              `json:"success"`
	TechniqueUsed   string            `json:"technique_used"`
	ExtractedData   map[string]string `json:"extracted_data,omitempty"`
	Evidence        string            `json:"evidence,omitempty"`
	Error           string            `json:"error,omitempty"`
	StartedAt       string            `json:"started_at"`
	ElapsedMS       int64             `json:"elapsed_ms"`
}

// Report is the top-level export document
type Report struct {
	SessionID       string                `json:"session_id"`
	GeneratedAt     string                `json:"generated_at"`
	Target          string                `json:"target"`
	PointsScanned   int                   `json:"points_scanned"`
	PointsFailed    int                   `json:"points_failed"`
	ScanElapsedMS   int64                 `json:"scan_elapsed_ms"`
	Vulnerabilities []VulnerabilityRecord `json:"vulnerabilities"`
	Exploits        []ExploitRecord       `json:"exploits,omitempty"`
}

// Exporter writes report files into an output directory
type Exporter struct {
	outputDir string
	pretty    bool
}

func NewExporter(outputDir string, pretty bool) *Exporter {
	if outputDir == "" {
		outputDir = "./results"
	}
	return &Exporter{outputDir: outputDir, pretty: pretty}
}

// Build assembles the export document from engine results
func Build(sessionID, target string, summary *scan.ScanSummary, exploits []*exploit.ExploitResult) *Report {
	r := &Report{
		SessionID:       sessionID,
		GeneratedAt:     time.Now().UTC().Format(time.RFC3339),
		Target:          target,
		Vulnerabilities: []VulnerabilityRecord{},
	}

	if summary != nil {
		r.PointsScanned = summary.PointsScanned
		r.PointsFailed = summary.PointsFailed
		r.ScanElapsedMS = summary.Elapsed.Milliseconds()
		for _, v := range summary.Findings {
			r.Vulnerabilities = append(r.Vulnerabilities, flattenVulnerability(v))
		}
	}

	for _, e := range exploits {
		if e == nil {
			continue
		}
		r.Exploits = append(r.Exploits, flattenExploit(e))
	}

	return r
}

func flattenVulnerability(v *scan.Vulnerability) VulnerabilityRecord {
	return VulnerabilityRecord{
		ID:           v.ID,
		Technique:    v.Technique.String(),
		BaseURL:      v.Point.BaseURL,
		Method:       v.Point.Method,
		Parameter:    v.Point.Parameter,
		Location:     string(v.Point.Location),
		Confidence:   v.Confidence,
		Evidence:     v.Evidence,
		PayloadUsed:  v.PayloadUsed,
		DBMS:         v.DBMS,
		DiscoveredAt: v.DiscoveredAt.UTC().Format(time.RFC3339),
		Status:       string(v.Status),
	}
}

func flattenExploit(e *exploit.ExploitResult) ExploitRecord {
	return ExploitRecord{
		VulnerabilityID: e.VulnerabilityID,
		Success:         e.Success,
		TechniqueUsed:   e.TechniqueUsed,
		ExtractedData:   e.ExtractedData,
		Evidence:        e.Evidence,
		Error:           e.Error,
		StartedAt:       e.StartedAt.UTC().Format(time.RFC3339),
		ElapsedMS:       e.Elapsed.Milliseconds(),
	}
}

// Export writes the report to disk and returns the file path
func (ex *Exporter) Export(r *Report) (string, error) {
	if err := os.MkdirAll(ex.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var data []byte
	var err error
	if ex.pretty {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	filename := fmt.Sprintf("graytera_%s.json", r.SessionID)
	path := filepath.Join(ex.outputDir, filename)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}
