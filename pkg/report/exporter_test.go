package report

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/ahmad-20th/GrayTera/pkg/exploit"
	"github.com/ahmad-20th/GrayTera/pkg/scan"
)

func sampleSummary() *scan.ScanSummary {
	vuln := scan.NewVulnerability(scan.TechniqueBooleanBlind, scan.InjectionPoint{
		BaseURL:   "http://shop.test/item",
		Method:    "GET",
		Parameter: "id",
		Location:  scan.LocationQuery,
		SeedValue: "1",
	}, 0.85, "differential confirmed", "' AND 1=1-- -", "MySQL")

	return &scan.ScanSummary{
		PointsScanned: 3,
		PointsFailed:  1,
		Findings:      []*scan.Vulnerability{vuln},
		Elapsed:       1500 * time.Millisecond,
	}
}

func TestExportWritesValidJSON(t *testing.T) {
	summary := sampleSummary()
	exploits := []*exploit.ExploitResult{{
		VulnerabilityID: summary.Findings[0].ID,
		Success:         true,
		TechniqueUsed:   "boolean_blind",
		ExtractedData:   map[string]string{"database": "shopdb"},
		StartedAt:       time.Now().UTC(),
		Elapsed:         2 * time.Second,
	}}

	r := Build("gt_1756000000", "http://shop.test", summary, exploits)
	ex := NewExporter(t.TempDir(), true)

	path, err := ex.Export(r)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("exported file is not valid JSON: %v", err)
	}

	vulns, ok := decoded["vulnerabilities"].([]any)
	if !ok || len(vulns) != 1 {
		t.Fatalf("expected 1 vulnerability record, got %v", decoded["vulnerabilities"])
	}

	record := vulns[0].(map[string]any)
	if record["technique"] != "boolean_blind" {
		t.Errorf("technique = %v", record["technique"])
	}
	if _, isNumber := record["confidence"].(float64); !isNumber {
		t.Error("confidence must export as a native number")
	}

	// ISO 8601 timestamp round-trips through RFC3339 parsing
	if _, err := time.Parse(time.RFC3339, record["discovered_at"].(string)); err != nil {
		t.Errorf("discovered_at is not ISO 8601: %v", record["discovered_at"])
	}

	exploitsOut := decoded["exploits"].([]any)
	first := exploitsOut[0].(map[string]any)
	if first["success"] != true {
		t.Error("success must export as a native bool")
	}
	if first["elapsed_ms"].(float64) != 2000 {
		t.Errorf("elapsed_ms = %v, want 2000", first["elapsed_ms"])
	}
	if first["extracted_data"].(map[string]any)["database"] != "shopdb" {
		t.Error("extracted data missing from export")
	}
}

func TestBuildWithoutExploits(t *testing.T) {
	r := Build("gt_2", "http://shop.test", sampleSummary(), nil)

	if len(r.Exploits) != 0 {
		t.Errorf("expected no exploit records, got %d", len(r.Exploits))
	}
	if r.PointsScanned != 3 || r.PointsFailed != 1 {
		t.Errorf("summary counters lost: %+v", r)
	}
}

func TestExportCompactMode(t *testing.T) {
	ex := NewExporter(t.TempDir(), false)
	path, err := ex.Export(Build("gt_3", "http://shop.test", sampleSummary(), nil))
	if err != nil {
		t.Fatal(err)
	}

	raw, _ := os.ReadFile(path)
	if len(raw) == 0 {
		t.Fatal("empty export")
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("compact export is not valid JSON: %v", err)
	}
}
