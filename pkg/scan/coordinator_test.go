package scan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
)

func finding(technique Technique, confidence float64, param string) *Vulnerability {
	return NewVulnerability(technique, InjectionPoint{
		BaseURL:   "http://target.test/item",
		Method:    "GET",
		Parameter: param,
		Location:  LocationQuery,
		SeedValue: "1",
	}, confidence, "evidence", "payload", "")
}

func TestDedupeTieBreakIsDeterministic(t *testing.T) {
	// 0.82 boolean vs 0.80 time: within the 0.05 delta, so the more
	// reliable technique wins regardless of input order
	boolean := finding(TechniqueBooleanBlind, 0.82, "id")
	timeBased := finding(TechniqueTimeBlind, 0.80, "id")

	for name, input := range map[string][]*Vulnerability{
		"boolean first": {boolean, timeBased},
		"time first":    {timeBased, boolean},
	} {
		out := dedupe(input, 0.05)
		if len(out) != 1 {
			t.Fatalf("%s: expected 1 finding, got %d", name, len(out))
		}
		if out[0].Technique != TechniqueBooleanBlind {
			t.Errorf("%s: tie-break picked %s, want boolean_blind", name, out[0].Technique)
		}
	}
}

func TestDedupeHigherConfidenceWins(t *testing.T) {
	// Outside the delta, confidence decides even against a more
	// reliable technique
	errorBased := finding(TechniqueError, 0.90, "id")
	timeBased := finding(TechniqueTimeBlind, 0.55, "id")

	out := dedupe([]*Vulnerability{timeBased, errorBased}, 0.05)
	if len(out) != 1 || out[0].Technique != TechniqueError {
		t.Fatalf("expected the 0.90 error finding to win: %+v", out)
	}
}

func TestDedupeKeepsDistinctPoints(t *testing.T) {
	a := finding(TechniqueError, 0.9, "id")
	b := finding(TechniqueBooleanBlind, 0.7, "search")

	out := dedupe([]*Vulnerability{a, b}, 0.05)
	if len(out) != 2 {
		t.Fatalf("distinct points must both survive, got %d", len(out))
	}
}

func coordinatorConfig(techniques ...string) *config.Config {
	cfg := config.CreateDefaultConfig()
	cfg.Engine.MaxWorkers = 4
	cfg.Scan.Techniques = techniques
	return cfg
}

func TestCoordinatorScanIsIdempotent(t *testing.T) {
	srv := mysqlErrorServer()
	defer srv.Close()

	cfg := coordinatorConfig("error", "boolean_blind")
	coord := NewCoordinator(testClient(t, srv.URL), cfg, zerolog.Nop())

	points := []InjectionPoint{testPoint(srv.URL)}

	var runs []string
	for i := 0; i < 2; i++ {
		summary, err := coord.Scan(context.Background(), points)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}

		var sig []string
		for _, v := range summary.Findings {
			sig = append(sig, fmt.Sprintf("%s/%s/%.2f", v.Point.Key(), v.Technique, v.Confidence))
		}
		sort.Strings(sig)
		runs = append(runs, strings.Join(sig, ";"))
	}

	if runs[0] != runs[1] {
		t.Errorf("identical scans diverged:\n  first:  %s\n  second: %s", runs[0], runs[1])
	}
	if runs[0] == "" {
		t.Error("expected at least one finding against the vulnerable server")
	}
}

func TestCoordinatorSurvivesFailingPoints(t *testing.T) {
	srv := mysqlErrorServer()
	defer srv.Close()

	cfg := coordinatorConfig("error")
	coord := NewCoordinator(testClient(t, srv.URL), cfg, zerolog.Nop())

	points := []InjectionPoint{
		{BaseURL: "http://127.0.0.1:1/", Method: "GET", Parameter: "id", Location: LocationQuery, SeedValue: "1"},
		testPoint(srv.URL),
	}

	summary, err := coord.Scan(context.Background(), points)
	if err != nil {
		t.Fatalf("batch must not abort on one bad point: %v", err)
	}

	if summary.PointsScanned != 2 {
		t.Errorf("points_scanned = %d, want 2", summary.PointsScanned)
	}
	if summary.PointsFailed != 1 {
		t.Errorf("points_failed = %d, want 1", summary.PointsFailed)
	}
	if len(summary.Findings) != 1 {
		t.Errorf("the healthy point should still yield its finding, got %d", len(summary.Findings))
	}
}

func TestCoordinatorHonorsTechniqueFilter(t *testing.T) {
	srv := booleanVulnServer()
	defer srv.Close()

	// Only time_blind enabled: the boolean-vulnerable server yields nothing
	cfg := coordinatorConfig("time_blind")
	cfg.Scan.MaxPayloads = 1
	coord := NewCoordinator(testClient(t, srv.URL), cfg, zerolog.Nop())

	summary, err := coord.Scan(context.Background(), []InjectionPoint{testPoint(srv.URL)})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(summary.Findings) != 0 {
		t.Errorf("disabled strategies must not run, got %d findings", len(summary.Findings))
	}
}

func TestCoordinatorCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	cfg := coordinatorConfig("error")
	coord := NewCoordinator(testClient(t, srv.URL), cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := coord.Scan(ctx, []InjectionPoint{testPoint(srv.URL)})
	if err == nil {
		t.Error("canceled scan should report the context error")
	}
	if summary == nil {
		t.Error("canceled scan should still return its partial summary")
	}
}
