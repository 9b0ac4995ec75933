package exploit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
	"github.com/ahmad-20th/GrayTera/pkg/payloads"
	"github.com/ahmad-20th/GrayTera/pkg/scan"
	"github.com/ahmad-20th/GrayTera/pkg/utils"
)

var (
	lengthCondRe = regexp.MustCompile(`LENGTH\(\((.+?)\)\)>=(\d+)`)
	asciiCondRe  = regexp.MustCompile(`ASCII\(SUBSTRING\(\((.+?)\),(\d+),1\)\)>(\d+)`)
)

// blindTarget simulates a boolean-blind vulnerable endpoint. It parses
// the SQL condition out of the injected parameter and answers against
// its seeded secrets.
type blindTarget struct {
	secrets map[string]string

	// inverted swaps which page the TRUE side renders
	inverted bool

	// noiseEvery returns garbage on every nth character probe
	noiseEvery int

	queries atomic.Int64
}

func (bt *blindTarget) evaluate(value string) (result bool, recognized bool) {
	if m := lengthCondRe.FindStringSubmatch(value); m != nil {
		secret, ok := bt.secrets[m[1]]
		if !ok {
			return false, true
		}
		n, _ := strconv.Atoi(m[2])
		return len(secret) >= n, true
	}
	if m := asciiCondRe.FindStringSubmatch(value); m != nil {
		secret, ok := bt.secrets[m[1]]
		if !ok {
			return false, true
		}
		pos, _ := strconv.Atoi(m[2])
		n, _ := strconv.Atoi(m[3])
		if pos < 1 || pos > len(secret) {
			return false, true
		}
		return int(secret[pos-1]) > n, true
	}
	if strings.Contains(value, "1=1") {
		return true, true
	}
	if strings.Contains(value, "1=2") {
		return false, true
	}
	return false, false
}

func (bt *blindTarget) Do(_ context.Context, _, reqURL, _ string, _ map[string]string) (*utils.HTTPResponse, error) {
	n := bt.queries.Add(1)

	u, err := url.Parse(reqURL)
	if err != nil {
		return nil, err
	}
	value := u.Query().Get("id")

	isCharProbe := asciiCondRe.MatchString(value) || lengthCondRe.MatchString(value)
	if bt.noiseEvery > 0 && isCharProbe && n%int64(bt.noiseEvery) == 0 {
		return &utils.HTTPResponse{
			StatusCode: 200,
			Body:       []byte(fmt.Sprintf("<html><body>glitched response %d</body></html>", n)),
		}, nil
	}

	cond, _ := bt.evaluate(value)
	if bt.inverted {
		cond = !cond
	}

	if cond {
		return &utils.HTTPResponse{StatusCode: 200, Body: []byte("<html><body><h1>Widget</h1><p>In stock</p></body></html>")}, nil
	}
	return &utils.HTTPResponse{StatusCode: 200, Body: []byte("<html><body><p>No results</p></body></html>")}, nil
}

func oracleConfig() *config.OracleConfig {
	cfg := config.CreateDefaultConfig()
	return &cfg.Exploit.Oracle
}

func blindVuln() *scan.Vulnerability {
	return scan.NewVulnerability(scan.TechniqueBooleanBlind, scan.InjectionPoint{
		BaseURL:   "http://shop.test/item",
		Method:    "GET",
		Parameter: "id",
		Location:  scan.LocationQuery,
		SeedValue: "1",
	}, 0.8, "evidence", "payload", "MySQL")
}

func TestOracleExtractsSeededSecrets(t *testing.T) {
	secrets := []string{
		"a",
		"shopdb",
		"dbadmin@localhost",
		" leading space",
		"ends with tilde~",
		strings.Repeat("Xy3~! ", 5) + "z!", // 32 chars, full alphabet spread
	}

	for _, secret := range secrets {
		t.Run(fmt.Sprintf("len_%d", len(secret)), func(t *testing.T) {
			target := &blindTarget{secrets: map[string]string{"SELECT DATABASE()": secret}}
			oracle := NewOracle(target, payloads.Default(), oracleConfig(), zerolog.Nop())

			data, err := oracle.Extract(context.Background(), blindVuln(), ExtractionPlan{
				DBMS:   "MySQL",
				Fields: []string{"database"},
			})
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if data["database"] != secret {
				t.Errorf("extracted %q, want %q", data["database"], secret)
			}

			// 3 calibration probes, then at most 8 probes per character
			// (existence + 7 binary search) plus the terminating probe
			budget := int64(3 + 8*(len(secret)+1))
			if got := target.queries.Load(); got > budget {
				t.Errorf("used %d queries for %d chars, budget %d", got, len(secret), budget)
			}
		})
	}
}

func TestOraclePolarityInvariance(t *testing.T) {
	// The TRUE condition renders the "no results" page and FALSE the
	// full page; calibration must still anchor the search correctly
	target := &blindTarget{
		secrets:  map[string]string{"SELECT DATABASE()": "shopdb"},
		inverted: true,
	}
	oracle := NewOracle(target, payloads.Default(), oracleConfig(), zerolog.Nop())

	data, err := oracle.Extract(context.Background(), blindVuln(), ExtractionPlan{
		DBMS:   "MySQL",
		Fields: []string{"database"},
	})
	if err != nil {
		t.Fatalf("Extract failed on inverted target: %v", err)
	}
	if data["database"] != "shopdb" {
		t.Errorf("extracted %q, want shopdb", data["database"])
	}
}

func TestOracleNoiseAbort(t *testing.T) {
	// Every character probe is noise: neither calibrated pattern ever
	// matches, so the field aborts after the retry budget
	target := &blindTarget{
		secrets:    map[string]string{"SELECT DATABASE()": "shopdb"},
		noiseEvery: 1,
	}
	cfg := oracleConfig()
	cfg.NoiseRetries = 2

	oracle := NewOracle(target, payloads.Default(), cfg, zerolog.Nop())

	_, err := oracle.Extract(context.Background(), blindVuln(), ExtractionPlan{
		DBMS:   "MySQL",
		Fields: []string{"database"},
	})
	if !errors.Is(err, ErrAmbiguousSignal) {
		t.Fatalf("expected ErrAmbiguousSignal, got %v", err)
	}

	// 3 calibration probes + at most NoiseRetries+1 attempts on the
	// first ambiguous question
	calibrationQueries := int64(3)
	limit := calibrationQueries + int64(cfg.NoiseRetries) + 1
	if got := target.queries.Load(); got > limit {
		t.Errorf("noise abort took %d queries, want at most %d", got, limit)
	}
}

func TestOracleTransientNoiseIsRetried(t *testing.T) {
	// One glitch every 5 probes: retries absorb it and extraction
	// still completes exactly
	target := &blindTarget{
		secrets:    map[string]string{"SELECT DATABASE()": "shopdb"},
		noiseEvery: 5,
	}
	oracle := NewOracle(target, payloads.Default(), oracleConfig(), zerolog.Nop())

	data, err := oracle.Extract(context.Background(), blindVuln(), ExtractionPlan{
		DBMS:   "MySQL",
		Fields: []string{"database"},
	})
	if err != nil {
		t.Fatalf("Extract failed under transient noise: %v", err)
	}
	if data["database"] != "shopdb" {
		t.Errorf("extracted %q, want shopdb", data["database"])
	}
}

func TestOracleQueryBudgetTruncates(t *testing.T) {
	target := &blindTarget{secrets: map[string]string{"SELECT DATABASE()": "a_rather_long_database_name"}}

	cfg := oracleConfig()
	cfg.MaxQueriesPerField = 30 // enough for ~3 characters

	oracle := NewOracle(target, payloads.Default(), cfg, zerolog.Nop())

	data, err := oracle.Extract(context.Background(), blindVuln(), ExtractionPlan{
		DBMS:   "MySQL",
		Fields: []string{"database"},
	})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}

	partial := data["database"]
	if partial == "" {
		t.Fatal("budget exhaustion must still return the partial prefix")
	}
	if !strings.HasPrefix("a_rather_long_database_name", partial) {
		t.Errorf("partial %q is not a prefix of the secret", partial)
	}
}

func TestOracleWallClockBudget(t *testing.T) {
	target := &blindTarget{secrets: map[string]string{"SELECT DATABASE()": "shopdb"}}

	cfg := oracleConfig()
	cfg.FieldBudget = time.Nanosecond // expires before the first probe

	oracle := NewOracle(target, payloads.Default(), cfg, zerolog.Nop())

	_, err := oracle.Extract(context.Background(), blindVuln(), ExtractionPlan{
		DBMS:   "MySQL",
		Fields: []string{"database"},
	})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestOracleRejectsNonBlindTechniques(t *testing.T) {
	target := &blindTarget{secrets: map[string]string{}}
	oracle := NewOracle(target, payloads.Default(), oracleConfig(), zerolog.Nop())

	for _, technique := range []scan.Technique{scan.TechniqueError, scan.TechniqueUnion} {
		vuln := blindVuln()
		vuln.Technique = technique

		_, err := oracle.Extract(context.Background(), vuln, ExtractionPlan{DBMS: "MySQL", Fields: []string{"database"}})
		if !errors.Is(err, ErrUnsupportedTechnique) {
			t.Errorf("%s: expected ErrUnsupportedTechnique, got %v", technique, err)
		}
	}
}

func TestOracleCalibrationFailureOnStaticPage(t *testing.T) {
	// Target ignores the parameter entirely: TRUE and FALSE can never
	// be told apart
	static := &staticTarget{}
	oracle := NewOracle(static, payloads.Default(), oracleConfig(), zerolog.Nop())

	_, err := oracle.Extract(context.Background(), blindVuln(), ExtractionPlan{DBMS: "MySQL", Fields: []string{"database"}})
	if !errors.Is(err, ErrAmbiguousSignal) {
		t.Fatalf("expected ErrAmbiguousSignal from calibration, got %v", err)
	}
}

type staticTarget struct{}

func (staticTarget) Do(_ context.Context, _, _, _ string, _ map[string]string) (*utils.HTTPResponse, error) {
	return &utils.HTTPResponse{StatusCode: 200, Body: []byte("static")}, nil
}
