package scan

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/exploit"
	"github.com/ahmad-20th/GrayTera/pkg/payloads"
	"github.com/ahmad-20th/GrayTera/pkg/report"
	enginescan "github.com/ahmad-20th/GrayTera/pkg/scan"
	"github.com/ahmad-20th/GrayTera/pkg/utils"
)

// Run executes the full session: build injection points, scan, and
// cascade exploitation over confirmed findings when enabled
func (o *Orchestrator) Run(ctx context.Context) (*SessionResult, error) {
	startTime := time.Now()
	sessionID := fmt.Sprintf("gt_%d", startTime.Unix())

	result := &SessionResult{
		SessionID: sessionID,
		StartTime: startTime,
		Target:    *o.target,
	}

	logger := o.buildLogger()

	httpClient, err := utils.NewHTTPClient(o.target, &o.config.Engine, utils.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	defer httpClient.Close()

	points, err := o.buildInjectionPoints()
	if err != nil {
		return nil, fmt.Errorf("failed to build injection points: %w", err)
	}
	printInfo(fmt.Sprintf("Testing %d injection points against %s", len(points), o.target.BaseURL), o.noColor)

	coordinator := enginescan.NewCoordinator(httpClient, o.config, logger)
	summary, err := coordinator.Scan(ctx, points)
	if err != nil && summary == nil {
		return nil, err
	}
	result.Summary = summary

	if o.config.Exploit.Enable && len(summary.Findings) > 0 {
		printInfo(fmt.Sprintf("Cascading exploitation over %d findings", len(summary.Findings)), o.noColor)
		result.Exploits = o.runExploitation(ctx, httpClient, summary.Findings, logger)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	return result, nil
}

// buildInjectionPoints derives the points to test from the target URL
// and the configured parameter list. Parameters already present in the
// URL are tested with their existing values as seeds.
func (o *Orchestrator) buildInjectionPoints() ([]enginescan.InjectionPoint, error) {
	u, err := url.Parse(o.target.BaseURL)
	if err != nil {
		return nil, err
	}

	var points []enginescan.InjectionPoint
	seen := make(map[string]bool)

	for param, values := range u.Query() {
		seed := "1"
		if len(values) > 0 && values[0] != "" {
			seed = values[0]
		}
		points = append(points, enginescan.InjectionPoint{
			BaseURL:   o.target.BaseURL,
			Method:    "GET",
			Parameter: param,
			Location:  enginescan.LocationQuery,
			SeedValue: seed,
		})
		seen[param] = true
	}

	// Fall back to the configured parameter names when the URL carries
	// no query string
	if len(points) == 0 {
		for _, param := range o.config.Scan.Parameters {
			if seen[param] {
				continue
			}
			points = append(points, enginescan.InjectionPoint{
				BaseURL:   o.target.BaseURL,
				Method:    "GET",
				Parameter: param,
				Location:  enginescan.LocationQuery,
				SeedValue: "1",
			})
		}
	}

	return points, nil
}

// runExploitation drives the cascade over confirmed findings
func (o *Orchestrator) runExploitation(ctx context.Context, httpClient *utils.HTTPClient, findings []*enginescan.Vulnerability, logger zerolog.Logger) []*exploit.ExploitResult {
	oracle := exploit.NewOracle(httpClient, payloads.Default(), &o.config.Exploit.Oracle, logger)

	var delegate exploit.Delegate
	if o.config.Exploit.Delegate.Enable {
		delegate = exploit.NewSQLMapDelegate(&o.config.Exploit.Delegate, logger)
	}

	controller := exploit.NewController(oracle, delegate, &o.config.Exploit, o.config.Engine.MaxWorkers, logger)
	return controller.ExploitAll(ctx, findings)
}

// SaveResults exports the session to the configured output directory
func (o *Orchestrator) SaveResults(result *SessionResult) error {
	exporter := report.NewExporter(o.config.Reports.OutputDir, o.config.Reports.Pretty)

	doc := report.Build(result.SessionID, o.target.BaseURL, result.Summary, result.Exploits)
	path, err := exporter.Export(doc)
	if err != nil {
		return err
	}

	printSuccess(fmt.Sprintf("Results saved to: %s", path), o.noColor)
	return nil
}

// buildLogger configures the engine logger from the logging section
func (o *Orchestrator) buildLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(o.config.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if o.verbose {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if o.config.Logging.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: o.noColor})
	}

	return logger.Level(level).With().Timestamp().Logger()
}
