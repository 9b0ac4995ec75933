package exploit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
	"github.com/ahmad-20th/GrayTera/pkg/scan"
)

// cascadeState is the controller's position in the exploitation flow.
// Succeeded and Failed are terminal and sticky.
type cascadeState int

const (
	stateStart cascadeState = iota
	stateAnalyze
	stateDelegate
	stateFallback
	stateSucceeded
	stateFailed
)

func (s cascadeState) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateAnalyze:
		return "analyze"
	case stateDelegate:
		return "delegate"
	case stateFallback:
		return "fallback"
	case stateSucceeded:
		return "succeeded"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Controller drives each confirmed vulnerability through the cascade:
// Start -> Analyze -> Delegate -> Fallback -> Succeeded | Failed.
// The delegate gets exactly one bounded attempt; the oracle fallback
// only runs for blind techniques.
type Controller struct {
	oracle   *Oracle
	delegate Delegate
	cfg      *config.ExploitConfig
	workers  int
	logger   zerolog.Logger
}

func NewController(oracle *Oracle, delegate Delegate, cfg *config.ExploitConfig, workers int, logger zerolog.Logger) *Controller {
	if workers <= 0 {
		workers = 1
	}
	return &Controller{
		oracle:   oracle,
		delegate: delegate,
		cfg:      cfg,
		workers:  workers,
		logger:   logger.With().Str("component", "cascade").Logger(),
	}
}

// ExploitAll runs independent cascades concurrently under the worker
// pool. Each individual cascade is sequential. Results come back in
// input order.
func (c *Controller) ExploitAll(ctx context.Context, vulns []*scan.Vulnerability) []*ExploitResult {
	results := make([]*ExploitResult, len(vulns))
	sem := make(chan struct{}, c.workers)

	var wg sync.WaitGroup
	for i, vuln := range vulns {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, v *scan.Vulnerability) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = c.Exploit(ctx, v)
		}(i, vuln)
	}
	wg.Wait()

	return results
}

// Exploit runs one cascade and produces exactly one result. A
// vulnerability that already reached a terminal status is not
// reprocessed.
func (c *Controller) Exploit(ctx context.Context, vuln *scan.Vulnerability) *ExploitResult {
	started := time.Now().UTC()
	result := &ExploitResult{
		VulnerabilityID: vuln.ID,
		StartedAt:       started,
	}

	if vuln.Status != scan.StatusConfirmed {
		result.Error = fmt.Sprintf("vulnerability in terminal status %s, not reprocessed", vuln.Status)
		result.Elapsed = time.Since(started)
		return result
	}

	var plan ExtractionPlan
	state := stateStart

	for state != stateSucceeded && state != stateFailed {
		if ctx.Err() != nil {
			state = stateFailed
			result.Error = ctx.Err().Error()
			break
		}

		switch state {
		case stateStart:
			state = stateAnalyze

		case stateAnalyze:
			plan = c.analyze(vuln)
			state = stateDelegate

		case stateDelegate:
			state = c.runDelegate(ctx, vuln, plan, result)

		case stateFallback:
			state = c.runFallback(ctx, vuln, plan, result)
		}
	}

	result.Success = state == stateSucceeded
	result.Elapsed = time.Since(started)

	next := scan.StatusFailed
	if result.Success {
		next = scan.StatusExploited
	}
	if err := vuln.SetStatus(next); err != nil {
		c.logger.Warn().Err(err).Str("vulnerability", vuln.ID).Msg("status transition rejected")
	}

	c.logger.Info().
		Str("vulnerability", vuln.ID).
		Str("final_state", state.String()).
		Str("technique_used", result.TechniqueUsed).
		Bool("success", result.Success).
		Msg("cascade finished")

	return result
}

// analyze builds the extraction plan from the finding's evidence. It
// always produces a plan; a missing DBMS hint defaults to the most
// permissive dialect.
func (c *Controller) analyze(vuln *scan.Vulnerability) ExtractionPlan {
	dbms := vuln.DBMS
	if dbms == "" || dbms == "Unknown" {
		dbms = "MySQL"
	}

	fields := c.cfg.Fields
	if len(fields) == 0 {
		fields = []string{"database", "user", "version"}
	}

	return ExtractionPlan{
		DBMS:      dbms,
		Technique: vuln.Technique.String(),
		Fields:    fields,
	}
}

// runDelegate gives the external tool its single bounded attempt. Any
// failure routes to Fallback, never to Failed.
func (c *Controller) runDelegate(ctx context.Context, vuln *scan.Vulnerability, plan ExtractionPlan, result *ExploitResult) cascadeState {
	if c.delegate == nil || !c.cfg.Delegate.Enable {
		return stateFallback
	}

	delegateCtx := ctx
	if c.cfg.Delegate.Timeout > 0 {
		var cancel context.CancelFunc
		delegateCtx, cancel = context.WithTimeout(ctx, c.cfg.Delegate.Timeout)
		defer cancel()
	}

	method, reqURL, _, _, err := vuln.Point.BaselineRequest()
	if err != nil {
		return stateFallback
	}

	res, err := c.delegate.Run(delegateCtx, DelegateRequest{
		TargetURL: reqURL,
		Method:    method,
		Parameter: vuln.Point.Parameter,
		Technique: plan.Technique,
		DBMS:      plan.DBMS,
		Fields:    plan.Fields,
	})
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str("vulnerability", vuln.ID).
			Msg("delegate attempt failed, falling back")
		return stateFallback
	}

	result.TechniqueUsed = "delegate:" + c.delegate.Name()
	result.ExtractedData = res.ExtractedData
	result.Evidence = fmt.Sprintf("external tool %s recovered %d fields", c.delegate.Name(), len(res.ExtractedData))
	return stateSucceeded
}

// runFallback drives the blind-extraction oracle. Only the blind
// techniques can reach Succeeded here; error and union findings have no
// side channel for the oracle to use.
func (c *Controller) runFallback(ctx context.Context, vuln *scan.Vulnerability, plan ExtractionPlan, result *ExploitResult) cascadeState {
	if vuln.Technique != scan.TechniqueBooleanBlind && vuln.Technique != scan.TechniqueTimeBlind {
		result.Error = fmt.Sprintf("%v: %s", ErrUnsupportedTechnique, vuln.Technique)
		return stateFailed
	}

	data, err := c.oracle.Extract(ctx, vuln, plan)
	result.TechniqueUsed = vuln.Technique.String()
	result.ExtractedData = data

	if err != nil {
		result.Error = err.Error()
		if len(data) > 0 {
			result.Evidence = fmt.Sprintf("oracle aborted after recovering %d fields", len(data))
		}
		return stateFailed
	}
	if len(data) == 0 {
		result.Error = "oracle recovered no data"
		return stateFailed
	}

	result.Evidence = fmt.Sprintf("blind oracle recovered %d fields", len(data))
	return stateSucceeded
}
