package scan

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
	"github.com/ahmad-20th/GrayTera/pkg/payloads"
)

// ScanSummary aggregates the outcome of one Scan call
type ScanSummary struct {
	PointsScanned int              `json:"points_scanned"`
	PointsFailed  int              `json:"points_failed"`
	Findings      []*Vulnerability `json:"findings"`
	Elapsed       time.Duration    `json:"elapsed"`
}

// Coordinator fans injection points out over a bounded worker pool, runs
// every enabled strategy against each point, and deduplicates findings.
// It keeps no state between calls; a Scan can be rerun from scratch at
// any time.
type Coordinator struct {
	strategies []Strategy
	cfg        *config.Config
	logger     zerolog.Logger
}

// NewCoordinator builds the coordinator with the enabled strategies in
// their fixed execution order: cheap and reliable signals first, the
// slow time-blind probes last.
func NewCoordinator(r Requester, cfg *config.Config, logger zerolog.Logger) *Coordinator {
	catalog := payloads.Default()

	enabled := make(map[string]bool)
	for _, t := range cfg.Scan.Techniques {
		enabled[t] = true
	}
	all := len(enabled) == 0

	var strategies []Strategy
	for _, s := range []Strategy{
		NewErrorBased(r, catalog, &cfg.Scan, logger),
		NewUnionBased(r, catalog, &cfg.Scan, logger),
		NewBooleanBlind(r, catalog, &cfg.Scan, logger),
		NewTimeBlind(r, catalog, &cfg.Scan, logger),
	} {
		if all || enabled[s.Technique().String()] {
			strategies = append(strategies, s)
		}
	}

	return &Coordinator{
		strategies: strategies,
		cfg:        cfg,
		logger:     logger.With().Str("component", "coordinator").Logger(),
	}
}

// Scan tests every injection point. Individual point failures do not
// abort the batch; context cancellation stops new work while letting
// in-flight probes finish or time out.
func (c *Coordinator) Scan(ctx context.Context, points []InjectionPoint) (*ScanSummary, error) {
	start := time.Now()
	collector := newResultCollector()

	workers := c.cfg.Engine.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for _, point := range points {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(p InjectionPoint) {
			defer wg.Done()
			defer func() { <-sem }()
			c.scanPoint(ctx, p, collector)
		}(point)
	}
	wg.Wait()

	findings, _, scanned, failed := collector.snapshot()
	deduped := dedupe(findings, c.cfg.Scan.Confidence.TieBreakDelta)

	c.logger.Info().
		Int("points_scanned", scanned).
		Int("points_failed", failed).
		Int("findings", len(deduped)).
		Dur("elapsed", time.Since(start)).
		Msg("scan complete")

	return &ScanSummary{
		PointsScanned: scanned,
		PointsFailed:  failed,
		Findings:      deduped,
		Elapsed:       time.Since(start),
	}, ctx.Err()
}

// scanPoint runs every strategy against one point under the per-point
// timeout. Strategy errors are recorded, not propagated; later
// strategies still run.
func (c *Coordinator) scanPoint(ctx context.Context, point InjectionPoint, collector *resultCollector) {
	pointCtx := ctx
	if c.cfg.Scan.PointTimeout > 0 {
		var cancel context.CancelFunc
		pointCtx, cancel = context.WithTimeout(ctx, c.cfg.Scan.PointTimeout)
		defer cancel()
	}

	var lastErr error
	for _, strategy := range c.strategies {
		vuln, err := strategy.Detect(pointCtx, point)
		if err != nil {
			lastErr = err
			c.logger.Warn().
				Err(err).
				Str("strategy", strategy.Technique().String()).
				Str("point", point.Key()).
				Msg("strategy failed")
			if pointCtx.Err() != nil {
				break
			}
			continue
		}
		if vuln != nil {
			collector.recordFinding(vuln)
		}
	}

	if lastErr != nil {
		collector.recordPointError(point.Key(), lastErr)
		return
	}
	collector.recordPointDone()
}

// dedupe keeps one finding per injection point. Higher confidence wins;
// within the tie-break delta the more reliable technique wins. This is
// the only place a finding is ever discarded.
func dedupe(findings []*Vulnerability, tieDelta float64) []*Vulnerability {
	best := make(map[string]*Vulnerability)
	order := make([]string, 0, len(findings))

	for _, v := range findings {
		key := v.Point.Key()
		current, seen := best[key]
		if !seen {
			best[key] = v
			order = append(order, key)
			continue
		}
		best[key] = preferred(current, v, tieDelta)
	}

	out := make([]*Vulnerability, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// preferred resolves a conflict between two findings on the same point
func preferred(a, b *Vulnerability, tieDelta float64) *Vulnerability {
	diff := a.Confidence - b.Confidence
	if diff < 0 {
		diff = -diff
	}

	if diff <= tieDelta {
		if a.Technique.reliabilityRank() <= b.Technique.reliabilityRank() {
			return a
		}
		return b
	}

	if a.Confidence > b.Confidence {
		return a
	}
	return b
}
