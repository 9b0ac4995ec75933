package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
	"github.com/ahmad-20th/GrayTera/pkg/payloads"
	"github.com/ahmad-20th/GrayTera/pkg/utils"
)

// UnionBased detects injection by appending a UNION SELECT whose columns
// carry a sentinel expression; the finding is confirmed only when the
// sentinel string comes back verbatim in the page.
type UnionBased struct {
	requester Requester
	catalog   *payloads.Catalog
	cfg       *config.ScanConfig
	logger    zerolog.Logger
}

func NewUnionBased(r Requester, catalog *payloads.Catalog, cfg *config.ScanConfig, logger zerolog.Logger) *UnionBased {
	return &UnionBased{
		requester: r,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logger.With().Str("strategy", "union").Logger(),
	}
}

func (s *UnionBased) Technique() Technique {
	return TechniqueUnion
}

func (s *UnionBased) Detect(ctx context.Context, point InjectionPoint) (*Vulnerability, error) {
	baselineResp, err := s.probe(ctx, point, "")
	if err != nil {
		return nil, fmt.Errorf("baseline request: %w", err)
	}
	baseline := NewFingerprint(baselineResp)

	columns, err := s.probeColumnCount(ctx, point, baseline)
	if err != nil {
		return nil, err
	}
	if columns == 0 {
		return nil, nil
	}

	marker := s.catalog.UnionMarker()

	for _, boundary := range s.catalog.UnionBoundaries() {
		for pos := 0; pos < columns; pos++ {
			payload := s.catalog.UnionPayload(boundary, columns, pos)

			resp, err := s.probe(ctx, point, payload)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}

			if !strings.Contains(string(resp.Body), marker) {
				continue
			}

			s.logger.Debug().
				Str("parameter", point.Parameter).
				Int("columns", columns).
				Int("marker_column", pos).
				Msg("sentinel reflected")

			evidence := fmt.Sprintf("sentinel reflected verbatim via UNION SELECT with %d columns (marker in column %d)", columns, pos+1)
			return NewVulnerability(TechniqueUnion, point, s.cfg.Confidence.Union, evidence, payload, ""), nil
		}
	}

	return nil, nil
}

// probeColumnCount walks ORDER BY n upward until the response diverges
// from the baseline, which marks one past the column count. Returns 0
// when no consistent break is found.
func (s *UnionBased) probeColumnCount(ctx context.Context, point InjectionPoint, baseline Fingerprint) (int, error) {
	maxColumns := s.cfg.MaxColumns
	if maxColumns <= 0 {
		maxColumns = 10
	}

	for _, tpl := range s.catalog.OrderByTemplates() {
		lastGood := 0

		for n := 1; n <= maxColumns+1; n++ {
			payload := tpl.Render(payloads.Params{N: n})

			resp, err := s.probe(ctx, point, payload)
			if err != nil {
				if ctx.Err() != nil {
					return 0, ctx.Err()
				}
				break
			}

			if NewFingerprint(resp).Similar(baseline, lengthTolerance) {
				lastGood = n
				continue
			}

			// ORDER BY 1 already diverging means the boundary does not
			// reach the query at all
			if lastGood == 0 {
				break
			}
			return lastGood, nil
		}

		// Every probe up to the cap matched: the break is beyond reach,
		// so the count is unknowable with this boundary
	}

	return 0, nil
}

func (s *UnionBased) probe(ctx context.Context, point InjectionPoint, payload string) (*utils.HTTPResponse, error) {
	method, reqURL, body, headers, err := point.BuildRequest(payload)
	if err != nil {
		return nil, err
	}
	return s.requester.Do(ctx, method, reqURL, body, headers)
}
