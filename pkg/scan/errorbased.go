package scan

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
	"github.com/ahmad-20th/GrayTera/pkg/payloads"
)

// ErrorBased detects injection by provoking database error messages and
// matching them against the known signature set
type ErrorBased struct {
	requester Requester
	catalog   *payloads.Catalog
	cfg       *config.ScanConfig
	logger    zerolog.Logger
}

func NewErrorBased(r Requester, catalog *payloads.Catalog, cfg *config.ScanConfig, logger zerolog.Logger) *ErrorBased {
	return &ErrorBased{
		requester: r,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logger.With().Str("strategy", "error").Logger(),
	}
}

func (s *ErrorBased) Technique() Technique {
	return TechniqueError
}

// Detect sends error-provoking payloads and reports a finding when the
// response carries a SQL error signature that the baseline does not.
func (s *ErrorBased) Detect(ctx context.Context, point InjectionPoint) (*Vulnerability, error) {
	baseline, err := s.probe(ctx, point, "")
	if err != nil {
		return nil, fmt.Errorf("baseline request: %w", err)
	}

	// Signatures already present without injection prove nothing
	baselineSig, baselineNoisy := s.catalog.MatchErrorSignature(baseline)

	attempts := 0
	for _, payload := range s.catalog.ErrorPayloads() {
		if attempts >= s.cfg.MaxPayloads {
			break
		}
		attempts++

		body, err := s.probe(ctx, point, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		sig, ok := s.catalog.MatchErrorSignature(body)
		if !ok {
			continue
		}
		if baselineNoisy && sig == baselineSig {
			continue
		}

		dbms := s.catalog.IdentifyDBMS(body)
		s.logger.Debug().
			Str("parameter", point.Parameter).
			Str("signature", sig).
			Str("dbms", dbms).
			Msg("error signature matched")

		evidence := fmt.Sprintf("database error signature %q in response to payload", sig)
		return NewVulnerability(TechniqueError, point, s.cfg.Confidence.Error, evidence, payload, dbms), nil
	}

	return nil, nil
}

func (s *ErrorBased) probe(ctx context.Context, point InjectionPoint, payload string) (string, error) {
	method, reqURL, body, headers, err := point.BuildRequest(payload)
	if err != nil {
		return "", err
	}
	resp, err := s.requester.Do(ctx, method, reqURL, body, headers)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}
