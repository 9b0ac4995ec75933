package scan

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
	"github.com/ahmad-20th/GrayTera/pkg/payloads"
)

// lengthTolerance absorbs minor dynamic content that survives volatile
// token stripping
const lengthTolerance = 16

// BooleanBlind detects injection by comparing response fingerprints for
// TRUE and FALSE conditions. A control pair of two identical TRUE probes
// must match before any differential is trusted; an unstable page yields
// no finding.
type BooleanBlind struct {
	requester Requester
	catalog   *payloads.Catalog
	cfg       *config.ScanConfig
	logger    zerolog.Logger
}

func NewBooleanBlind(r Requester, catalog *payloads.Catalog, cfg *config.ScanConfig, logger zerolog.Logger) *BooleanBlind {
	return &BooleanBlind{
		requester: r,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logger.With().Str("strategy", "boolean_blind").Logger(),
	}
}

func (s *BooleanBlind) Technique() Technique {
	return TechniqueBooleanBlind
}

func (s *BooleanBlind) Detect(ctx context.Context, point InjectionPoint) (*Vulnerability, error) {
	baseline, err := s.fingerprint(ctx, point, "")
	if err != nil {
		return nil, fmt.Errorf("baseline request: %w", err)
	}

	pairs := s.catalog.BooleanPairs()
	budget := s.cfg.MaxPayloads

	for _, boundary := range s.catalog.Boundaries() {
		if budget <= 0 {
			break
		}

		agree := 0
		lastPayload := ""

		for _, pair := range pairs {
			if budget < 3 {
				break
			}

			truePayload := boundary.Prefix + pair.True + boundary.Suffix
			falsePayload := boundary.Prefix + pair.False + boundary.Suffix

			trueFP, err := s.fingerprint(ctx, point, truePayload)
			if err != nil {
				return nil, s.bail(ctx, err)
			}
			controlFP, err := s.fingerprint(ctx, point, truePayload)
			if err != nil {
				return nil, s.bail(ctx, err)
			}
			falseFP, err := s.fingerprint(ctx, point, falsePayload)
			if err != nil {
				return nil, s.bail(ctx, err)
			}
			budget -= 3

			// Control pair: identical probes must fingerprint identically
			if !trueFP.Equal(controlFP) {
				continue
			}
			// Differential: TRUE and FALSE must diverge, and TRUE must
			// still resemble the benign baseline
			if trueFP.Equal(falseFP) {
				continue
			}
			if !trueFP.Similar(baseline, lengthTolerance) {
				continue
			}

			agree++
			lastPayload = truePayload
		}

		if agree == 0 {
			continue
		}

		conf := s.confidence(agree, len(pairs))
		s.logger.Debug().
			Str("parameter", point.Parameter).
			Int("agreeing_variants", agree).
			Float64("confidence", conf).
			Msg("boolean differential confirmed")

		evidence := fmt.Sprintf("TRUE/FALSE condition pair produced divergent responses (%d/%d variants agree, control pair stable)", agree, len(pairs))
		return NewVulnerability(TechniqueBooleanBlind, point, conf, evidence, lastPayload, ""), nil
	}

	return nil, nil
}

// confidence scales linearly from the configured floor to the ceiling
// with the number of agreeing condition variants
func (s *BooleanBlind) confidence(agree, total int) float64 {
	min, max := s.cfg.Confidence.BooleanMin, s.cfg.Confidence.BooleanMax
	if total <= 1 || agree >= total {
		return max
	}
	return min + (max-min)*float64(agree-1)/float64(total-1)
}

func (s *BooleanBlind) fingerprint(ctx context.Context, point InjectionPoint, payload string) (Fingerprint, error) {
	method, reqURL, body, headers, err := point.BuildRequest(payload)
	if err != nil {
		return Fingerprint{}, err
	}
	resp, err := s.requester.Do(ctx, method, reqURL, body, headers)
	if err != nil {
		return Fingerprint{}, err
	}
	return NewFingerprint(resp), nil
}

// bail converts a transport error into either a context error or a
// wrapped failure; strategies never guess on partial data
func (s *BooleanBlind) bail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("probe request: %w", err)
}
