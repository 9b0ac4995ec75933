package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
	"github.com/ahmad-20th/GrayTera/pkg/payloads"
)

// delayFraction is the share of the induced delay a response must exceed
// the baseline by to count as delayed. Below this the signal is noise.
const delayFraction = 0.8

// TimeBlind detects injection through conditional delay payloads: a TRUE
// condition must slow the response by the induced delay, a FALSE one
// must not. Network jitter is absorbed by requiring agreement across
// repeated trials.
type TimeBlind struct {
	requester Requester
	catalog   *payloads.Catalog
	cfg       *config.ScanConfig
	logger    zerolog.Logger
}

func NewTimeBlind(r Requester, catalog *payloads.Catalog, cfg *config.ScanConfig, logger zerolog.Logger) *TimeBlind {
	return &TimeBlind{
		requester: r,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logger.With().Str("strategy", "time_blind").Logger(),
	}
}

func (s *TimeBlind) Technique() Technique {
	return TechniqueTimeBlind
}

func (s *TimeBlind) Detect(ctx context.Context, point InjectionPoint) (*Vulnerability, error) {
	baseline, err := s.baselineTiming(ctx, point)
	if err != nil {
		return nil, fmt.Errorf("baseline timing: %w", err)
	}

	delaySec := int(s.cfg.TimeDelay.Seconds())
	if delaySec < 1 {
		delaySec = 1
	}
	threshold := baseline + time.Duration(delayFraction*float64(delaySec)*float64(time.Second))

	trials := s.cfg.TimeTrials
	if trials < 2 {
		trials = 3
	}
	needed := trials/2 + 1

	attempts := 0
	for _, tpl := range s.catalog.TimeTemplates() {
		if attempts >= s.cfg.MaxPayloads {
			break
		}
		attempts++

		truePayload := tpl.Render(payloads.Params{Condition: "1=1", Delay: delaySec})
		falsePayload := tpl.Render(payloads.Params{Condition: "1=2", Delay: delaySec})

		// FALSE guard first: a payload that delays unconditionally is
		// measuring server load, not injectability
		falseElapsed, err := s.timedProbe(ctx, point, falsePayload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if falseElapsed >= threshold {
			continue
		}

		agree := 0
		for trial := 0; trial < trials; trial++ {
			elapsed, err := s.timedProbe(ctx, point, truePayload)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			if elapsed >= threshold {
				agree++
			}
		}

		if agree < needed {
			continue
		}

		conf := s.confidence(agree, trials)
		s.logger.Debug().
			Str("parameter", point.Parameter).
			Str("dbms_dialect", tpl.DBMS).
			Int("agreeing_trials", agree).
			Float64("confidence", conf).
			Msg("conditional delay confirmed")

		evidence := fmt.Sprintf("conditional %ds delay observed in %d/%d trials (baseline %s, threshold %s)",
			delaySec, agree, trials, baseline.Round(time.Millisecond), threshold.Round(time.Millisecond))
		return NewVulnerability(TechniqueTimeBlind, point, conf, evidence, truePayload, tpl.DBMS), nil
	}

	return nil, nil
}

// baselineTiming samples the unmodified request twice and keeps the
// slower round-trip, so a lucky fast sample cannot inflate deltas
func (s *TimeBlind) baselineTiming(ctx context.Context, point InjectionPoint) (time.Duration, error) {
	var slowest time.Duration
	for i := 0; i < 2; i++ {
		elapsed, err := s.timedProbe(ctx, point, "")
		if err != nil {
			return 0, err
		}
		if elapsed > slowest {
			slowest = elapsed
		}
	}
	return slowest, nil
}

func (s *TimeBlind) confidence(agree, trials int) float64 {
	min, max := s.cfg.Confidence.TimeMin, s.cfg.Confidence.TimeMax
	if trials <= 1 || agree >= trials {
		return max
	}
	return min + (max-min)*float64(agree-1)/float64(trials-1)
}

func (s *TimeBlind) timedProbe(ctx context.Context, point InjectionPoint, payload string) (time.Duration, error) {
	method, reqURL, body, headers, err := point.BuildRequest(payload)
	if err != nil {
		return 0, err
	}
	resp, err := s.requester.Do(ctx, method, reqURL, body, headers)
	if err != nil {
		return 0, err
	}
	return resp.Duration, nil
}
