// Package scan implements SQL injection detection: the four probing
// strategies, the response fingerprinting they compare against, and the
// coordinator that runs them concurrently across injection points.
package scan

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ahmad-20th/GrayTera/pkg/utils"
)

// Technique identifies a detection technique. The set is closed.
type Technique int

const (
	TechniqueError Technique = iota
	TechniqueBooleanBlind
	TechniqueTimeBlind
	TechniqueUnion
)

// String returns the wire name used in reports and config
func (t Technique) String() string {
	switch t {
	case TechniqueError:
		return "error"
	case TechniqueBooleanBlind:
		return "boolean_blind"
	case TechniqueTimeBlind:
		return "time_blind"
	case TechniqueUnion:
		return "union"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler for JSON export
func (t Technique) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTechnique maps a wire name back to its Technique
func ParseTechnique(s string) (Technique, error) {
	switch s {
	case "error":
		return TechniqueError, nil
	case "boolean_blind":
		return TechniqueBooleanBlind, nil
	case "time_blind":
		return TechniqueTimeBlind, nil
	case "union":
		return TechniqueUnion, nil
	default:
		return 0, fmt.Errorf("unknown technique: %s", s)
	}
}

// reliabilityRank orders techniques by signal reliability for dedup
// tie-breaks. Lower rank wins.
func (t Technique) reliabilityRank() int {
	switch t {
	case TechniqueError:
		return 0
	case TechniqueUnion:
		return 1
	case TechniqueBooleanBlind:
		return 2
	case TechniqueTimeBlind:
		return 3
	default:
		return 4
	}
}

// ParamLocation says where in the request the tested parameter lives
type ParamLocation string

const (
	LocationQuery  ParamLocation = "query"
	LocationBody   ParamLocation = "body"
	LocationHeader ParamLocation = "header"
	LocationCookie ParamLocation = "cookie"
)

// InjectionPoint is one parameter under test. It is immutable: strategy
// code builds new requests from it and never modifies it.
type InjectionPoint struct {
	BaseURL   string        `json:"base_url"`
	Method    string        `json:"method"`
	Parameter string        `json:"parameter"`
	Location  ParamLocation `json:"location"`

	// SeedValue is the benign value the parameter carries in the
	// baseline request; payloads are appended to it
	SeedValue string `json:"seed_value"`
}

// Key identifies the point for dedup purposes
func (p InjectionPoint) Key() string {
	return fmt.Sprintf("%s %s %s:%s", p.Method, p.BaseURL, p.Location, p.Parameter)
}

// BuildRequest produces the method, URL, body and headers for a probe
// carrying the given payload appended to the seed value
func (p InjectionPoint) BuildRequest(payload string) (method, reqURL, body string, headers map[string]string, err error) {
	value := p.SeedValue + payload

	switch p.Location {
	case LocationQuery:
		u, perr := url.Parse(p.BaseURL)
		if perr != nil {
			return "", "", "", nil, fmt.Errorf("invalid base URL: %w", perr)
		}
		q := u.Query()
		q.Set(p.Parameter, value)
		u.RawQuery = q.Encode()
		return p.Method, u.String(), "", nil, nil

	case LocationBody:
		form := url.Values{}
		form.Set(p.Parameter, value)
		headers = map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
		return p.Method, p.BaseURL, form.Encode(), headers, nil

	case LocationHeader:
		headers = map[string]string{p.Parameter: value}
		return p.Method, p.BaseURL, "", headers, nil

	case LocationCookie:
		headers = map[string]string{"Cookie": p.Parameter + "=" + url.QueryEscape(value)}
		return p.Method, p.BaseURL, "", headers, nil

	default:
		return "", "", "", nil, fmt.Errorf("unknown parameter location: %s", p.Location)
	}
}

// BaselineRequest produces the unmodified request carrying only the seed
func (p InjectionPoint) BaselineRequest() (method, reqURL, body string, headers map[string]string, err error) {
	return p.BuildRequest("")
}

// VulnStatus tracks a finding through its lifecycle. Transitions are
// forward-only: pending -> confirmed -> exploited | failed.
type VulnStatus string

const (
	StatusPending   VulnStatus = "pending"
	StatusConfirmed VulnStatus = "confirmed"
	StatusExploited VulnStatus = "exploited"
	StatusFailed    VulnStatus = "failed"
)

// canTransition reports whether moving from s to next is allowed
func (s VulnStatus) canTransition(next VulnStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed
	case StatusConfirmed:
		return next == StatusExploited || next == StatusFailed
	default:
		return false
	}
}

// Vulnerability is one confirmed or suspected injection finding
type Vulnerability struct {
	ID           string         `json:"id"`
	Technique    Technique      `json:"technique"`
	Point        InjectionPoint `json:"injection_point"`
	Confidence   float64        `json:"confidence"`
	Evidence     string         `json:"evidence"`
	PayloadUsed  string         `json:"payload_used"`
	DBMS         string         `json:"dbms,omitempty"`
	DiscoveredAt time.Time      `json:"discovered_at"`
	Status       VulnStatus     `json:"status"`
}

// NewVulnerability constructs a finding in the confirmed state
func NewVulnerability(technique Technique, point InjectionPoint, confidence float64, evidence, payload, dbms string) *Vulnerability {
	return &Vulnerability{
		ID:           uuid.NewString(),
		Technique:    technique,
		Point:        point,
		Confidence:   confidence,
		Evidence:     evidence,
		PayloadUsed:  payload,
		DBMS:         dbms,
		DiscoveredAt: time.Now().UTC(),
		Status:       StatusConfirmed,
	}
}

// SetStatus applies a lifecycle transition, rejecting backward moves
func (v *Vulnerability) SetStatus(next VulnStatus) error {
	if !v.Status.canTransition(next) {
		return fmt.Errorf("invalid status transition %s -> %s", v.Status, next)
	}
	v.Status = next
	return nil
}

// Requester is the transport the strategies probe through. Satisfied by
// *utils.HTTPClient; tests substitute deterministic fakes.
type Requester interface {
	Do(ctx context.Context, method, url, body string, headers map[string]string) (*utils.HTTPResponse, error)
}

// Strategy is the uniform detection capability. A nil vulnerability with
// a nil error means the strategy saw nothing conclusive.
type Strategy interface {
	Technique() Technique
	Detect(ctx context.Context, point InjectionPoint) (*Vulnerability, error)
}
