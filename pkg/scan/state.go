package scan

import "sync"

// resultCollector accumulates findings and per-point errors from
// concurrent workers. Append-only; dedup happens after all workers
// finish.
type resultCollector struct {
	mu sync.RWMutex

	findings    []*Vulnerability
	pointErrors map[string]error

	pointsScanned int
	pointsFailed  int
}

func newResultCollector() *resultCollector {
	return &resultCollector{
		pointErrors: make(map[string]error),
	}
}

func (rc *resultCollector) recordFinding(v *Vulnerability) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.findings = append(rc.findings, v)
}

func (rc *resultCollector) recordPointDone() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.pointsScanned++
}

func (rc *resultCollector) recordPointError(key string, err error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.pointsScanned++
	rc.pointsFailed++
	rc.pointErrors[key] = err
}

func (rc *resultCollector) snapshot() ([]*Vulnerability, map[string]error, int, int) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	findings := make([]*Vulnerability, len(rc.findings))
	copy(findings, rc.findings)

	errs := make(map[string]error, len(rc.pointErrors))
	for k, v := range rc.pointErrors {
		errs[k] = v
	}

	return findings, errs, rc.pointsScanned, rc.pointsFailed
}
