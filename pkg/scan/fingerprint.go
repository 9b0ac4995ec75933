package scan

import (
	"hash/fnv"
	"regexp"

	"github.com/ahmad-20th/GrayTera/pkg/utils"
)

// volatileTokens match page content that changes between otherwise
// identical responses and must not influence fingerprint comparison
var volatileTokens = []*regexp.Regexp{
	// ISO timestamps and common date formats
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?`),
	regexp.MustCompile(`\d{2}/\d{2}/\d{4} \d{2}:\d{2}(:\d{2})?`),
	// unix epochs
	regexp.MustCompile(`\b1\d{9}\b`),
	// UUIDs
	regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`),
	// CSRF tokens and long hex nonces
	regexp.MustCompile(`(?i)(csrf[_-]?token|nonce|_token)["'=:\s]+[A-Za-z0-9+/=_-]{16,}`),
	regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`),
}

// Fingerprint is a compact summary of a response used to decide whether
// two responses are "the same page"
type Fingerprint struct {
	Status int    `json:"status"`
	Length int    `json:"length"`
	Hash   uint64 `json:"hash"`
}

// NewFingerprint summarizes a response, stripping volatile tokens from
// the body before hashing
func NewFingerprint(resp *utils.HTTPResponse) Fingerprint {
	body := resp.Body
	for _, re := range volatileTokens {
		body = re.ReplaceAll(body, nil)
	}

	h := fnv.New64a()
	h.Write(body)

	return Fingerprint{
		Status: resp.StatusCode,
		Length: len(body),
		Hash:   h.Sum64(),
	}
}

// Equal reports exact fingerprint identity
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.Status == other.Status && f.Hash == other.Hash
}

// Similar reports whether two fingerprints plausibly describe the same
// page: same status and normalized length within tolerance. Used where
// dynamic content defeats exact hashing.
func (f Fingerprint) Similar(other Fingerprint, lengthTolerance int) bool {
	if f.Status != other.Status {
		return false
	}
	if f.Hash == other.Hash {
		return true
	}
	diff := f.Length - other.Length
	if diff < 0 {
		diff = -diff
	}
	return diff <= lengthTolerance
}
