package criterion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainCriterion prefixes criterion fingerprints. The version suffix allows
// the canonical encoding to change without colliding with older keys.
const DomainCriterion = "searchql/criterion/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte keeps
// the domain and data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a stable hex identifier for a criterion tree.
//
// Two trees share a fingerprint exactly when their canonical encodings are
// equal, so the value can key result caches across processes.
func Fingerprint(c Criterion) (string, error) {
	doc, err := MarshalCanonical(c)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainCriterion, doc), nil
}
