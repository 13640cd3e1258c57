// Package dedup derives the idempotency keys that detect re-imports of the
// same statement line. Keys are SHA-256 digests: pure, deterministic, and
// collision-resistant for practical purposes.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint hashes the content key (owner, ISO date, amount magnitude,
// description), concatenated without separators. Two genuinely distinct
// same-day/same-amount/same-description lines collide; callers with a
// source-provided id should prefer NaturalFingerprint.
func Fingerprint(ownerID, isoDate string, amount float64, description string) string {
	input := ownerID + isoDate + fmt.Sprintf("%.2f", amount) + description
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// NaturalFingerprint hashes a stable source-provided transaction id (OFX
// FITID) scoped by owner and provider. Preferred over the content hash when
// the format supplies a natural id, so legitimately repeated transactions
// are not folded together.
func NaturalFingerprint(ownerID, providerTag, naturalID string) string {
	sum := sha256.Sum256([]byte(ownerID + providerTag + naturalID))
	return hex.EncodeToString(sum[:])
}
