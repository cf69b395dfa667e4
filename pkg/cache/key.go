package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintSeparator joins fingerprint parts. The unit separator byte is
// not expected to appear in prompts, model names, or schema identifiers, so
// distinct part lists never collide by concatenation.
const fingerprintSeparator = "\x1f"

// Fingerprint builds a stable cache key from the semantically relevant
// inputs of a provider call (provider identity, prompts, schema shape).
//
// Two calls with identical inputs produce identical keys; any change to
// prompt text, model, or schema changes the key.
func Fingerprint(parts ...string) string {
	joined := strings.Join(parts, fingerprintSeparator)
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}
