package core

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// HashContent returns the canonical SHA-256 hash of script text as a
// lowercase hex string. The hash is computed over the UTF-8 bytes of the
// text, so identical text always yields an identical hash regardless of the
// source format it was recovered from.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

var hashRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// IsValidHash reports whether s is a canonical content hash as produced by
// HashContent.
func IsValidHash(s string) bool {
	return hashRe.MatchString(s)
}
