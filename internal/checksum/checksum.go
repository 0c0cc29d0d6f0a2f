package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag formats a digest as a strong HTTP entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether an If-Match style precondition accepts data.
// An empty precondition or "*" always matches; quoted and weak (W/) tags
// are compared by their opaque value.
func Matches(precondition string, data []byte) bool {
	precondition = strings.TrimSpace(precondition)
	if precondition == "" || precondition == "*" {
		return true
	}
	sum := Sum(data)
	for _, tag := range strings.Split(precondition, ",") {
		tag = strings.TrimSpace(tag)
		tag = strings.TrimPrefix(tag, "W/")
		tag = strings.Trim(tag, `"`)
		if tag == sum {
			return true
		}
	}
	return false
}
