// Package checksum computes content digests used as HTTP entity tags.
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

// Text is Sum over a string.
func Text(s string) string {
	return Sum([]byte(s))
}

// ETag quotes a digest for the ETag header.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// Matches reports whether an If-Match header value names sum. An empty
// header or "*" matches anything; weak tags compare by their opaque value.
func Matches(ifMatch, sum string) bool {
	ifMatch = strings.TrimSpace(ifMatch)
	if ifMatch == "" || ifMatch == "*" {
		return true
	}
	for _, tag := range strings.Split(ifMatch, ",") {
		tag = strings.TrimSpace(tag)
		tag = strings.TrimPrefix(tag, "W/")
		if strings.Trim(tag, `"`) == sum {
			return true
		}
	}
	return false
}
