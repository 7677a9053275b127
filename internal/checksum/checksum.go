// Package checksum fingerprints source files so unchanged content can be skipped.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag quotes a digest produced by Sum for use as an HTTP ETag header.
func ETag(sum string) string {
	if len(sum) > 16 {
		sum = sum[:16]
	}
	return `"` + sum + `"`
}
