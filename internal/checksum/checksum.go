// Package checksum fingerprints file contents so unchanged files are not rewritten.
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

// Short returns the first twelve hex digits of Sum, for logs and reports.
func Short(data []byte) string {
	return Sum(data)[:12]
}
