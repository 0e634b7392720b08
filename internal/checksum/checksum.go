// Package checksum computes content digests used to detect changed archives.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns a strong HTTP entity tag for the item at position of the
// archive whose digest is sum.
func ETag(sum string, position int) string {
	if len(sum) > 16 {
		sum = sum[:16]
	}
	return fmt.Sprintf(`"%s-%d"`, sum, position)
}
