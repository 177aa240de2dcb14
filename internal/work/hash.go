package work

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent produces a SHA256 digest over the given parts. Empty parts
// are skipped so that a missing abstract hashes the same as an absent one.
func HashContent(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		if part != "" {
			h.Write([]byte(part))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
