package helper

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash8 is a short stable digest for log lines; emails are never logged raw.
func Hash8(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
