// Package idgen generates identifiers for requests and generated reports.
package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// RequestID returns a random UUIDv4 for request correlation.
func RequestID() string {
	return uuid.NewString()
}

// WithPrefix generates a random ID with a prefix (e.g. "rpt_").
// Result is prefix + 24 hex chars (12 random bytes).
func WithPrefix(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}
