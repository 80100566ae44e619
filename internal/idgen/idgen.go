// Package idgen generates opaque random identifiers for stored entities.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a random 16-byte identifier hex-encoded to 32 characters.
func New() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read on a supported platform does not fail in
		// practice; panicking here matches the engine's stance that
		// internal invariant violations are bugs, not recoverable
		// errors.
		panic("idgen: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
