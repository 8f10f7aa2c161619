package random

import (
	"crypto/rand"
	"encoding/hex"
)

// NewHexString returns a hex string backed by n bytes of entropy.
func NewHexString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("random: entropy source unavailable: " + err.Error())
	}

	return hex.EncodeToString(b)
}
