package util

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// NewGUID returns a 10-byte random note guid in URL-safe base64, matching
// the width Anki clients expect.
func NewGUID() string {
	bytes := make([]byte, 10)
	_, _ = rand.Read(bytes)
	return base64.RawURLEncoding.EncodeToString(bytes)
}

// NewHumanHash returns a short hex identifier used as a deck's shareable key.
func NewHumanHash() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
