package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// OpaqueSize is the number of random bytes behind every refresh and one-time token.
const OpaqueSize = 64

// NewOpaque generates a cryptographically random, URL-safe token string.
func NewOpaque() (string, error) {
	b := make([]byte, OpaqueSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
