// Package securetoken provides unguessable token generation for client-facing
// links. This is part of the platform layer and contains no business logic.
package securetoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Generator produces opaque tokens. It is an interface so tests can supply a
// deterministic implementation.
type Generator interface {
	NewToken() (string, error)
}

// Crypto generates 256-bit hex tokens from crypto/rand.
type Crypto struct{}

// NewToken returns a fresh 64-character hex token.
func (Crypto) NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
