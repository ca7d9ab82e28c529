// Package credential generates and fingerprints opaque API keys.
//
// A key is 32 bytes from a CSPRNG, URL-safe base64 encoded without
// padding. Only the hex SHA-256 fingerprint is ever persisted; comparison
// happens in constant time over fingerprints, never over plaintext.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// PrefixLen is the number of leading plaintext characters kept for
// display. The prefix is not a secret.
const PrefixLen = 8

// Generate returns a new plaintext key. The caller must hand it to the
// client exactly once and discard it.
func Generate() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Hash returns the lowercase hex SHA-256 fingerprint of the plaintext.
func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// Prefix returns the display prefix of a plaintext key.
func Prefix(plain string) string {
	if len(plain) < PrefixLen {
		return plain
	}
	return plain[:PrefixLen]
}

// Equal compares two fingerprints in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
