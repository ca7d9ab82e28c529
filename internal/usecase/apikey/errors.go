// Package apikey provides use cases for issuing and managing API keys.
// It implements key issuance, revocation and rate limit mutation,
// delegating persistence to the key and tenant repositories.
package apikey

import "errors"

// Sentinel errors for API key use case operations.
var (
	// ErrKeyNotFound indicates that the requested API key was not found.
	ErrKeyNotFound = errors.New("API key not found")

	// ErrTenantNotFound indicates that the owning tenant was not found.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrHashCollision indicates that a freshly generated key hashed to a
	// fingerprint already present in the store. The caller should retry.
	ErrHashCollision = errors.New("key generation collision, retry")

	// ErrUnknownTier indicates that the requested tier name is not defined.
	ErrUnknownTier = errors.New("unknown tier")

	// ErrKeyRevoked indicates an attempted mutation of a revoked key.
	// Revocation is a one-way transition.
	ErrKeyRevoked = errors.New("API key is revoked")
)
