// Package authctx carries the resolved credential identity through the
// request context. The usage capture middleware installs an empty slot
// before routing; the credential resolver fills it once the bearer
// credential is fingerprint-matched. The slot is filled before the
// revocation check, so rejected revoked-key requests are still
// attributed to their tenant in the usage log.
package authctx

import "context"

// Identity is the resolved credential attached to a request.
type Identity struct {
	APIKeyID string
	TenantID string
}

// holder is a mutable slot shared between the middleware that installs
// it and the resolver that fills it. context values are immutable, so
// the pointer indirection is what lets a later middleware publish the
// identity to an earlier one.
type holder struct {
	identity *Identity
}

type contextKey struct{}

// WithHolder installs an empty identity slot into the context.
func WithHolder(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, &holder{})
}

// Set fills the identity slot. No-op when no slot is installed.
func Set(ctx context.Context, id Identity) {
	if h, ok := ctx.Value(contextKey{}).(*holder); ok {
		h.identity = &id
	}
}

// FromContext returns the resolved identity, or nil when the request
// never passed credential resolution.
func FromContext(ctx context.Context) *Identity {
	if h, ok := ctx.Value(contextKey{}).(*holder); ok {
		return h.identity
	}
	return nil
}
