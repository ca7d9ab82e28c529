// Package entity defines the core domain types of the gateway:
// tenants, API keys, usage events and IP block entries.
package entity

import "time"

// TenantNameMaxLen is the maximum accepted length for a tenant name.
const TenantNameMaxLen = 200

// Tenant is a top-level principal owning API keys and attributable usage.
// Tenants are never deleted at runtime.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ValidateTenantName checks the tenant name length constraints.
func ValidateTenantName(name string) error {
	if name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if len(name) > TenantNameMaxLen {
		return &ValidationError{Field: "name", Message: "must be at most 200 characters"}
	}
	return nil
}
