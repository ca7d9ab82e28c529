// Package tenant provides use cases for managing gateway tenants.
// It implements business logic for creating and querying tenants,
// including validation and interaction with the tenant repository.
package tenant

import "errors"

// Sentinel errors for tenant use case operations.
var (
	// ErrTenantNotFound indicates that the requested tenant was not found.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrDuplicateTenant indicates that a tenant with the same name already
	// exists. Tenant names are unique across the gateway.
	ErrDuplicateTenant = errors.New("tenant with this name already exists")
)
