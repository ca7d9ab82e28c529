// Package repository defines the persistence interfaces used by the
// use case layer. Concrete implementations live under
// internal/infra/adapter/persistence.
package repository

import (
	"context"

	"tollgate/internal/domain/entity"
)

// TenantRepository provides access to tenant records.
type TenantRepository interface {
	Get(ctx context.Context, id string) (*entity.Tenant, error)
	GetByName(ctx context.Context, name string) (*entity.Tenant, error)
	Create(ctx context.Context, tenant *entity.Tenant) error
}
