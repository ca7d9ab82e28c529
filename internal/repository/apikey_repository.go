package repository

import (
	"context"
	"time"

	"tollgate/internal/domain/entity"
)

// APIKeyRepository provides access to API key records.
type APIKeyRepository interface {
	Get(ctx context.Context, id string) (*entity.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*entity.APIKey, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.APIKey, error)
	Create(ctx context.Context, key *entity.APIKey) error
	Revoke(ctx context.Context, id string, at time.Time) error
	SetLimits(ctx context.Context, id string, rateLimit, rateWindow int) error

	// ListActive returns all non-revoked keys. Used by the near-quota scan.
	ListActive(ctx context.Context) ([]*entity.APIKey, error)
}
