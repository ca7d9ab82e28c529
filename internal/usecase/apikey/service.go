package apikey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tollgate/internal/domain/entity"
	"tollgate/internal/repository"
	"tollgate/pkg/credential"
)

// Revocation statuses returned by Revoke.
const (
	StatusRevoked        = "revoked"
	StatusAlreadyRevoked = "already_revoked"
)

// IssueResult carries a newly issued key together with its plaintext.
// The plaintext exists only in this value; it is never persisted.
type IssueResult struct {
	Key       *entity.APIKey
	Plaintext string
}

// Service provides API key management use cases.
type Service struct {
	Keys    repository.APIKeyRepository
	Tenants repository.TenantRepository
}

// Issue generates a new key for the tenant and stores its fingerprint.
// Returns ErrTenantNotFound when the tenant does not exist and
// ErrHashCollision when the generated fingerprint is already taken.
func (s *Service) Issue(ctx context.Context, tenantID string) (*IssueResult, error) {
	t, err := s.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}

	plain, err := credential.Generate()
	if err != nil {
		return nil, fmt.Errorf("issue key: %w", err)
	}
	hash := credential.Hash(plain)

	// 衝突は事実上起きないが、起きたら insert せずに retry させる
	existing, err := s.Keys.GetByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("check fingerprint: %w", err)
	}
	if existing != nil {
		return nil, ErrHashCollision
	}

	key := &entity.APIKey{
		ID:         uuid.New().String(),
		TenantID:   t.ID,
		KeyHash:    hash,
		KeyPrefix:  credential.Prefix(plain),
		RateLimit:  entity.DefaultRateLimit,
		RateWindow: entity.DefaultRateWindow,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Keys.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("create key: %w", err)
	}
	return &IssueResult{Key: key, Plaintext: plain}, nil
}

// Revoke marks the key as revoked. The operation is idempotent: revoking
// an already revoked key returns StatusAlreadyRevoked without error.
func (s *Service) Revoke(ctx context.Context, id string) (string, error) {
	key, err := s.Keys.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get key: %w", err)
	}
	if key == nil {
		return "", ErrKeyNotFound
	}
	if !key.Usable() {
		return StatusAlreadyRevoked, nil
	}
	if err := s.Keys.Revoke(ctx, id, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("revoke key: %w", err)
	}
	return StatusRevoked, nil
}

// SetLimits overrides the per-key rate limit.
// Returns a ValidationError when the values are out of bounds.
func (s *Service) SetLimits(ctx context.Context, id string, rateLimit, rateWindow int) error {
	if err := entity.ValidateRateLimits(rateLimit, rateWindow); err != nil {
		return err
	}
	key, err := s.Keys.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get key: %w", err)
	}
	if key == nil {
		return ErrKeyNotFound
	}
	if err := s.Keys.SetLimits(ctx, id, rateLimit, rateWindow); err != nil {
		return fmt.Errorf("set limits: %w", err)
	}
	return nil
}

// SetTier applies a named rate limit preset to the key.
// Returns ErrUnknownTier for undefined tiers and ErrKeyRevoked when the
// key has been revoked.
func (s *Service) SetTier(ctx context.Context, id, tierName string) (entity.Tier, error) {
	tier, ok := entity.Tiers[tierName]
	if !ok {
		return entity.Tier{}, ErrUnknownTier
	}
	key, err := s.Keys.Get(ctx, id)
	if err != nil {
		return entity.Tier{}, fmt.Errorf("get key: %w", err)
	}
	if key == nil {
		return entity.Tier{}, ErrKeyNotFound
	}
	if !key.Usable() {
		return entity.Tier{}, ErrKeyRevoked
	}
	if err := s.Keys.SetLimits(ctx, id, tier.RateLimit, tier.RateWindow); err != nil {
		return entity.Tier{}, fmt.Errorf("set tier limits: %w", err)
	}
	return tier, nil
}

// ListByTenant returns all keys belonging to the tenant.
// Returns ErrTenantNotFound when the tenant does not exist.
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]*entity.APIKey, error) {
	t, err := s.Tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}
	keys, err := s.Keys.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}
