package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tollgate/internal/domain/entity"
	"tollgate/internal/repository"
)

// Service provides tenant management use cases.
// It handles business logic for tenant operations and delegates persistence to the repository.
type Service struct {
	Repo repository.TenantRepository
}

// Create creates a new tenant with the given name.
// Returns a ValidationError when the name is empty or too long, and
// ErrDuplicateTenant when a tenant with the same name already exists.
func (s *Service) Create(ctx context.Context, name string) (*entity.Tenant, error) {
	if err := entity.ValidateTenantName(name); err != nil {
		return nil, err
	}

	// 名前の一意性は select-then-insert で担保する
	existing, err := s.Repo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get tenant by name: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateTenant
	}

	t := &entity.Tenant{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}

// Get retrieves a tenant by its ID.
// Returns ErrTenantNotFound when the tenant does not exist.
func (s *Service) Get(ctx context.Context, id string) (*entity.Tenant, error) {
	if id == "" {
		return nil, &entity.ValidationError{Field: "id", Message: "is required"}
	}
	t, err := s.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}
	return t, nil
}
