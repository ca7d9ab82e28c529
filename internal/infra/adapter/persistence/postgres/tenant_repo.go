package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"tollgate/internal/domain/entity"
	"tollgate/internal/repository"
)

type TenantRepo struct{ db *sql.DB }

func NewTenantRepo(db *sql.DB) repository.TenantRepository {
	return &TenantRepo{db: db}
}

func (repo *TenantRepo) Get(ctx context.Context, id string) (*entity.Tenant, error) {
	const query = `
SELECT id, name, created_at
FROM tenants
WHERE id = $1
LIMIT 1`
	var tenant entity.Tenant
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID, &tenant.Name, &tenant.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &tenant, nil
}

func (repo *TenantRepo) GetByName(ctx context.Context, name string) (*entity.Tenant, error) {
	const query = `
SELECT id, name, created_at
FROM tenants
WHERE name = $1
LIMIT 1`
	var tenant entity.Tenant
	err := repo.db.QueryRowContext(ctx, query, name).Scan(
		&tenant.ID, &tenant.Name, &tenant.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByName: %w", err)
	}
	return &tenant, nil
}

func (repo *TenantRepo) Create(ctx context.Context, tenant *entity.Tenant) error {
	const query = `
INSERT INTO tenants (id, name, created_at)
VALUES ($1, $2, $3)`
	_, err := repo.db.ExecContext(ctx, query,
		tenant.ID, tenant.Name, tenant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}
