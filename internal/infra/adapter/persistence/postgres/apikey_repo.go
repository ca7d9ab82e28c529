package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tollgate/internal/domain/entity"
	"tollgate/internal/repository"
)

type APIKeyRepo struct{ db *sql.DB }

func NewAPIKeyRepo(db *sql.DB) repository.APIKeyRepository {
	return &APIKeyRepo{db: db}
}

const apiKeyColumns = `id, tenant_id, key_hash, key_prefix, rate_limit, rate_window, revoked_at, created_at`

func scanAPIKey(rows *sql.Rows) (*entity.APIKey, error) {
	var key entity.APIKey
	if err := rows.Scan(
		&key.ID, &key.TenantID, &key.KeyHash, &key.KeyPrefix,
		&key.RateLimit, &key.RateWindow, &key.RevokedAt, &key.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &key, nil
}

func (repo *APIKeyRepo) Get(ctx context.Context, id string) (*entity.APIKey, error) {
	const query = `
SELECT ` + apiKeyColumns + `
FROM api_keys
WHERE id = $1
LIMIT 1`
	var key entity.APIKey
	err := repo.db.QueryRowContext(ctx, query, id).Scan(
		&key.ID, &key.TenantID, &key.KeyHash, &key.KeyPrefix,
		&key.RateLimit, &key.RateWindow, &key.RevokedAt, &key.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &key, nil
}

func (repo *APIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*entity.APIKey, error) {
	const query = `
SELECT ` + apiKeyColumns + `
FROM api_keys
WHERE key_hash = $1
LIMIT 1`
	var key entity.APIKey
	err := repo.db.QueryRowContext(ctx, query, keyHash).Scan(
		&key.ID, &key.TenantID, &key.KeyHash, &key.KeyPrefix,
		&key.RateLimit, &key.RateWindow, &key.RevokedAt, &key.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByHash: %w", err)
	}
	return &key, nil
}

func (repo *APIKeyRepo) ListByTenant(ctx context.Context, tenantID string) ([]*entity.APIKey, error) {
	const query = `
SELECT ` + apiKeyColumns + `
FROM api_keys
WHERE tenant_id = $1
ORDER BY created_at ASC`
	rows, err := repo.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ListByTenant: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make([]*entity.APIKey, 0, 10)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByTenant: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (repo *APIKeyRepo) Create(ctx context.Context, key *entity.APIKey) error {
	const query = `
INSERT INTO api_keys (id, tenant_id, key_hash, key_prefix, rate_limit, rate_window, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, query,
		key.ID, key.TenantID, key.KeyHash, key.KeyPrefix,
		key.RateLimit, key.RateWindow, key.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *APIKeyRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	const query = `
UPDATE api_keys SET revoked_at = $1
WHERE id = $2 AND revoked_at IS NULL`
	res, err := repo.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("Revoke: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Revoke: no rows affected")
	}
	return nil
}

func (repo *APIKeyRepo) SetLimits(ctx context.Context, id string, rateLimit, rateWindow int) error {
	const query = `
UPDATE api_keys SET
       rate_limit  = $1,
       rate_window = $2
WHERE id = $3`
	res, err := repo.db.ExecContext(ctx, query, rateLimit, rateWindow, id)
	if err != nil {
		return fmt.Errorf("SetLimits: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("SetLimits: no rows affected")
	}
	return nil
}

func (repo *APIKeyRepo) ListActive(ctx context.Context) ([]*entity.APIKey, error) {
	const query = `
SELECT ` + apiKeyColumns + `
FROM api_keys
WHERE revoked_at IS NULL
ORDER BY created_at ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	keys := make([]*entity.APIKey, 0, 50)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
