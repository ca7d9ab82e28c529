package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"tollgate/internal/domain/entity"
	"tollgate/internal/infra/adapter/persistence/postgres"
)

func apiKeyRow(k *entity.APIKey) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "key_hash", "key_prefix",
		"rate_limit", "rate_window", "revoked_at", "created_at",
	}).AddRow(
		k.ID, k.TenantID, k.KeyHash, k.KeyPrefix,
		k.RateLimit, k.RateWindow, k.RevokedAt, k.CreatedAt,
	)
}

func TestAPIKeyRepo_GetByHash(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	want := &entity.APIKey{
		ID:       "9c1f0b5e-0000-0000-0000-000000000001",
		TenantID: "7b6d0b5e-0000-0000-0000-000000000001",
		KeyHash:  "0b7e3c", KeyPrefix: "abcd1234",
		RateLimit: 10, RateWindow: 60,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectQuery(`WHERE key_hash = \$1`).
		WithArgs(want.KeyHash).
		WillReturnRows(apiKeyRow(want))

	repo := postgres.NewAPIKeyRepo(db)
	got, err := repo.GetByHash(context.Background(), want.KeyHash)
	if err != nil {
		t.Fatalf("GetByHash err=%v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAPIKeyRepo_GetByHash_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM api_keys`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "key_hash", "key_prefix",
			"rate_limit", "rate_window", "revoked_at", "created_at",
		}))

	repo := postgres.NewAPIKeyRepo(db)
	got, err := repo.GetByHash(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetByHash err=%v", err)
	}
	if got != nil {
		t.Fatalf("want nil, got %+v", got)
	}
}

func TestAPIKeyRepo_Create(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now().UTC()
	key := &entity.APIKey{
		ID:       "9c1f0b5e-0000-0000-0000-000000000002",
		TenantID: "7b6d0b5e-0000-0000-0000-000000000001",
		KeyHash:  "deadbeef", KeyPrefix: "prefix12",
		RateLimit: 120, RateWindow: 60,
		CreatedAt: now,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO api_keys`)).
		WithArgs(key.ID, key.TenantID, key.KeyHash, key.KeyPrefix,
			key.RateLimit, key.RateWindow, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewAPIKeyRepo(db)
	if err := repo.Create(context.Background(), key); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAPIKeyRepo_Revoke(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE api_keys SET revoked_at`)).
		WithArgs(now, "key-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewAPIKeyRepo(db)
	if err := repo.Revoke(context.Background(), "key-id", now); err != nil {
		t.Fatalf("Revoke err=%v", err)
	}
}

func TestAPIKeyRepo_Revoke_AlreadyRevoked(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	// revoked_at IS NULL条件により二重revokeは0行更新
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE api_keys SET revoked_at`)).
		WithArgs(now, "key-id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := postgres.NewAPIKeyRepo(db)
	if err := repo.Revoke(context.Background(), "key-id", now); err == nil {
		t.Fatal("want error on zero rows affected")
	}
}

func TestAPIKeyRepo_SetLimits(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE api_keys SET`)).
		WithArgs(500, 120, "key-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := postgres.NewAPIKeyRepo(db)
	if err := repo.SetLimits(context.Background(), "key-id", 500, 120); err != nil {
		t.Fatalf("SetLimits err=%v", err)
	}
}

func TestAPIKeyRepo_ListByTenant(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now().UTC()
	revoked := now.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "key_hash", "key_prefix",
		"rate_limit", "rate_window", "revoked_at", "created_at",
	}).
		AddRow("k1", "t1", "h1", "p1", 10, 60, nil, now).
		AddRow("k2", "t1", "h2", "p2", 10, 60, revoked, now)

	mock.ExpectQuery(`WHERE tenant_id = \$1`).
		WithArgs("t1").
		WillReturnRows(rows)

	repo := postgres.NewAPIKeyRepo(db)
	got, err := repo.ListByTenant(context.Background(), "t1")
	if err != nil || len(got) != 2 {
		t.Fatalf("ListByTenant err=%v len=%d", err, len(got))
	}
	if got[0].RevokedAt != nil {
		t.Fatal("first key should be active")
	}
	if got[1].RevokedAt == nil {
		t.Fatal("second key should be revoked")
	}
}

func TestAPIKeyRepo_ListActive(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Now().UTC()
	mock.ExpectQuery(`WHERE revoked_at IS NULL`).
		WillReturnRows(apiKeyRow(&entity.APIKey{
			ID: "k1", TenantID: "t1", KeyHash: "h1", KeyPrefix: "p1",
			RateLimit: 10, RateWindow: 60, CreatedAt: now,
		}))

	repo := postgres.NewAPIKeyRepo(db)
	got, err := repo.ListActive(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("ListActive err=%v len=%d", err, len(got))
	}
}
