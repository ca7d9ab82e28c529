package db

import (
	"database/sql"
)

// MigrateUp applies the gateway schema. All statements are idempotent so
// the migration can run on every startup.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS tenants (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS api_keys (
    id          UUID PRIMARY KEY,
    tenant_id   UUID NOT NULL REFERENCES tenants(id),
    key_hash    VARCHAR(64) NOT NULL UNIQUE,
    key_prefix  VARCHAR(16) NOT NULL,
    rate_limit  INTEGER NOT NULL DEFAULT 10,
    rate_window INTEGER NOT NULL DEFAULT 60,
    revoked_at  TIMESTAMPTZ,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS usage_events (
    id          UUID PRIMARY KEY,
    tenant_id   UUID REFERENCES tenants(id),
    api_key_id  UUID REFERENCES api_keys(id),
    method      VARCHAR(10) NOT NULL,
    path        TEXT NOT NULL,
    status_code INTEGER NOT NULL,
    latency_ms  BIGINT NOT NULL,
    ts          TIMESTAMPTZ NOT NULL DEFAULT now(),
    request_id  VARCHAR(64),
    client_ip   VARCHAR(45),
    user_agent  TEXT
)`); err != nil {
		return err
	}

	// usage_events は追記専用で増え続けるため、集計クエリが使う軸ごとにインデックスを張る
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_usage_events_ts ON usage_events(ts DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_events_tenant_ts ON usage_events(tenant_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_events_key_ts ON usage_events(api_key_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_events_status_ts ON usage_events(status_code, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_events_ip_ts ON usage_events(client_ip, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_tenant ON api_keys(tenant_id)`,
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}

// MigrateDown rolls back the database schema in reverse dependency order.
// Use with caution: this deletes all data in the affected tables.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS usage_events`,
		`DROP TABLE IF EXISTS api_keys`,
		`DROP TABLE IF EXISTS tenants`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
