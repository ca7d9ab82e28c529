package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tollgate/internal/domain/entity"
	"tollgate/internal/repository"
)

type UsageEventRepo struct{ db *sql.DB }

func NewUsageEventRepo(db *sql.DB) repository.UsageEventRepository {
	return &UsageEventRepo{db: db}
}

func scanUsageEvent(rows *sql.Rows) (*entity.UsageEvent, error) {
	var event entity.UsageEvent
	if err := rows.Scan(
		&event.ID, &event.TenantID, &event.APIKeyID,
		&event.Method, &event.Path, &event.StatusCode, &event.LatencyMS,
		&event.Ts, &event.RequestID, &event.ClientIP, &event.UserAgent,
	); err != nil {
		return nil, err
	}
	return &event, nil
}

const usageEventColumns = `id, tenant_id, api_key_id, method, path, status_code, latency_ms, ts, request_id, client_ip, user_agent`

func (repo *UsageEventRepo) Insert(ctx context.Context, event *entity.UsageEvent) error {
	const query = `
INSERT INTO usage_events (` + usageEventColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := repo.db.ExecContext(ctx, query,
		event.ID, event.TenantID, event.APIKeyID,
		event.Method, event.Path, event.StatusCode, event.LatencyMS,
		event.Ts, event.RequestID, event.ClientIP, event.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// SummaryByStatus groups events by status code. An empty tenantID means
// all tenants, including unauthenticated traffic.
func (repo *UsageEventRepo) SummaryByStatus(ctx context.Context, tenantID string, from, to time.Time) ([]repository.StatusCount, error) {
	const query = `
SELECT status_code, COUNT(*), COALESCE(AVG(latency_ms), 0)
FROM usage_events
WHERE ts >= $1 AND ts <= $2
  AND ($3 = '' OR tenant_id::text = $3)
GROUP BY status_code
ORDER BY status_code ASC`
	rows, err := repo.db.QueryContext(ctx, query, from, to, tenantID)
	if err != nil {
		return nil, fmt.Errorf("SummaryByStatus: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make([]repository.StatusCount, 0, 10)
	for rows.Next() {
		var c repository.StatusCount
		if err := rows.Scan(&c.StatusCode, &c.Count, &c.AvgLatency); err != nil {
			return nil, fmt.Errorf("SummaryByStatus: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (repo *UsageEventRepo) TopEndpoints(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]repository.PathCount, error) {
	const query = `
SELECT path,
       COUNT(*),
       COUNT(*) FILTER (WHERE status_code >= 400)
FROM usage_events
WHERE ts >= $1 AND ts <= $2
  AND ($3 = '' OR tenant_id::text = $3)
GROUP BY path
ORDER BY COUNT(*) DESC, path ASC
LIMIT $4`
	rows, err := repo.db.QueryContext(ctx, query, from, to, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("TopEndpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make([]repository.PathCount, 0, limit)
	for rows.Next() {
		var c repository.PathCount
		if err := rows.Scan(&c.Path, &c.Count, &c.Errors); err != nil {
			return nil, fmt.Errorf("TopEndpoints: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (repo *UsageEventRepo) CountByKey(ctx context.Context, tenantID string, from, to time.Time) ([]repository.KeyCount, error) {
	const query = `
SELECT api_key_id::text,
       COUNT(*),
       COUNT(*) FILTER (WHERE status_code >= 400)
FROM usage_events
WHERE ts >= $1 AND ts <= $2
  AND api_key_id IS NOT NULL
  AND ($3 = '' OR tenant_id::text = $3)
GROUP BY api_key_id
ORDER BY COUNT(*) DESC`
	rows, err := repo.db.QueryContext(ctx, query, from, to, tenantID)
	if err != nil {
		return nil, fmt.Errorf("CountByKey: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make([]repository.KeyCount, 0, 10)
	for rows.Next() {
		var c repository.KeyCount
		if err := rows.Scan(&c.APIKeyID, &c.Count, &c.Errors); err != nil {
			return nil, fmt.Errorf("CountByKey: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (repo *UsageEventRepo) StatusClasses(ctx context.Context, tenantID string, from, to time.Time) (repository.StatusClassTotals, error) {
	const query = `
SELECT COUNT(*) FILTER (WHERE status_code BETWEEN 200 AND 299),
       COUNT(*) FILTER (WHERE status_code BETWEEN 400 AND 499),
       COUNT(*) FILTER (WHERE status_code >= 500)
FROM usage_events
WHERE ts >= $1 AND ts <= $2
  AND ($3 = '' OR tenant_id::text = $3)`
	var totals repository.StatusClassTotals
	err := repo.db.QueryRowContext(ctx, query, from, to, tenantID).Scan(
		&totals.Success, &totals.ClientError, &totals.ServerError,
	)
	if err != nil {
		return repository.StatusClassTotals{}, fmt.Errorf("StatusClasses: %w", err)
	}
	return totals, nil
}

func (repo *UsageEventRepo) ListEvents(ctx context.Context, limit, offset int) ([]*entity.UsageEvent, error) {
	const query = `
SELECT ` + usageEventColumns + `
FROM usage_events
ORDER BY ts DESC
LIMIT $1 OFFSET $2`
	rows, err := repo.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ListEvents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]*entity.UsageEvent, 0, limit)
	for rows.Next() {
		event, err := scanUsageEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListEvents: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (repo *UsageEventRepo) CountForKey(ctx context.Context, apiKeyID string, since time.Time) (int64, error) {
	const query = `
SELECT COUNT(*)
FROM usage_events
WHERE api_key_id::text = $1 AND ts >= $2`
	var count int64
	if err := repo.db.QueryRowContext(ctx, query, apiKeyID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("CountForKey: %w", err)
	}
	return count, nil
}

func (repo *UsageEventRepo) UnauthByIP(ctx context.Context, from, to time.Time, limit int) ([]repository.IPCount, error) {
	const query = `
SELECT client_ip, COUNT(*), MIN(ts), MAX(ts)
FROM usage_events
WHERE ts >= $1 AND ts <= $2
  AND tenant_id IS NULL
  AND client_ip <> ''
GROUP BY client_ip
ORDER BY COUNT(*) DESC
LIMIT $3`
	rows, err := repo.db.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("UnauthByIP: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanIPCounts(rows, "UnauthByIP")
}

func (repo *UsageEventRepo) SuspectIPs(ctx context.Context, from, to time.Time, minCount int64, limit int) ([]repository.IPCount, error) {
	const query = `
SELECT client_ip, COUNT(*), MIN(ts), MAX(ts)
FROM usage_events
WHERE ts >= $1 AND ts <= $2
  AND tenant_id IS NULL
  AND status_code = 401
  AND client_ip <> ''
GROUP BY client_ip
HAVING COUNT(*) >= $3
ORDER BY COUNT(*) DESC
LIMIT $4`
	rows, err := repo.db.QueryContext(ctx, query, from, to, minCount, limit)
	if err != nil {
		return nil, fmt.Errorf("SuspectIPs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanIPCounts(rows, "SuspectIPs")
}

func (repo *UsageEventRepo) SuspectPaths(ctx context.Context, from, to time.Time, ips []string) ([]repository.IPPathCount, error) {
	if len(ips) == 0 {
		return nil, nil
	}
	const query = `
SELECT client_ip, path, COUNT(*)
FROM usage_events
WHERE ts >= $1 AND ts <= $2
  AND tenant_id IS NULL
  AND status_code = 401
  AND client_ip = ANY($3)
GROUP BY client_ip, path
ORDER BY client_ip ASC, COUNT(*) DESC`
	rows, err := repo.db.QueryContext(ctx, query, from, to, ips)
	if err != nil {
		return nil, fmt.Errorf("SuspectPaths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make([]repository.IPPathCount, 0, len(ips)*3)
	for rows.Next() {
		var c repository.IPPathCount
		if err := rows.Scan(&c.ClientIP, &c.Path, &c.Count); err != nil {
			return nil, fmt.Errorf("SuspectPaths: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (repo *UsageEventRepo) RateLimitedByIP(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]repository.IPCount, error) {
	const query = `
SELECT client_ip, COUNT(*), MIN(ts), MAX(ts)
FROM usage_events
WHERE ts >= $1 AND ts <= $2
  AND status_code = 429
  AND client_ip <> ''
  AND ($3 = '' OR tenant_id::text = $3)
GROUP BY client_ip
ORDER BY COUNT(*) DESC
LIMIT $4`
	rows, err := repo.db.QueryContext(ctx, query, from, to, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("RateLimitedByIP: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanIPCounts(rows, "RateLimitedByIP")
}

func (repo *UsageEventRepo) StatusesForIP(ctx context.Context, clientIP string, from, to time.Time) ([]repository.StatusCount, error) {
	const query = `
SELECT status_code, COUNT(*), COALESCE(AVG(latency_ms), 0)
FROM usage_events
WHERE client_ip = $1 AND ts >= $2 AND ts <= $3
GROUP BY status_code
ORDER BY status_code ASC`
	rows, err := repo.db.QueryContext(ctx, query, clientIP, from, to)
	if err != nil {
		return nil, fmt.Errorf("StatusesForIP: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make([]repository.StatusCount, 0, 10)
	for rows.Next() {
		var c repository.StatusCount
		if err := rows.Scan(&c.StatusCode, &c.Count, &c.AvgLatency); err != nil {
			return nil, fmt.Errorf("StatusesForIP: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (repo *UsageEventRepo) TopPathsForIP(ctx context.Context, clientIP string, from, to time.Time, limit int) ([]repository.PathCount, error) {
	const query = `
SELECT path,
       COUNT(*),
       COUNT(*) FILTER (WHERE status_code >= 400)
FROM usage_events
WHERE client_ip = $1 AND ts >= $2 AND ts <= $3
GROUP BY path
ORDER BY COUNT(*) DESC, path ASC
LIMIT $4`
	rows, err := repo.db.QueryContext(ctx, query, clientIP, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("TopPathsForIP: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make([]repository.PathCount, 0, limit)
	for rows.Next() {
		var c repository.PathCount
		if err := rows.Scan(&c.Path, &c.Count, &c.Errors); err != nil {
			return nil, fmt.Errorf("TopPathsForIP: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (repo *UsageEventRepo) LastEventsForIP(ctx context.Context, clientIP string, from, to time.Time, limit int) ([]*entity.UsageEvent, error) {
	const query = `
SELECT ` + usageEventColumns + `
FROM usage_events
WHERE client_ip = $1 AND ts >= $2 AND ts <= $3
ORDER BY ts DESC
LIMIT $4`
	rows, err := repo.db.QueryContext(ctx, query, clientIP, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("LastEventsForIP: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]*entity.UsageEvent, 0, limit)
	for rows.Next() {
		event, err := scanUsageEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("LastEventsForIP: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanIPCounts(rows *sql.Rows, op string) ([]repository.IPCount, error) {
	counts := make([]repository.IPCount, 0, 20)
	for rows.Next() {
		var c repository.IPCount
		if err := rows.Scan(&c.ClientIP, &c.Count, &c.FirstTs, &c.LastTs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
