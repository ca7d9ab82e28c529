package repository

import (
	"context"
	"time"

	"tollgate/internal/domain/entity"
)

// StatusCount is one row of a by-status aggregation.
type StatusCount struct {
	StatusCode int
	Count      int64
	AvgLatency float64
}

// PathCount is one row of a by-path aggregation. Errors counts rows with
// status_code >= 400.
type PathCount struct {
	Path   string
	Count  int64
	Errors int64
}

// KeyCount is one row of a by-key aggregation.
type KeyCount struct {
	APIKeyID string
	Count    int64
	Errors   int64
}

// IPCount is one row of a by-client-IP aggregation.
type IPCount struct {
	ClientIP string
	Count    int64
	FirstTs  time.Time
	LastTs   time.Time
}

// IPPathCount is one row of a per-IP, per-path aggregation.
type IPPathCount struct {
	ClientIP string
	Path     string
	Count    int64
}

// StatusClassTotals sums events by status class.
type StatusClassTotals struct {
	Success     int64 // 2xx
	ClientError int64 // 4xx
	ServerError int64 // 5xx
}

// UsageEventRepository provides append-only inserts and the aggregation
// queries backing the admin analytics and abuse detection surfaces.
type UsageEventRepository interface {
	// Insert appends one event. Implementations must not share a
	// transaction with any handler work: the write uses its own pooled
	// session so a handler failure cannot roll back the audit row.
	Insert(ctx context.Context, event *entity.UsageEvent) error

	SummaryByStatus(ctx context.Context, tenantID string, from, to time.Time) ([]StatusCount, error)
	TopEndpoints(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]PathCount, error)
	CountByKey(ctx context.Context, tenantID string, from, to time.Time) ([]KeyCount, error)
	StatusClasses(ctx context.Context, tenantID string, from, to time.Time) (StatusClassTotals, error)
	ListEvents(ctx context.Context, limit, offset int) ([]*entity.UsageEvent, error)

	// CountForKey counts events attributed to one key since the given
	// time. Used by the near-quota scan.
	CountForKey(ctx context.Context, apiKeyID string, since time.Time) (int64, error)

	// UnauthByIP aggregates unauthenticated rows (tenant_id IS NULL)
	// by client IP within the window.
	UnauthByIP(ctx context.Context, from, to time.Time, limit int) ([]IPCount, error)

	// SuspectIPs returns IPs with at least minCount unauthenticated 401
	// rows in the window, busiest first.
	SuspectIPs(ctx context.Context, from, to time.Time, minCount int64, limit int) ([]IPCount, error)

	// SuspectPaths returns per-IP path counts for the given IPs ordered
	// by (client_ip, count desc), for top-N path attribution.
	SuspectPaths(ctx context.Context, from, to time.Time, ips []string) ([]IPPathCount, error)

	// RateLimitedByIP aggregates 429 rows by client IP, optionally
	// scoped to one tenant (empty tenantID means global).
	RateLimitedByIP(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]IPCount, error)

	// Per-IP timeline pieces.
	StatusesForIP(ctx context.Context, clientIP string, from, to time.Time) ([]StatusCount, error)
	TopPathsForIP(ctx context.Context, clientIP string, from, to time.Time, limit int) ([]PathCount, error)
	LastEventsForIP(ctx context.Context, clientIP string, from, to time.Time, limit int) ([]*entity.UsageEvent, error)
}
