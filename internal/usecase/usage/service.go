// Package usage provides the analytics use cases behind the per-tenant
// admin reporting endpoints: status summaries, endpoint rankings, per-key
// breakdowns and the near-quota scan.
package usage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"tollgate/internal/domain/entity"
	"tollgate/internal/repository"
)

// DefaultRangeHours is the reporting window applied when from_ts is absent.
const DefaultRangeHours = 24

// Event listing bounds.
const (
	EventsLimitMax     = 200
	EventsLimitDefault = 50
)

// NormalizeRange resolves an optional [from, to] pair into a concrete UTC
// window. Missing to defaults to now, missing from to to minus 24h.
// Returns a ValidationError when from is after to.
func NormalizeRange(from, to *time.Time) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	if to != nil {
		end = to.UTC()
	}
	start := end.Add(-DefaultRangeHours * time.Hour)
	if from != nil {
		start = from.UTC()
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, &entity.ValidationError{Field: "from_ts", Message: "must not be after to_ts"}
	}
	return start, end, nil
}

// Summary aggregates a tenant's traffic by status code over a window.
type Summary struct {
	FromTs       time.Time
	ToTs         time.Time
	ByStatus     map[int]int64
	AvgLatencyMS float64
}

// EndpointUsage is one row of the top-endpoints ranking.
type EndpointUsage struct {
	Path      string
	Count     int64
	ErrorRate float64
}

// KeyUsage is one row of the per-key breakdown.
type KeyUsage struct {
	APIKeyID  string
	Count     int64
	ErrorRate float64
}

// NearQuotaKey is one active key approaching its rate limit.
type NearQuotaKey struct {
	APIKeyID   string
	TenantID   string
	RateLimit  int
	RateWindow int
	Count      int64
	Ratio      float64
}

// Service provides usage analytics use cases.
type Service struct {
	Events repository.UsageEventRepository
	Keys   repository.APIKeyRepository
}

// Summary returns the by-status counts and weighted average latency for
// one tenant over the window.
func (s *Service) Summary(ctx context.Context, tenantID string, from, to *time.Time) (*Summary, error) {
	start, end, err := NormalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	rows, err := s.Events.SummaryByStatus(ctx, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("summary by status: %w", err)
	}

	out := &Summary{FromTs: start, ToTs: end, ByStatus: make(map[int]int64, len(rows))}
	var total int64
	var weighted float64
	for _, row := range rows {
		out.ByStatus[row.StatusCode] = row.Count
		total += row.Count
		weighted += row.AvgLatency * float64(row.Count)
	}
	if total > 0 {
		out.AvgLatencyMS = round2(weighted / float64(total))
	}
	return out, nil
}

// TopEndpoints ranks the tenant's paths by request count, with a per-path
// error rate (status >= 400).
func (s *Service) TopEndpoints(ctx context.Context, tenantID string, from, to *time.Time, limit int) ([]EndpointUsage, error) {
	start, end, err := NormalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 10
	}
	if limit > EventsLimitMax {
		limit = EventsLimitMax
	}
	rows, err := s.Events.TopEndpoints(ctx, tenantID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("top endpoints: %w", err)
	}

	out := make([]EndpointUsage, 0, len(rows))
	for _, row := range rows {
		out = append(out, EndpointUsage{
			Path:      row.Path,
			Count:     row.Count,
			ErrorRate: errorRate(row.Errors, row.Count),
		})
	}
	return out, nil
}

// ByKey breaks the tenant's traffic down per API key.
func (s *Service) ByKey(ctx context.Context, tenantID string, from, to *time.Time) ([]KeyUsage, error) {
	start, end, err := NormalizeRange(from, to)
	if err != nil {
		return nil, err
	}
	rows, err := s.Events.CountByKey(ctx, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("count by key: %w", err)
	}

	out := make([]KeyUsage, 0, len(rows))
	for _, row := range rows {
		out = append(out, KeyUsage{
			APIKeyID:  row.APIKeyID,
			Count:     row.Count,
			ErrorRate: errorRate(row.Errors, row.Count),
		})
	}
	return out, nil
}

// StatusClasses sums the tenant's traffic into 2xx/4xx/5xx buckets.
func (s *Service) StatusClasses(ctx context.Context, tenantID string, from, to *time.Time) (repository.StatusClassTotals, time.Time, time.Time, error) {
	start, end, err := NormalizeRange(from, to)
	if err != nil {
		return repository.StatusClassTotals{}, time.Time{}, time.Time{}, err
	}
	totals, err := s.Events.StatusClasses(ctx, tenantID, start, end)
	if err != nil {
		return repository.StatusClassTotals{}, time.Time{}, time.Time{}, fmt.Errorf("status classes: %w", err)
	}
	return totals, start, end, nil
}

// ListEvents returns raw events newest first. Limit is clamped to
// [1, 200]; negative offsets read from the beginning.
func (s *Service) ListEvents(ctx context.Context, limit, offset int) ([]*entity.UsageEvent, error) {
	if limit < 1 {
		limit = EventsLimitDefault
	}
	if limit > EventsLimitMax {
		limit = EventsLimitMax
	}
	if offset < 0 {
		offset = 0
	}
	events, err := s.Events.ListEvents(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// NearQuota scans all active keys and reports those whose event count in
// their own rate window has reached threshold of their limit.
// Threshold must be in (0, 1].
func (s *Service) NearQuota(ctx context.Context, threshold float64) ([]NearQuotaKey, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, &entity.ValidationError{Field: "threshold", Message: "must be in (0, 1]"}
	}
	keys, err := s.Keys.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active keys: %w", err)
	}

	now := time.Now().UTC()
	out := make([]NearQuotaKey, 0)
	for _, key := range keys {
		if key.RateLimit <= 0 || key.RateWindow <= 0 {
			continue
		}
		since := now.Add(-time.Duration(key.RateWindow) * time.Second)
		count, err := s.Events.CountForKey(ctx, key.ID, since)
		if err != nil {
			return nil, fmt.Errorf("count for key: %w", err)
		}
		ratio := float64(count) / float64(key.RateLimit)
		if ratio >= threshold {
			out = append(out, NearQuotaKey{
				APIKeyID:   key.ID,
				TenantID:   key.TenantID,
				RateLimit:  key.RateLimit,
				RateWindow: key.RateWindow,
				Count:      count,
				Ratio:      round2(ratio),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ratio > out[j].Ratio })
	return out, nil
}

func errorRate(errors, count int64) float64 {
	if count == 0 {
		return 0
	}
	return round2(float64(errors) / float64(count))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
