// Package abuse implements the traffic analytics behind the admin abuse
// surface: unauthenticated traffic aggregation, the canonical suspect
// query, rate-limited views and the per-IP timeline.
package abuse

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tollgate/internal/domain/entity"
	"tollgate/internal/repository"
)

// Clamp bounds for the abuse queries. Out-of-range parameters are pulled
// into range rather than rejected; zero means "use the default".
const (
	WindowMinutesDefault = 60
	WindowMinutesMax     = 1440

	MinUnauthDefault = 10
	MinUnauthMax     = 1_000_000

	LimitDefault = 50
	LimitMax     = 200

	topPathsPerSuspect = 3
)

// SuspectQuery parameterizes the suspect scan.
type SuspectQuery struct {
	WindowMinutes int
	MinUnauth401  int
	Limit         int
}

// PathHit is one path observed from a suspect IP.
type PathHit struct {
	Path  string
	Count int64
}

// Suspect is one client IP crossing the unauthenticated 401 threshold.
type Suspect struct {
	ClientIP  string
	Unauth401 int64
	FirstSeen time.Time
	LastSeen  time.Time
	TopPaths  []PathHit
}

// SuspectReport is the result of one suspect scan, echoing the clamped
// parameters actually used.
type SuspectReport struct {
	WindowMinutes int
	MinUnauth401  int
	From          time.Time
	To            time.Time
	Suspects      []Suspect
}

// Timeline is the per-IP drill-down: status breakdown, busiest paths and
// the most recent raw events.
type Timeline struct {
	ClientIP      string
	WindowMinutes int
	From          time.Time
	To            time.Time
	Statuses      []repository.StatusCount
	TopPaths      []repository.PathCount
	LastEvents    []*entity.UsageEvent
}

// Service provides abuse detection use cases.
type Service struct {
	Events repository.UsageEventRepository
}

// UnauthTraffic aggregates unauthenticated rows by client IP over the
// window, busiest first.
func (s *Service) UnauthTraffic(ctx context.Context, windowMinutes, limit int) ([]repository.IPCount, int, error) {
	windowMinutes = clamp(windowMinutes, WindowMinutesDefault, 1, WindowMinutesMax)
	limit = clamp(limit, LimitDefault, 1, LimitMax)

	to := time.Now().UTC()
	from := to.Add(-time.Duration(windowMinutes) * time.Minute)
	rows, err := s.Events.UnauthByIP(ctx, from, to, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("unauth by ip: %w", err)
	}
	return rows, windowMinutes, nil
}

// Suspects runs the canonical suspect query and attributes the top paths
// per suspect IP.
func (s *Service) Suspects(ctx context.Context, q SuspectQuery) (*SuspectReport, error) {
	windowMinutes := clamp(q.WindowMinutes, WindowMinutesDefault, 1, WindowMinutesMax)
	minUnauth := clamp(q.MinUnauth401, MinUnauthDefault, 1, MinUnauthMax)
	limit := clamp(q.Limit, LimitDefault, 1, LimitMax)

	to := time.Now().UTC()
	from := to.Add(-time.Duration(windowMinutes) * time.Minute)

	ips, err := s.Events.SuspectIPs(ctx, from, to, int64(minUnauth), limit)
	if err != nil {
		return nil, fmt.Errorf("suspect ips: %w", err)
	}

	report := &SuspectReport{
		WindowMinutes: windowMinutes,
		MinUnauth401:  minUnauth,
		From:          from,
		To:            to,
		Suspects:      make([]Suspect, 0, len(ips)),
	}
	if len(ips) == 0 {
		return report, nil
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.ClientIP)
	}
	pathRows, err := s.Events.SuspectPaths(ctx, from, to, addrs)
	if err != nil {
		return nil, fmt.Errorf("suspect paths: %w", err)
	}

	// 行は (client_ip, count desc) 順。IPごとに先頭3件だけ拾う
	topPaths := make(map[string][]PathHit, len(ips))
	for _, row := range pathRows {
		hits := topPaths[row.ClientIP]
		if len(hits) >= topPathsPerSuspect {
			continue
		}
		topPaths[row.ClientIP] = append(hits, PathHit{Path: row.Path, Count: row.Count})
	}

	for _, ip := range ips {
		report.Suspects = append(report.Suspects, Suspect{
			ClientIP:  ip.ClientIP,
			Unauth401: ip.Count,
			FirstSeen: ip.FirstTs,
			LastSeen:  ip.LastTs,
			TopPaths:  topPaths[ip.ClientIP],
		})
	}
	return report, nil
}

// RateLimited aggregates 429 rows by client IP. An empty tenantID means
// the global view.
func (s *Service) RateLimited(ctx context.Context, tenantID string, windowMinutes, limit int) ([]repository.IPCount, int, error) {
	windowMinutes = clamp(windowMinutes, WindowMinutesDefault, 1, WindowMinutesMax)
	limit = clamp(limit, LimitDefault, 1, LimitMax)

	to := time.Now().UTC()
	from := to.Add(-time.Duration(windowMinutes) * time.Minute)
	rows, err := s.Events.RateLimitedByIP(ctx, tenantID, from, to, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("rate limited by ip: %w", err)
	}
	return rows, windowMinutes, nil
}

// IPTimeline builds the drill-down for one client IP. The three queries
// are independent and run concurrently.
func (s *Service) IPTimeline(ctx context.Context, clientIP string, windowMinutes, lastN int) (*Timeline, error) {
	if clientIP == "" {
		return nil, &entity.ValidationError{Field: "client_ip", Message: "is required"}
	}
	windowMinutes = clamp(windowMinutes, WindowMinutesDefault, 1, WindowMinutesMax)
	lastN = clamp(lastN, 20, 1, LimitMax)

	to := time.Now().UTC()
	from := to.Add(-time.Duration(windowMinutes) * time.Minute)

	timeline := &Timeline{
		ClientIP:      clientIP,
		WindowMinutes: windowMinutes,
		From:          from,
		To:            to,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.Events.StatusesForIP(gctx, clientIP, from, to)
		if err != nil {
			return fmt.Errorf("statuses for ip: %w", err)
		}
		timeline.Statuses = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.Events.TopPathsForIP(gctx, clientIP, from, to, 10)
		if err != nil {
			return fmt.Errorf("top paths for ip: %w", err)
		}
		timeline.TopPaths = rows
		return nil
	})
	g.Go(func() error {
		events, err := s.Events.LastEventsForIP(gctx, clientIP, from, to, lastN)
		if err != nil {
			return fmt.Errorf("last events for ip: %w", err)
		}
		timeline.LastEvents = events
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return timeline, nil
}

// clamp pulls v into [min, max], substituting def when v is zero or
// negative.
func clamp(v, def, min, max int) int {
	if v <= 0 {
		v = def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
