// Package autoblock turns abuse suspects into live IP blocks. It is the
// single write path from the analytics side into the blocklist, shared by
// the admin endpoints and the periodic sweep.
package autoblock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tollgate/internal/domain/entity"
	"tollgate/internal/usecase/abuse"
)

// ErrDisabled is returned when auto blocking is switched off for the
// process.
var ErrDisabled = errors.New("auto-block is disabled")

// Actors attached to block events written by this package.
const (
	ActorAutoBlock = "auto_block"
	ActorOneClick  = "one_click"
	ActorSweep     = "sweep"
)

// DefaultTTL applies when the request carries no ttl_seconds.
const DefaultTTL = time.Hour

// Blocker is the blocklist write operation used for live runs.
// *blocklist.Store satisfies it.
type Blocker interface {
	Block(ctx context.Context, ip string, ttl time.Duration, reasonCode, reason, actor string) (entity.BlockEntry, error)
}

// Params parameterizes one auto-block run.
type Params struct {
	WindowMinutes    int
	MinUnauth401     int
	TTLSeconds       int
	Limit            int
	DryRun           bool
	IncludeLocalhost bool
}

// Blocked is one IP that was blocked, or would be in a dry run.
type Blocked struct {
	ClientIP   string
	Unauth401  int64
	BlockID    string
	TTLSeconds int64
}

// Skipped is one suspect that was not blocked, with the reason.
type Skipped struct {
	ClientIP string
	Reason   string
}

// Result reports one run. Blocked and Skipped are disjoint.
type Result struct {
	DryRun        bool
	Actor         string
	WindowMinutes int
	MinUnauth401  int
	Blocked       []Blocked
	Skipped       []Skipped
}

// Service runs the auto-block algorithm.
type Service struct {
	Suspects *abuse.Service
	Blocker  Blocker
	Logger   *slog.Logger

	// Enabled gates every run; disabled services reject with ErrDisabled.
	Enabled bool
	// AllowLocalhost permits blocking loopback addresses process-wide.
	AllowLocalhost bool
}

// Run computes suspects and blocks them. Loopback addresses are skipped
// unless the request or the process allows them; dry runs never touch the
// blocklist.
func (s *Service) Run(ctx context.Context, p Params, actor string) (*Result, error) {
	if !s.Enabled {
		return nil, ErrDisabled
	}

	report, err := s.Suspects.Suspects(ctx, abuse.SuspectQuery{
		WindowMinutes: p.WindowMinutes,
		MinUnauth401:  p.MinUnauth401,
		Limit:         p.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("compute suspects: %w", err)
	}

	ttl := DefaultTTL
	if p.TTLSeconds > 0 {
		ttl = time.Duration(p.TTLSeconds) * time.Second
	}
	reasonCode := entity.ReasonAutoUnauthSurge
	if actor == ActorOneClick {
		reasonCode = entity.ReasonOneClick
	}

	result := &Result{
		DryRun:        p.DryRun,
		Actor:         actor,
		WindowMinutes: report.WindowMinutes,
		MinUnauth401:  report.MinUnauth401,
		Blocked:       make([]Blocked, 0, len(report.Suspects)),
	}

	for _, suspect := range report.Suspects {
		if isLoopback(suspect.ClientIP) && !p.IncludeLocalhost && !s.AllowLocalhost {
			result.Skipped = append(result.Skipped, Skipped{
				ClientIP: suspect.ClientIP,
				Reason:   "localhost",
			})
			continue
		}

		blocked := Blocked{
			ClientIP:   suspect.ClientIP,
			Unauth401:  suspect.Unauth401,
			TTLSeconds: int64(ttl / time.Second),
		}
		if !p.DryRun {
			reason := fmt.Sprintf("%d unauthenticated 401s in %d minutes",
				suspect.Unauth401, report.WindowMinutes)
			entry, err := s.Blocker.Block(ctx, suspect.ClientIP, ttl, reasonCode, reason, actor)
			if err != nil {
				return nil, fmt.Errorf("block %s: %w", suspect.ClientIP, err)
			}
			blocked.BlockID = entry.BlockID
			if s.Logger != nil {
				s.Logger.Info("auto-blocked IP",
					"client_ip", suspect.ClientIP,
					"block_id", entry.BlockID,
					"actor", actor,
					"unauth_401", suspect.Unauth401,
				)
			}
		}
		result.Blocked = append(result.Blocked, blocked)
	}
	return result, nil
}

// OneClick runs the preset one-click variant: top N suspects with the
// default detection thresholds.
func (s *Service) OneClick(ctx context.Context, topN, ttlSeconds int, dryRun, includeLocalhost bool) (*Result, error) {
	return s.Run(ctx, Params{
		Limit:            topN,
		TTLSeconds:       ttlSeconds,
		DryRun:           dryRun,
		IncludeLocalhost: includeLocalhost,
	}, ActorOneClick)
}

func isLoopback(ip string) bool {
	return ip == "127.0.0.1" || ip == "::1"
}
