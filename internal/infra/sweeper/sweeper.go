// Package sweeper runs the auto-block algorithm on a cron schedule, so
// unauthenticated surges get blocked without an operator pressing the
// button.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	gwhttp "tollgate/internal/handler/http"
	"tollgate/internal/handler/http/respond"
	"tollgate/internal/observability/metrics"
	autoblockUC "tollgate/internal/usecase/autoblock"
)

// Runner is the auto-block entry point the sweep invokes.
// *autoblock.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, p autoblockUC.Params, actor string) (*autoblockUC.Result, error)
}

// Config holds the sweep schedule and detection parameters.
type Config struct {
	// Spec is the cron expression. An empty spec disables the sweep.
	Spec string

	WindowMinutes int
	MinUnauth401  int
	TTLSeconds    int
	Limit         int

	// Timeout bounds one sweep run. Default 30s.
	Timeout time.Duration
}

// Sweeper schedules periodic auto-block runs.
type Sweeper struct {
	runner Runner
	logger *slog.Logger
	cfg    Config
	cron   *cron.Cron
}

// New creates a sweeper. Zero-value detection parameters fall back to
// the abuse package defaults at run time.
func New(runner Runner, logger *slog.Logger, cfg Config) *Sweeper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Sweeper{runner: runner, logger: logger, cfg: cfg}
}

// Start registers the cron job and begins scheduling. Returns an error
// when the cron expression does not parse.
func (s *Sweeper) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			// 機密情報をマスクしてログ出力
			s.logger.Error("auto-block sweep failed", slog.Any("error", respond.SanitizeError(err)))
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("auto-block sweep started", slog.String("schedule", s.cfg.Spec))
	return nil
}

// Stop stops the scheduler. The returned context is done once any
// in-flight run has finished.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		done := make(chan struct{})
		close(done)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

// RunOnce executes a single live sweep and records its metrics.
func (s *Sweeper) RunOnce(ctx context.Context) (*autoblockUC.Result, error) {
	start := time.Now()
	result, err := s.runner.Run(ctx, autoblockUC.Params{
		WindowMinutes: s.cfg.WindowMinutes,
		MinUnauth401:  s.cfg.MinUnauth401,
		TTLSeconds:    s.cfg.TTLSeconds,
		Limit:         s.cfg.Limit,
	}, autoblockUC.ActorSweep)
	if err != nil {
		metrics.RecordSweepRun(false, time.Since(start), 0)
		return nil, err
	}

	metrics.RecordSweepRun(true, time.Since(start), len(result.Blocked))
	for range result.Blocked {
		gwhttp.RecordAutoBlock(autoblockUC.ActorSweep)
	}
	if len(result.Blocked) > 0 || len(result.Skipped) > 0 {
		s.logger.Info("auto-block sweep finished",
			slog.Int("blocked", len(result.Blocked)),
			slog.Int("skipped", len(result.Skipped)))
	}
	return result, nil
}
