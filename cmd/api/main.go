package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"tollgate/internal/blocklist"
	"tollgate/internal/config"
	"tollgate/internal/infra/adapter/persistence/postgres"
	"tollgate/internal/infra/db"
	"tollgate/internal/infra/kv"
	"tollgate/internal/infra/sweeper"
	"tollgate/internal/observability/logging"
	"tollgate/internal/observability/metrics"
	"tollgate/internal/observability/tracing"
	"tollgate/internal/resilience/circuitbreaker"
	"tollgate/pkg/ratelimit"

	abuseUC "tollgate/internal/usecase/abuse"
	keyUC "tollgate/internal/usecase/apikey"
	autoblockUC "tollgate/internal/usecase/autoblock"
	tenantUC "tollgate/internal/usecase/tenant"
	usageUC "tollgate/internal/usecase/usage"

	hhttp "tollgate/internal/handler/http"
	"tollgate/internal/handler/http/admin"
	"tollgate/internal/handler/http/auth"
	"tollgate/internal/handler/http/requestid"
)

// @title           Tollgate API Gateway
// @version         1.0
// @description     APIキー認証・レート制限・IPブロックリストを備えた API ゲートウェイ
// @description     テナントとAPIキーの管理、利用状況の集計、不正アクセス分析機能を提供します。

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description APIキーによる認証。ヘッダーに "Bearer {api_key}" 形式で指定してください。

// @securityDefinitions.apikey AdminToken
// @in header
// @name X-Admin-Token
// @description 管理エンドポイント用の共有トークン。

func main() {
	logger := logging.NewLogger()

	cfg := loadSettings(logger)
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	kvClient := kv.Open()
	defer func() {
		if err := kvClient.Close(); err != nil {
			logger.Error("failed to close redis client", slog.Any("error", err))
		}
	}()

	version := getVersion()
	components := setupServer(logger, cfg, database, kvClient, version)

	runServer(logger, cfg, components, database, version)
}

// loadSettings loads and validates the runtime configuration. The process
// refuses to start on a missing admin token or database URL.
func loadSettings(logger *slog.Logger) *config.Settings {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	return cfg
}

// initDatabase opens the database connection and runs migrations.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// ServerComponents holds components needed for server operation and cleanup.
type ServerComponents struct {
	Handler http.Handler
	Sweeper *sweeper.Sweeper
}

// setupServer wires the stores, use cases, routes and middleware chain.
func setupServer(logger *slog.Logger, cfg *config.Settings, database *sql.DB, kvClient *redis.Client, version string) *ServerComponents {
	// Redis を共有する二つのホットパスは別々のブレーカーで隔離する
	limiterBreaker := circuitbreaker.New(circuitbreaker.KVConfig("ratelimit"))
	blocklistBreaker := circuitbreaker.New(circuitbreaker.KVConfig("blocklist"))

	limiter := ratelimit.NewFixedWindow(kvClient, ratelimit.Config{
		Metrics: ratelimit.PromMetrics{},
		Breaker: limiterBreaker,
	})
	blockStore := blocklist.NewStore(kvClient, blocklist.Config{Breaker: blocklistBreaker})

	tenantRepo := postgres.NewTenantRepo(database)
	keyRepo := postgres.NewAPIKeyRepo(database)
	usageRepo := postgres.NewUsageEventRepo(database)

	tenantSvc := &tenantUC.Service{Repo: tenantRepo}
	keySvc := &keyUC.Service{Keys: keyRepo, Tenants: tenantRepo}
	usageSvc := &usageUC.Service{Events: usageRepo, Keys: keyRepo}
	abuseSvc := &abuseUC.Service{Events: usageRepo}
	autoblockSvc := &autoblockUC.Service{
		Suspects:       abuseSvc,
		Blocker:        blockStore,
		Logger:         logger,
		Enabled:        cfg.EnableAutoBlock,
		AllowLocalhost: cfg.AllowBlockLocalhost,
	}

	resolver := &auth.Resolver{
		Keys:              keyRepo,
		Limiter:           limiter,
		Logger:            logger,
		DefaultRateLimit:  cfg.RateLimitRequests,
		DefaultRateWindow: cfg.RateLimitWindowSeconds,
	}
	guard := auth.NewAdminGuard(cfg.AdminToken, logger)

	mux := http.NewServeMux()

	// ヘルスチェックエンドポイント(認証不要)
	mux.Handle("/health", &hhttp.HealthHandler{DB: database, KV: kvClient, Version: version})
	mux.Handle("/ready", &hhttp.ReadyHandler{DB: database})
	mux.Handle("/live", &hhttp.LiveHandler{})
	mux.Handle("/metrics", hhttp.MetricsHandler())

	// 認証が必要な保護ルート
	mux.Handle("/protected", resolver.Middleware(&hhttp.ProtectedHandler{}))

	admin.Register(mux, admin.Deps{
		Guard:     guard,
		Tenants:   tenantSvc,
		Keys:      keySvc,
		Usage:     usageSvc,
		Abuse:     abuseSvc,
		AutoBlock: autoblockSvc,
		Blocklist: blockStore,
	})

	usageCapture := hhttp.NewUsageCapture(usageRepo, logger, cfg.UsageExcludePrefixes)
	handler := applyMiddleware(logger, mux, blockStore, usageCapture)

	var sw *sweeper.Sweeper
	if cfg.EnableAutoBlock && cfg.SweepSpec != "" {
		sw = sweeper.New(autoblockSvc, logger, sweeper.Config{
			Spec:          cfg.SweepSpec,
			WindowMinutes: cfg.SweepWindowMinutes,
			MinUnauth401:  cfg.SweepMinUnauth401,
			TTLSeconds:    cfg.SweepTTLSeconds,
			Limit:         cfg.SweepLimit,
		})
	}

	logger.Info("gateway configured",
		slog.Int("default_rate_limit", cfg.RateLimitRequests),
		slog.Int("default_rate_window_seconds", cfg.RateLimitWindowSeconds),
		slog.Bool("auto_block_enabled", cfg.EnableAutoBlock),
		slog.Bool("sweep_scheduled", sw != nil),
	)

	return &ServerComponents{Handler: handler, Sweeper: sw}
}

// applyMiddleware wraps the handler with the gateway middleware chain.
// Order outermost-first: BlockCheck → Timeout → Request ID → Tracing →
// Recovery → Logging → Input Validation → Usage Capture → Metrics. The
// block check sits outermost so blocklisted traffic is rejected before any
// other work; recovery runs inside the timeout goroutine so panics in
// handlers still land as 500s; the usage capture sits inside recovery so
// panics still produce a usage event.
func applyMiddleware(logger *slog.Logger, handler http.Handler, blockStore *blocklist.Store, usageCapture *hhttp.UsageCapture) http.Handler {
	chain := handler

	// Apply in reverse order (innermost to outermost)
	chain = hhttp.MetricsMiddleware(chain)
	chain = usageCapture.Middleware(chain)
	chain = hhttp.InputValidation()(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	chain = tracing.Middleware(chain)
	chain = requestid.Middleware(chain)
	chain = hhttp.Timeout(30 * time.Second)(chain)
	chain = hhttp.BlockCheck(blockStore, logger)(chain)

	return chain
}

// runServer starts the HTTP server, the sweep scheduler and the pool stats
// updater, then handles graceful shutdown.
func runServer(logger *slog.Logger, cfg *config.Settings, components *ServerComponents, database *sql.DB, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go updateDBPoolStats(ctx, database)

	if components.Sweeper != nil {
		if err := components.Sweeper.Start(); err != nil {
			logger.Error("failed to start auto-block sweep", slog.Any("error", err))
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           components.Handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.Addr()),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Stop the sweep scheduler and wait for any in-flight run
	if components.Sweeper != nil {
		<-components.Sweeper.Stop().Done()
		logger.Debug("auto-block sweep stopped")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}

// updateDBPoolStats periodically exports connection pool gauges.
func updateDBPoolStats(ctx context.Context, database *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := database.Stats()
			metrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
		}
	}
}
