package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tollgate/internal/domain/entity"
	"tollgate/internal/handler/http/authctx"
	"tollgate/internal/handler/http/requestid"
	"tollgate/internal/handler/http/responsewriter"
	"tollgate/internal/repository"

	"github.com/google/uuid"
)

// DefaultUsageExcludePrefixes are the path prefixes never recorded in the
// usage log. Admin and operational traffic is not tenant usage.
var DefaultUsageExcludePrefixes = []string{
	"/admin",
	"/health",
	"/metrics",
	"/swagger",
	"/docs",
	"/openapi.json",
}

// UsageCapture records one append-only usage event per processed request.
// The event is written after the response is complete, on every exit path
// including panics, and a failed write never alters the response.
type UsageCapture struct {
	Repo            repository.UsageEventRepository
	Logger          *slog.Logger
	ExcludePrefixes []string
}

// NewUsageCapture builds the capture middleware. A nil or empty prefix
// list falls back to DefaultUsageExcludePrefixes.
func NewUsageCapture(repo repository.UsageEventRepository, logger *slog.Logger, excludePrefixes []string) *UsageCapture {
	if len(excludePrefixes) == 0 {
		excludePrefixes = DefaultUsageExcludePrefixes
	}
	return &UsageCapture{
		Repo:            repo,
		Logger:          logger,
		ExcludePrefixes: excludePrefixes,
	}
}

// Middleware wraps next with usage event capture.
func (uc *UsageCapture) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uc.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// 後段の credential resolver が埋めるスロットを用意する
		ctx := authctx.WithHolder(r.Context())
		r = r.WithContext(ctx)

		wrapped := responsewriter.Wrap(w)
		start := time.Now()

		defer func() {
			status := wrapped.StatusCode()
			if rec := recover(); rec != nil {
				// The recover middleware further up the chain writes the
				// 500 response; record it here and re-raise.
				uc.record(ctx, r, http.StatusInternalServerError, start)
				panic(rec)
			}
			uc.record(ctx, r, status, start)
		}()

		next.ServeHTTP(wrapped, r)
	})
}

func (uc *UsageCapture) excluded(path string) bool {
	for _, prefix := range uc.ExcludePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// record appends one usage event. The insert runs on its own pooled
// session with cancellation detached from the request, so a client
// disconnect cannot drop the audit row.
func (uc *UsageCapture) record(ctx context.Context, r *http.Request, status int, start time.Time) {
	event := &entity.UsageEvent{
		ID:         uuid.New().String(),
		Method:     r.Method,
		Path:       r.URL.Path,
		StatusCode: status,
		LatencyMS:  time.Since(start).Milliseconds(),
		Ts:         time.Now().UTC(),
		RequestID:  requestid.FromContext(ctx),
		ClientIP:   ClientIP(r),
		UserAgent:  r.Header.Get("User-Agent"),
	}

	if id := authctx.FromContext(ctx); id != nil {
		tenantID := id.TenantID
		apiKeyID := id.APIKeyID
		event.TenantID = &tenantID
		event.APIKeyID = &apiKeyID
	}

	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := uc.Repo.Insert(insertCtx, event); err != nil {
		RecordUsageWriteFailure()
		uc.Logger.Error("usage event write failed",
			slog.String("request_id", event.RequestID),
			slog.String("method", event.Method),
			slog.String("path", event.Path),
			slog.Int("status", event.StatusCode),
			slog.String("error", err.Error()),
		)
	}
}
