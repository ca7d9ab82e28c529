// Package auth implements the gateway's two authentication surfaces:
// the bearer credential resolver that guards protected routes and the
// admin token check that guards the /admin surface.
package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	httphandler "tollgate/internal/handler/http"
	"tollgate/internal/handler/http/authctx"
	"tollgate/internal/handler/http/respond"
	"tollgate/internal/repository"
	"tollgate/pkg/credential"
	"tollgate/pkg/ratelimit"
)

// Resolver authenticates bearer credentials and enforces the per-key
// rate limit on protected routes.
type Resolver struct {
	Keys    repository.APIKeyRepository
	Limiter ratelimit.Limiter
	Logger  *slog.Logger

	// Defaults applied when a key carries no per-key override.
	DefaultRateLimit  int
	DefaultRateWindow int
}

// Middleware wraps next with credential resolution and rate limiting.
//
// The resolved identity is attached to the request context before the
// revocation check, so revoked-key rejections still land in the usage
// log attributed to their tenant.
func (rv *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		plain := bearerToken(r)
		if plain == "" {
			httphandler.RecordAuthFailure("missing")
			respond.Detail(w, http.StatusUnauthorized, "Missing API key")
			return
		}

		key, err := rv.Keys.GetByHash(r.Context(), credential.Hash(plain))
		if err != nil {
			rv.Logger.Error("credential lookup failed", slog.String("error", err.Error()))
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}
		if key == nil {
			httphandler.RecordAuthFailure("invalid")
			respond.Detail(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		// 失効チェックより先に識別子をコンテキストへ載せる
		authctx.Set(r.Context(), authctx.Identity{
			APIKeyID: key.ID,
			TenantID: key.TenantID,
		})

		if !key.Usable() {
			httphandler.RecordAuthFailure("revoked")
			respond.Detail(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		limit, window := key.RateLimit, key.RateWindow
		if limit <= 0 {
			limit = rv.DefaultRateLimit
		}
		if window <= 0 {
			window = rv.DefaultRateWindow
		}

		decision, err := rv.Limiter.Allow(r.Context(), key.ID, limit, time.Duration(window)*time.Second)
		if err != nil {
			rv.Logger.Error("rate limit check failed",
				slog.String("api_key_id", key.ID),
				slog.String("error", err.Error()),
			)
			respond.SafeError(w, http.StatusInternalServerError, err)
			return
		}

		// 429でもヘッダーは常に返す
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset, 10))

		if !decision.Allowed {
			respond.Detail(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the credential from the Authorization header.
// Returns "" for a missing header, a non-Bearer scheme, or a blank token.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
