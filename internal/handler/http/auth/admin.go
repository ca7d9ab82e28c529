package auth

import (
	"log/slog"
	"net/http"
	"sync"

	httphandler "tollgate/internal/handler/http"
	"tollgate/internal/handler/http/respond"
	"tollgate/pkg/credential"

	"golang.org/x/time/rate"
)

// AdminTokenHeader carries the shared admin credential.
const AdminTokenHeader = "X-Admin-Token"

// AdminGuard authenticates the admin surface with a shared token and
// throttles repeated failures per client IP to slow brute forcing.
type AdminGuard struct {
	Token  string
	Logger *slog.Logger

	mu       sync.Mutex
	failures map[string]*rate.Limiter
}

// failedAttemptLimit allows 10 failed attempts per minute per IP with a
// burst of 10. Successful requests never consume the budget, but once an
// IP has exhausted it, every attempt from that IP waits for the refill,
// valid token or not.
var failedAttemptLimit = rate.Limit(10.0 / 60.0)

// NewAdminGuard builds the guard. Token must be non-empty; main refuses
// to start without one.
func NewAdminGuard(token string, logger *slog.Logger) *AdminGuard {
	return &AdminGuard{
		Token:    token,
		Logger:   logger,
		failures: make(map[string]*rate.Limiter),
	}
}

// Middleware wraps next with the admin token check.
func (g *AdminGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httphandler.ClientIP(r)

		if !g.allowAttempt(ip) {
			respond.Detail(w, http.StatusTooManyRequests, "Too many failed authentication attempts")
			return
		}

		token := r.Header.Get(AdminTokenHeader)
		if token == "" || !credential.Equal(token, g.Token) {
			g.recordFailure(ip)
			g.Logger.Warn("admin authentication failed",
				slog.String("client_ip", ip),
				slog.String("path", r.URL.Path),
			)
			respond.Detail(w, http.StatusUnauthorized, "Invalid admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allowAttempt reports whether the IP is still within its failed-attempt
// budget. IPs with no failure history always pass.
func (g *AdminGuard) allowAttempt(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	limiter, ok := g.failures[ip]
	if !ok {
		return true
	}
	return limiter.Tokens() >= 1
}

// recordFailure consumes one token from the IP's failed-attempt budget.
func (g *AdminGuard) recordFailure(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	limiter, ok := g.failures[ip]
	if !ok {
		limiter = rate.NewLimiter(failedAttemptLimit, 10)
		g.failures[ip] = limiter
	}
	limiter.Allow()
}
