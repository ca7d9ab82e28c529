package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"tollgate/internal/blocklist"
	"tollgate/internal/handler/http/respond"
)

// blockedResponse is the 403 body returned for blocklisted client IPs.
type blockedResponse struct {
	Detail            string `json:"detail"`
	ClientIP          string `json:"client_ip"`
	BlockID           string `json:"block_id,omitempty"`
	ReasonCode        string `json:"reason_code"`
	Reason            string `json:"reason"`
	RetryAfterSeconds *int64 `json:"retry_after_seconds"`
	ExpiresAtEpoch    int64  `json:"expires_at_epoch,omitempty"`
}

// BlockCheck returns the outermost gateway middleware: it rejects requests
// from blocklisted client IPs with 403 before any other processing.
// Requests whose client IP cannot be determined skip the check.
func BlockCheck(store *blocklist.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			blocked, err := store.Details(r.Context(), ip)
			if err != nil {
				// ブロックリストが読めない場合は通さない
				logger.Error("blocklist lookup failed",
					slog.String("client_ip", ip),
					slog.String("error", err.Error()),
				)
				respond.SafeError(w, http.StatusInternalServerError, err)
				return
			}
			if blocked == nil {
				next.ServeHTTP(w, r)
				return
			}

			RecordBlockedRequest()
			logger.Warn("blocked request rejected",
				slog.String("client_ip", ip),
				slog.String("block_id", blocked.Entry.BlockID),
				slog.String("reason_code", blocked.Entry.ReasonCode),
			)

			if blocked.TTLSeconds != nil {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", *blocked.TTLSeconds))
			}
			respond.JSON(w, http.StatusForbidden, blockedResponse{
				Detail:            "IP temporarily blocked",
				ClientIP:          ip,
				BlockID:           blocked.Entry.BlockID,
				ReasonCode:        blocked.Entry.ReasonCode,
				Reason:            blocked.Entry.Reason,
				RetryAfterSeconds: blocked.TTLSeconds,
				ExpiresAtEpoch:    blocked.Entry.ExpiresAtEpoch,
			})
		})
	}
}
