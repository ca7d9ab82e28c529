package admin

import (
	"time"

	"tollgate/internal/domain/entity"
)

type tenantDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// issuedKeyDTO carries the plaintext exactly once, at issuance.
type issuedKeyDTO struct {
	KeyID     string `json:"key_id"`
	TenantID  string `json:"tenant_id"`
	KeyPrefix string `json:"key_prefix"`
	APIKey    string `json:"api_key"`
}

type keyDTO struct {
	ID         string     `json:"id"`
	KeyPrefix  string     `json:"key_prefix"`
	RateLimit  int        `json:"rate_limit"`
	RateWindow int        `json:"rate_window"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

func toKeyDTO(k *entity.APIKey) keyDTO {
	return keyDTO{
		ID:         k.ID,
		KeyPrefix:  k.KeyPrefix,
		RateLimit:  k.RateLimit,
		RateWindow: k.RateWindow,
		CreatedAt:  k.CreatedAt,
		RevokedAt:  k.RevokedAt,
	}
}

type revokeDTO struct {
	Status string `json:"status"`
	KeyID  string `json:"key_id"`
}

type limitsDTO struct {
	KeyID      string `json:"key_id"`
	RateLimit  int    `json:"rate_limit"`
	RateWindow int    `json:"rate_window"`
}

type tierDTO struct {
	KeyID      string `json:"key_id"`
	Tier       string `json:"tier"`
	RateLimit  int    `json:"rate_limit"`
	RateWindow int    `json:"rate_window"`
}

type summaryDTO struct {
	FromTs       time.Time     `json:"from_ts"`
	ToTs         time.Time     `json:"to_ts"`
	ByStatus     map[int]int64 `json:"by_status"`
	AvgLatencyMS float64       `json:"avg_latency_ms"`
}

type endpointDTO struct {
	Path      string  `json:"path"`
	Count     int64   `json:"count"`
	ErrorRate float64 `json:"error_rate"`
}

type keyUsageDTO struct {
	APIKeyID  string  `json:"api_key_id"`
	Count     int64   `json:"count"`
	ErrorRate float64 `json:"error_rate"`
}

type statusClassesDTO struct {
	FromTs      time.Time `json:"from_ts"`
	ToTs        time.Time `json:"to_ts"`
	Success     int64     `json:"2xx"`
	ClientError int64     `json:"4xx"`
	ServerError int64     `json:"5xx"`
}

type eventDTO struct {
	ID         string    `json:"id"`
	TenantID   *string   `json:"tenant_id"`
	APIKeyID   *string   `json:"api_key_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	LatencyMS  int64     `json:"latency_ms"`
	Ts         time.Time `json:"ts"`
	RequestID  string    `json:"request_id"`
	ClientIP   string    `json:"client_ip"`
	UserAgent  string    `json:"user_agent"`
}

func toEventDTO(e *entity.UsageEvent) eventDTO {
	return eventDTO{
		ID:         e.ID,
		TenantID:   e.TenantID,
		APIKeyID:   e.APIKeyID,
		Method:     e.Method,
		Path:       e.Path,
		StatusCode: e.StatusCode,
		LatencyMS:  e.LatencyMS,
		Ts:         e.Ts,
		RequestID:  e.RequestID,
		ClientIP:   e.ClientIP,
		UserAgent:  e.UserAgent,
	}
}

type nearQuotaDTO struct {
	APIKeyID   string  `json:"api_key_id"`
	TenantID   string  `json:"tenant_id"`
	RateLimit  int     `json:"rate_limit"`
	RateWindow int     `json:"rate_window"`
	Count      int64   `json:"count"`
	Ratio      float64 `json:"ratio"`
}

type ipCountDTO struct {
	ClientIP string    `json:"client_ip"`
	Count    int64     `json:"count"`
	FirstTs  time.Time `json:"first_ts"`
	LastTs   time.Time `json:"last_ts"`
}

type pathHitDTO struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

type suspectDTO struct {
	ClientIP  string       `json:"client_ip"`
	Unauth401 int64        `json:"unauth_401"`
	FirstSeen time.Time    `json:"first_seen"`
	LastSeen  time.Time    `json:"last_seen"`
	TopPaths  []pathHitDTO `json:"top_paths"`
}

type statusCountDTO struct {
	StatusCode int   `json:"status_code"`
	Count      int64 `json:"count"`
}

type blockedIPDTO struct {
	ClientIP       string `json:"client_ip"`
	BlockID        string `json:"block_id,omitempty"`
	ReasonCode     string `json:"reason_code"`
	Reason         string `json:"reason"`
	TTLSeconds     *int64 `json:"ttl_seconds"`
	CreatedAtEpoch int64  `json:"created_at_epoch,omitempty"`
	ExpiresAtEpoch int64  `json:"expires_at_epoch,omitempty"`
}

func toBlockedIPDTO(b entity.BlockedIP) blockedIPDTO {
	return blockedIPDTO{
		ClientIP:       b.IP,
		BlockID:        b.Entry.BlockID,
		ReasonCode:     b.Entry.ReasonCode,
		Reason:         b.Entry.Reason,
		TTLSeconds:     b.TTLSeconds,
		CreatedAtEpoch: b.Entry.CreatedAtEpoch,
		ExpiresAtEpoch: b.Entry.ExpiresAtEpoch,
	}
}

type blockResultDTO struct {
	ClientIP       string `json:"client_ip"`
	BlockID        string `json:"block_id"`
	ReasonCode     string `json:"reason_code"`
	Reason         string `json:"reason"`
	TTLSeconds     int64  `json:"ttl_seconds"`
	CreatedAtEpoch int64  `json:"created_at_epoch"`
	ExpiresAtEpoch int64  `json:"expires_at_epoch"`
}

type unblockDTO struct {
	ClientIP     string `json:"client_ip"`
	KeyExisted   bool   `json:"key_existed"`
	IndexExisted bool   `json:"index_existed"`
}

type reportEntryDTO struct {
	IP             string `json:"ip"`
	ExpiresAtEpoch int64  `json:"expires_at_epoch"`
	State          string `json:"state"`
}

type blocksReportDTO struct {
	Active          int              `json:"active"`
	ExpiredRecently int              `json:"expired_recently"`
	Stale           int              `json:"stale"`
	RemovedStale    int              `json:"removed_stale"`
	Entries         []reportEntryDTO `json:"entries"`
}

type autoBlockedDTO struct {
	ClientIP   string `json:"client_ip"`
	Unauth401  int64  `json:"unauth_401"`
	BlockID    string `json:"block_id,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

type autoSkippedDTO struct {
	ClientIP string `json:"client_ip"`
	Reason   string `json:"reason"`
}

type autoBlockResultDTO struct {
	DryRun        bool             `json:"dry_run"`
	Actor         string           `json:"actor"`
	WindowMinutes int              `json:"window_minutes"`
	MinUnauth401  int              `json:"min_unauth_401"`
	Blocked       []autoBlockedDTO `json:"blocked"`
	Skipped       []autoSkippedDTO `json:"skipped"`
}
