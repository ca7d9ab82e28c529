package entity

import "time"

// UsageEvent is an immutable, append-only record of one processed HTTP
// request. TenantID and APIKeyID are nil for unauthenticated traffic;
// when TenantID is nil, APIKeyID must also be nil. All other fields are
// written as empty strings when unknown, never null. Ts is UTC.
type UsageEvent struct {
	ID         string
	TenantID   *string
	APIKeyID   *string
	Method     string
	Path       string
	StatusCode int
	LatencyMS  int64
	Ts         time.Time
	RequestID  string
	ClientIP   string
	UserAgent  string
}
