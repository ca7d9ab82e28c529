package entity

import "time"

// Default rate limit configuration applied to newly issued keys.
const (
	DefaultRateLimit  = 10
	DefaultRateWindow = 60

	// Bounds accepted by the admin limits endpoint.
	RateLimitMax  = 1_000_000
	RateWindowMax = 86_400
)

// APIKey is an issued client credential. Only the SHA-256 fingerprint of
// the plaintext is stored; the plaintext exists solely in the issuance
// response.
type APIKey struct {
	ID        string
	TenantID  string
	KeyHash   string
	KeyPrefix string

	// Per-key rate limit: RateLimit requests per RateWindow seconds.
	RateLimit  int
	RateWindow int

	RevokedAt *time.Time
	CreatedAt time.Time
}

// Usable reports whether the key can authenticate requests.
// Revocation is a one-way transition.
func (k *APIKey) Usable() bool {
	return k.RevokedAt == nil
}

// Tier is a named rate limit preset.
type Tier struct {
	Name       string
	RateLimit  int
	RateWindow int
}

// Tiers maps tier names to their rate limit presets.
var Tiers = map[string]Tier{
	"free":       {Name: "free", RateLimit: 10, RateWindow: 60},
	"pro":        {Name: "pro", RateLimit: 120, RateWindow: 60},
	"enterprise": {Name: "enterprise", RateLimit: 600, RateWindow: 60},
}

// ValidateRateLimits checks the bounds accepted for per-key overrides.
func ValidateRateLimits(limit, window int) error {
	if limit < 1 || limit > RateLimitMax {
		return &ValidationError{Field: "rate_limit", Message: "must be between 1 and 1000000"}
	}
	if window < 1 || window > RateWindowMax {
		return &ValidationError{Field: "rate_window", Message: "must be between 1 and 86400"}
	}
	return nil
}
