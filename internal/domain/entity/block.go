package entity

// Reason codes attached to IP block entries. Anything outside this set is
// normalized to ReasonManual on write; legacy plain-string block values are
// read back as ReasonManual.
const (
	ReasonManual          = "manual"
	ReasonOperatorAction  = "operator_action"
	ReasonAutoUnauthSurge = "auto_unauth_401_surge"
	ReasonOneClick        = "one_click_suspects"
)

// NormalizeReasonCode maps unknown reason codes to ReasonManual.
func NormalizeReasonCode(code string) string {
	switch code {
	case ReasonManual, ReasonOperatorAction, ReasonAutoUnauthSurge, ReasonOneClick:
		return code
	default:
		return ReasonManual
	}
}

// BlockEntry is the JSON document stored under blk:ip:<ip>.
type BlockEntry struct {
	BlockID        string `json:"block_id"`
	ReasonCode     string `json:"reason_code"`
	Reason         string `json:"reason"`
	CreatedAtEpoch int64  `json:"created_at_epoch"`
	ExpiresAtEpoch int64  `json:"expires_at_epoch"`
}

// BlockedIP pairs a block entry with its address and remaining TTL as
// observed by a reader. TTLSeconds is nil when the backing key carries no
// expiry (legacy entries).
type BlockedIP struct {
	IP         string
	TTLSeconds *int64
	Entry      BlockEntry
}

// Block report classifications produced by index reconciliation.
const (
	BlockStateActive          = "active"
	BlockStateExpiredRecently = "expired_recently"
	BlockStateStale           = "stale"
)
