// Package blocklist maintains the IP blocklist in Redis: one TTL key per
// blocked address, a sorted-set index keyed by expiry, and a capped event
// log. The three structures are written pipelined but not transactionally;
// readers reconcile partial visibility.
package blocklist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"tollgate/internal/domain/entity"
	"tollgate/internal/observability/metrics"
	"tollgate/internal/resilience/circuitbreaker"
)

const (
	keyPrefix = "blk:ip:"
	indexKey  = "blk:index"
	eventsKey = "blk:events"

	// eventsMax caps blk:events; LPUSH+LTRIM keeps the newest entries.
	eventsMax = 5000
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Event is one entry of the block event log. Entries that fail to parse
// are surfaced with EventType "unknown" and the raw payload.
type Event struct {
	EventType  string `json:"event_type"`
	IP         string `json:"ip,omitempty"`
	BlockID    string `json:"block_id,omitempty"`
	ReasonCode string `json:"reason_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Actor      string `json:"actor,omitempty"`
	AtEpoch    int64  `json:"at_epoch,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
	Raw        string `json:"raw,omitempty"`
}

// ReportEntry is one reconciled member of the expiry index.
type ReportEntry struct {
	IP             string
	ExpiresAtEpoch int64
	State          string
}

// Report summarizes index reconciliation. Stale members are evicted from
// the index as a side effect.
type Report struct {
	Entries         []ReportEntry
	Active          int
	ExpiredRecently int
	Stale           int
	RemovedStale    int
}

// UnblockResult reports which structures actually held the address.
type UnblockResult struct {
	KeyExisted   bool
	IndexExisted bool
}

// Store is the Redis-backed blocklist.
type Store struct {
	rdb     redis.Cmdable
	clock   Clock
	breaker *gobreaker.CircuitBreaker
}

// Config holds the optional collaborators of a Store.
type Config struct {
	Clock Clock
	// Breaker wraps the hot-path read (Details); admin operations hit
	// Redis directly so a tripped breaker never hides an explicit block.
	Breaker *gobreaker.CircuitBreaker
}

// NewStore creates a blocklist store over the given Redis client.
func NewStore(rdb redis.Cmdable, cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	return &Store{rdb: rdb, clock: cfg.Clock, breaker: cfg.Breaker}
}

// Block writes a block entry for ip with the given TTL. The entry key, the
// expiry index and the event log are written in one pipeline; they are not
// atomic together.
func (s *Store) Block(ctx context.Context, ip string, ttl time.Duration, reasonCode, reason, actor string) (entity.BlockEntry, error) {
	if ttl < time.Second {
		return entity.BlockEntry{}, fmt.Errorf("Block: ttl must be at least 1s")
	}
	now := s.clock.Now().Unix()
	entry := entity.BlockEntry{
		BlockID:        uuid.New().String(),
		ReasonCode:     entity.NormalizeReasonCode(reasonCode),
		Reason:         reason,
		CreatedAtEpoch: now,
		ExpiresAtEpoch: now + int64(ttl/time.Second),
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return entity.BlockEntry{}, fmt.Errorf("Block: marshal entry: %w", err)
	}
	eventPayload, err := json.Marshal(Event{
		EventType:  "block",
		IP:         ip,
		BlockID:    entry.BlockID,
		ReasonCode: entry.ReasonCode,
		Reason:     entry.Reason,
		Actor:      actor,
		AtEpoch:    now,
		TTLSeconds: int64(ttl / time.Second),
	})
	if err != nil {
		return entity.BlockEntry{}, fmt.Errorf("Block: marshal event: %w", err)
	}

	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+ip, payload, ttl)
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(entry.ExpiresAtEpoch), Member: ip})
		pipe.LPush(ctx, eventsKey, eventPayload)
		pipe.LTrim(ctx, eventsKey, 0, eventsMax-1)
		return nil
	})
	if err != nil {
		return entity.BlockEntry{}, fmt.Errorf("Block: %w", err)
	}
	metrics.RecordBlockEvent("block")
	return entry, nil
}

// Unblock removes the block for ip and logs an unblock event.
func (s *Store) Unblock(ctx context.Context, ip, actor string) (UnblockResult, error) {
	eventPayload, err := json.Marshal(Event{
		EventType: "unblock",
		IP:        ip,
		Actor:     actor,
		AtEpoch:   s.clock.Now().Unix(),
	})
	if err != nil {
		return UnblockResult{}, fmt.Errorf("Unblock: marshal event: %w", err)
	}

	var delCmd, zremCmd *redis.IntCmd
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, keyPrefix+ip)
		zremCmd = pipe.ZRem(ctx, indexKey, ip)
		pipe.LPush(ctx, eventsKey, eventPayload)
		pipe.LTrim(ctx, eventsKey, 0, eventsMax-1)
		return nil
	})
	if err != nil {
		return UnblockResult{}, fmt.Errorf("Unblock: %w", err)
	}
	metrics.RecordBlockEvent("unblock")
	return UnblockResult{
		KeyExisted:   delCmd.Val() > 0,
		IndexExisted: zremCmd.Val() > 0,
	}, nil
}

// Details returns the block entry for ip, or nil when not blocked. The
// read goes through the circuit breaker: this is the per-request hot path.
func (s *Store) Details(ctx context.Context, ip string) (*entity.BlockedIP, error) {
	var blocked *entity.BlockedIP
	err := circuitbreaker.Execute(s.breaker, func() error {
		val, err := s.rdb.Get(ctx, keyPrefix+ip).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		ttl, err := s.rdb.TTL(ctx, keyPrefix+ip).Result()
		if err != nil {
			return err
		}
		b := entity.BlockedIP{IP: ip, Entry: parseEntry(val)}
		if secs := int64(ttl / time.Second); ttl > 0 {
			b.TTLSeconds = &secs
		}
		blocked = &b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Details: %w", err)
	}
	return blocked, nil
}

// List scans all active block keys. Results are ordered by remaining TTL
// ascending, entries without an expiry last.
func (s *Store) List(ctx context.Context, limit int) ([]entity.BlockedIP, error) {
	if limit < 1 {
		limit = 100
	}

	var keys []string
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("List: scan: %w", err)
	}

	blocked := make([]entity.BlockedIP, 0, len(keys))
	for _, key := range keys {
		val, err := s.rdb.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		ttl, err := s.rdb.TTL(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		b := entity.BlockedIP{IP: key[len(keyPrefix):], Entry: parseEntry(val)}
		if secs := int64(ttl / time.Second); ttl > 0 {
			b.TTLSeconds = &secs
		}
		blocked = append(blocked, b)
	}

	sort.SliceStable(blocked, func(i, j int) bool {
		a, b := blocked[i].TTLSeconds, blocked[j].TTLSeconds
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return blocked, nil
}

// ReportBlocks reconciles the expiry index against the backing keys.
// Members whose key is gone although the index says they should still be
// active are stale (partial writes or manual deletes) and get evicted.
func (s *Store) ReportBlocks(ctx context.Context, lookback time.Duration, limit int) (Report, error) {
	if limit < 1 {
		limit = 200
	}
	now := s.clock.Now().Unix()
	minScore := now - int64(lookback/time.Second)

	members, err := s.rdb.ZRangeByScoreWithScores(ctx, indexKey, &redis.ZRangeBy{
		Min:   fmt.Sprintf("%d", minScore),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return Report{}, fmt.Errorf("ReportBlocks: %w", err)
	}

	report := Report{Entries: make([]ReportEntry, 0, len(members))}
	var stale []interface{}
	for _, m := range members {
		ip, ok := m.Member.(string)
		if !ok {
			continue
		}
		expires := int64(m.Score)

		exists, err := s.rdb.Exists(ctx, keyPrefix+ip).Result()
		if err != nil {
			return Report{}, fmt.Errorf("ReportBlocks: %w", err)
		}

		entry := ReportEntry{IP: ip, ExpiresAtEpoch: expires}
		switch {
		case exists > 0:
			entry.State = entity.BlockStateActive
			report.Active++
		case expires <= now:
			entry.State = entity.BlockStateExpiredRecently
			report.ExpiredRecently++
		default:
			entry.State = entity.BlockStateStale
			report.Stale++
			stale = append(stale, ip)
		}
		report.Entries = append(report.Entries, entry)
	}

	if len(stale) > 0 {
		removed, err := s.rdb.ZRem(ctx, indexKey, stale...).Result()
		if err != nil {
			return Report{}, fmt.Errorf("ReportBlocks: zrem stale: %w", err)
		}
		report.RemovedStale = int(removed)
	}
	metrics.UpdateActiveBlockedIPs(report.Active)
	if report.RemovedStale > 0 {
		metrics.RecordStaleIndexEvictions(report.RemovedStale)
	}
	return report, nil
}

// Events reads the event log newest first. Unparseable entries come back
// with EventType "unknown".
func (s *Store) Events(ctx context.Context, limit, offset int) ([]Event, error) {
	if limit < 1 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	raws, err := s.rdb.LRange(ctx, eventsKey, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("Events: %w", err)
	}

	events := make([]Event, 0, len(raws))
	for _, raw := range raws {
		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil || event.EventType == "" {
			event = Event{EventType: "unknown", Raw: raw}
		}
		events = append(events, event)
	}
	return events, nil
}

// parseEntry decodes a block value. Legacy values are plain reason strings
// written before entries became JSON; they read back as manual blocks.
func parseEntry(val string) entity.BlockEntry {
	var entry entity.BlockEntry
	if err := json.Unmarshal([]byte(val), &entry); err == nil && entry.BlockID != "" {
		return entry
	}
	return entity.BlockEntry{Reason: val, ReasonCode: entity.ReasonManual}
}
