package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tollgate/internal/blocklist"
	"tollgate/internal/domain/entity"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBlocklist(t *testing.T) (*blocklist.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return blocklist.NewStore(client, blocklist.Config{}), mr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestBlockCheck_PassThrough(t *testing.T) {
	store, _ := newTestBlocklist(t)

	reached := false
	handler := BlockCheck(store, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.RemoteAddr = "203.0.113.9:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !reached {
		t.Error("expected handler to be reached for unblocked IP")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestBlockCheck_BlockedIP(t *testing.T) {
	store, _ := newTestBlocklist(t)

	entry, err := store.Block(t.Context(), "203.0.113.9", 10*time.Minute, entity.ReasonOperatorAction, "abuse reported", "admin")
	if err != nil {
		t.Fatalf("Block() error: %v", err)
	}

	handler := BlockCheck(store, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached for blocked IP")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.RemoteAddr = "203.0.113.9:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	var body blockedResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Detail != "IP temporarily blocked" {
		t.Errorf("detail = %q, want %q", body.Detail, "IP temporarily blocked")
	}
	if body.ClientIP != "203.0.113.9" {
		t.Errorf("client_ip = %q, want %q", body.ClientIP, "203.0.113.9")
	}
	if body.BlockID != entry.BlockID {
		t.Errorf("block_id = %q, want %q", body.BlockID, entry.BlockID)
	}
	if body.ReasonCode != entity.ReasonOperatorAction {
		t.Errorf("reason_code = %q, want %q", body.ReasonCode, entity.ReasonOperatorAction)
	}
	if body.Reason != "abuse reported" {
		t.Errorf("reason = %q, want %q", body.Reason, "abuse reported")
	}
	if body.RetryAfterSeconds == nil || *body.RetryAfterSeconds <= 0 {
		t.Errorf("retry_after_seconds = %v, want positive", body.RetryAfterSeconds)
	}
	if body.ExpiresAtEpoch != entry.ExpiresAtEpoch {
		t.Errorf("expires_at_epoch = %d, want %d", body.ExpiresAtEpoch, entry.ExpiresAtEpoch)
	}
}

func TestBlockCheck_UnknownClientIPSkips(t *testing.T) {
	store, _ := newTestBlocklist(t)

	reached := false
	handler := BlockCheck(store, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.RemoteAddr = "not-an-address"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !reached {
		t.Error("expected handler to be reached when client IP is unknown")
	}
}

func TestBlockCheck_ExpiredBlockPasses(t *testing.T) {
	store, mr := newTestBlocklist(t)

	if _, err := store.Block(t.Context(), "203.0.113.9", time.Second, entity.ReasonManual, "short block", "admin"); err != nil {
		t.Fatalf("Block() error: %v", err)
	}
	mr.FastForward(2 * time.Second)

	reached := false
	handler := BlockCheck(store, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.RemoteAddr = "203.0.113.9:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !reached {
		t.Error("expected handler to be reached after block expiry")
	}
}

func TestBlockCheck_StoreError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := blocklist.NewStore(client, blocklist.Config{})
	mr.Close()

	handler := BlockCheck(store, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached when the blocklist is unreadable")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.RemoteAddr = "203.0.113.9:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// ブロックリストが読めないときはフェイルクローズ
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}
