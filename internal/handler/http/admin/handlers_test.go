package admin_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tollgate/internal/blocklist"
	"tollgate/internal/domain/entity"
	"tollgate/internal/handler/http/admin"
	"tollgate/internal/handler/http/auth"
	"tollgate/internal/repository"
	abuseUC "tollgate/internal/usecase/abuse"
	keyUC "tollgate/internal/usecase/apikey"
	autoblockUC "tollgate/internal/usecase/autoblock"
	tenantUC "tollgate/internal/usecase/tenant"
	usageUC "tollgate/internal/usecase/usage"
)

const adminToken = "test-admin-token"

/*────────────────────  インメモリスタブ  ────────────────────*/

type stubTenantRepo struct {
	byID   map[string]*entity.Tenant
	byName map[string]*entity.Tenant
}

func newTenantStub() *stubTenantRepo {
	return &stubTenantRepo{
		byID:   map[string]*entity.Tenant{},
		byName: map[string]*entity.Tenant{},
	}
}

func (s *stubTenantRepo) Get(_ context.Context, id string) (*entity.Tenant, error) {
	return s.byID[id], nil
}

func (s *stubTenantRepo) GetByName(_ context.Context, name string) (*entity.Tenant, error) {
	return s.byName[name], nil
}

func (s *stubTenantRepo) Create(_ context.Context, t *entity.Tenant) error {
	s.byID[t.ID] = t
	s.byName[t.Name] = t
	return nil
}

type stubKeyRepo struct {
	byID   map[string]*entity.APIKey
	byHash map[string]*entity.APIKey
}

func newKeyStub() *stubKeyRepo {
	return &stubKeyRepo{
		byID:   map[string]*entity.APIKey{},
		byHash: map[string]*entity.APIKey{},
	}
}

func (s *stubKeyRepo) Get(_ context.Context, id string) (*entity.APIKey, error) {
	return s.byID[id], nil
}

func (s *stubKeyRepo) GetByHash(_ context.Context, hash string) (*entity.APIKey, error) {
	return s.byHash[hash], nil
}

func (s *stubKeyRepo) ListByTenant(_ context.Context, tenantID string) ([]*entity.APIKey, error) {
	var out []*entity.APIKey
	for _, k := range s.byID {
		if k.TenantID == tenantID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *stubKeyRepo) Create(_ context.Context, key *entity.APIKey) error {
	s.byID[key.ID] = key
	s.byHash[key.KeyHash] = key
	return nil
}

func (s *stubKeyRepo) Revoke(_ context.Context, id string, at time.Time) error {
	if k := s.byID[id]; k != nil {
		k.RevokedAt = &at
	}
	return nil
}

func (s *stubKeyRepo) SetLimits(_ context.Context, id string, rateLimit, rateWindow int) error {
	if k := s.byID[id]; k != nil {
		k.RateLimit = rateLimit
		k.RateWindow = rateWindow
	}
	return nil
}

func (s *stubKeyRepo) ListActive(_ context.Context) ([]*entity.APIKey, error) {
	var out []*entity.APIKey
	for _, k := range s.byID {
		if k.Usable() {
			out = append(out, k)
		}
	}
	return out, nil
}

type stubEventRepo struct {
	statusRows []repository.StatusCount
	suspectIPs []repository.IPCount
	events     []*entity.UsageEvent
}

func (s *stubEventRepo) Insert(_ context.Context, _ *entity.UsageEvent) error { return nil }

func (s *stubEventRepo) SummaryByStatus(_ context.Context, _ string, _, _ time.Time) ([]repository.StatusCount, error) {
	return s.statusRows, nil
}

func (s *stubEventRepo) TopEndpoints(_ context.Context, _ string, _, _ time.Time, _ int) ([]repository.PathCount, error) {
	return nil, nil
}

func (s *stubEventRepo) CountByKey(_ context.Context, _ string, _, _ time.Time) ([]repository.KeyCount, error) {
	return nil, nil
}

func (s *stubEventRepo) StatusClasses(_ context.Context, _ string, _, _ time.Time) (repository.StatusClassTotals, error) {
	return repository.StatusClassTotals{}, nil
}

func (s *stubEventRepo) ListEvents(_ context.Context, _, _ int) ([]*entity.UsageEvent, error) {
	return s.events, nil
}

func (s *stubEventRepo) CountForKey(_ context.Context, _ string, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *stubEventRepo) UnauthByIP(_ context.Context, _, _ time.Time, _ int) ([]repository.IPCount, error) {
	return nil, nil
}

func (s *stubEventRepo) SuspectIPs(_ context.Context, _, _ time.Time, _ int64, _ int) ([]repository.IPCount, error) {
	return s.suspectIPs, nil
}

func (s *stubEventRepo) SuspectPaths(_ context.Context, _, _ time.Time, _ []string) ([]repository.IPPathCount, error) {
	return nil, nil
}

func (s *stubEventRepo) RateLimitedByIP(_ context.Context, _ string, _, _ time.Time, _ int) ([]repository.IPCount, error) {
	return nil, nil
}

func (s *stubEventRepo) StatusesForIP(_ context.Context, _ string, _, _ time.Time) ([]repository.StatusCount, error) {
	return nil, nil
}

func (s *stubEventRepo) TopPathsForIP(_ context.Context, _ string, _, _ time.Time, _ int) ([]repository.PathCount, error) {
	return nil, nil
}

func (s *stubEventRepo) LastEventsForIP(_ context.Context, _ string, _, _ time.Time, _ int) ([]*entity.UsageEvent, error) {
	return nil, nil
}

var _ repository.UsageEventRepository = (*stubEventRepo)(nil)

/*────────────────────  フィクスチャ  ────────────────────*/

type env struct {
	mux     *http.ServeMux
	tenants *stubTenantRepo
	keys    *stubKeyRepo
	events  *stubEventRepo
	store   *blocklist.Store
}

func newEnv(t *testing.T, autoBlockEnabled bool) *env {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := blocklist.NewStore(rdb, blocklist.Config{})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tenants := newTenantStub()
	keys := newKeyStub()
	events := &stubEventRepo{}

	abuseSvc := &abuseUC.Service{Events: events}
	mux := http.NewServeMux()
	admin.Register(mux, admin.Deps{
		Guard:   auth.NewAdminGuard(adminToken, logger),
		Tenants: &tenantUC.Service{Repo: tenants},
		Keys:    &keyUC.Service{Keys: keys, Tenants: tenants},
		Usage:   &usageUC.Service{Events: events, Keys: keys},
		Abuse:   abuseSvc,
		AutoBlock: &autoblockUC.Service{
			Suspects: abuseSvc,
			Blocker:  store,
			Logger:   logger,
			Enabled:  autoBlockEnabled,
		},
		Blocklist: store,
	})
	return &env{mux: mux, tenants: tenants, keys: keys, events: events, store: store}
}

func (e *env) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

/*────────────────────  テスト  ────────────────────*/

func TestAdminRoutes_RequireToken(t *testing.T) {
	e := newEnv(t, false)

	req := httptest.NewRequest(http.MethodPost, "/admin/tenants", strings.NewReader(`{"name":"acme"}`))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateTenant(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodPost, "/admin/tenants", `{"name":"acme"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]string](t, rec)
	if body["id"] == "" || body["name"] != "acme" {
		t.Errorf("body = %v", body)
	}

	// 同名は409
	rec = e.do(t, http.MethodPost, "/admin/tenants", `{"name":"acme"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
}

func TestCreateTenant_InvalidName(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodPost, "/admin/tenants", `{"name":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func createTenant(t *testing.T, e *env) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/admin/tenants", `{"name":"acme"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create tenant: status = %d", rec.Code)
	}
	return decodeBody[map[string]string](t, rec)["id"]
}

func TestIssueAndListKeys(t *testing.T) {
	e := newEnv(t, false)
	tenantID := createTenant(t, e)

	rec := e.do(t, http.MethodPost, "/admin/tenants/"+tenantID+"/keys", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("issue status = %d, body %s", rec.Code, rec.Body.String())
	}
	issued := decodeBody[map[string]string](t, rec)
	if issued["api_key"] == "" {
		t.Fatal("expected plaintext api_key in issuance response")
	}
	if !strings.HasPrefix(issued["api_key"], issued["key_prefix"]) {
		t.Errorf("key_prefix %q is not a prefix of the plaintext", issued["key_prefix"])
	}

	rec = e.do(t, http.MethodGet, "/admin/tenants/"+tenantID+"/keys", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	keys := decodeBody[[]map[string]any](t, rec)
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
	// 一覧にはプレーンテキストも完全なハッシュも出さない
	if _, ok := keys[0]["api_key"]; ok {
		t.Error("list must not expose the plaintext")
	}
}

func TestIssueKey_UnknownTenant(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodPost, "/admin/tenants/00000000-0000-0000-0000-000000000000/keys", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMalformedPathIDs(t *testing.T) {
	e := newEnv(t, false)

	// id カラムは uuid 型。不正なIDはストアに渡す前に 400 で落とす
	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "revoke key", method: http.MethodPost, target: "/admin/keys/not-a-uuid/revoke"},
		{name: "set limits", method: http.MethodPost, target: "/admin/keys/not-a-uuid/limits", body: `{"rate_limit":10,"rate_window":60}`},
		{name: "set tier", method: http.MethodPost, target: "/admin/keys/not-a-uuid/tier", body: `{"tier":"pro"}`},
		{name: "issue key", method: http.MethodPost, target: "/admin/tenants/not-a-uuid/keys"},
		{name: "list keys", method: http.MethodGet, target: "/admin/tenants/not-a-uuid/keys"},
		{name: "usage summary", method: http.MethodGet, target: "/admin/tenants/not-a-uuid/usage/summary"},
		{name: "top endpoints", method: http.MethodGet, target: "/admin/tenants/not-a-uuid/usage/top-endpoints"},
		{name: "usage by key", method: http.MethodGet, target: "/admin/tenants/not-a-uuid/usage/by-key"},
		{name: "status classes", method: http.MethodGet, target: "/admin/tenants/not-a-uuid/usage/status-classes"},
		{name: "tenant rate limited", method: http.MethodGet, target: "/admin/tenants/not-a-uuid/usage/rate-limited"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.target, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRateLimited_GlobalRouteSkipsTenantCheck(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodGet, "/admin/abuse/rate-limited", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRevokeKey_Idempotent(t *testing.T) {
	e := newEnv(t, false)
	tenantID := createTenant(t, e)

	rec := e.do(t, http.MethodPost, "/admin/tenants/"+tenantID+"/keys", "")
	keyID := decodeBody[map[string]string](t, rec)["key_id"]

	rec = e.do(t, http.MethodPost, "/admin/keys/"+keyID+"/revoke", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("revoke status = %d", rec.Code)
	}
	if status := decodeBody[map[string]string](t, rec)["status"]; status != "revoked" {
		t.Errorf("status = %q, want revoked", status)
	}

	rec = e.do(t, http.MethodPost, "/admin/keys/"+keyID+"/revoke", "")
	if status := decodeBody[map[string]string](t, rec)["status"]; status != "already_revoked" {
		t.Errorf("second status = %q, want already_revoked", status)
	}
}

func TestSetLimits_OutOfRange(t *testing.T) {
	e := newEnv(t, false)
	tenantID := createTenant(t, e)

	rec := e.do(t, http.MethodPost, "/admin/tenants/"+tenantID+"/keys", "")
	keyID := decodeBody[map[string]string](t, rec)["key_id"]

	rec = e.do(t, http.MethodPost, "/admin/keys/"+keyID+"/limits",
		`{"rate_limit": 0, "rate_window": 60}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSetTier(t *testing.T) {
	e := newEnv(t, false)
	tenantID := createTenant(t, e)

	rec := e.do(t, http.MethodPost, "/admin/tenants/"+tenantID+"/keys", "")
	keyID := decodeBody[map[string]string](t, rec)["key_id"]

	rec = e.do(t, http.MethodPost, "/admin/keys/"+keyID+"/tier", `{"tier":"enterprise"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string]any](t, rec)
	if body["rate_limit"].(float64) != 600 {
		t.Errorf("rate_limit = %v, want 600", body["rate_limit"])
	}

	rec = e.do(t, http.MethodPost, "/admin/keys/"+keyID+"/tier", `{"tier":"platinum"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown tier status = %d, want 400", rec.Code)
	}
}

func TestSetTier_RevokedKey(t *testing.T) {
	e := newEnv(t, false)
	tenantID := createTenant(t, e)

	rec := e.do(t, http.MethodPost, "/admin/tenants/"+tenantID+"/keys", "")
	keyID := decodeBody[map[string]string](t, rec)["key_id"]
	e.do(t, http.MethodPost, "/admin/keys/"+keyID+"/revoke", "")

	rec = e.do(t, http.MethodPost, "/admin/keys/"+keyID+"/tier", `{"tier":"pro"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestBlockLifecycle(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodPost, "/admin/abuse/block-ip",
		`{"client_ip":"1.2.3.4","ttl_seconds":10,"reason":"probing"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("block status = %d, body %s", rec.Code, rec.Body.String())
	}
	blocked := decodeBody[map[string]any](t, rec)
	if blocked["block_id"] == "" {
		t.Error("expected block_id")
	}

	rec = e.do(t, http.MethodGet, "/admin/abuse/blocked", "")
	list := decodeBody[[]map[string]any](t, rec)
	if len(list) != 1 || list[0]["client_ip"] != "1.2.3.4" {
		t.Errorf("blocked list = %v", list)
	}

	rec = e.do(t, http.MethodGet, "/admin/abuse/blocked/1.2.3.4", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("details status = %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/admin/abuse/unblock-ip", `{"client_ip":"1.2.3.4"}`)
	unblocked := decodeBody[map[string]any](t, rec)
	if unblocked["key_existed"] != true {
		t.Errorf("unblock = %v", unblocked)
	}

	rec = e.do(t, http.MethodGet, "/admin/abuse/blocked/1.2.3.4", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("details after unblock = %d, want 404", rec.Code)
	}
}

func TestBlockIP_MissingClientIP(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodPost, "/admin/abuse/block-ip", `{"ttl_seconds":10}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBlockEvents(t *testing.T) {
	e := newEnv(t, false)

	e.do(t, http.MethodPost, "/admin/abuse/block-ip", `{"client_ip":"1.2.3.4","ttl_seconds":10}`)
	e.do(t, http.MethodPost, "/admin/abuse/unblock-ip", `{"client_ip":"1.2.3.4"}`)

	rec := e.do(t, http.MethodGet, "/admin/abuse/block-events", "")
	events := decodeBody[[]map[string]any](t, rec)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	// 新しい順
	if events[0]["event_type"] != "unblock" || events[1]["event_type"] != "block" {
		t.Errorf("event order = %v, %v", events[0]["event_type"], events[1]["event_type"])
	}
}

func TestAutoBlock_Disabled(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodPost, "/admin/abuse/auto-block", `{"window_minutes":10}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestAutoBlock_DryRun(t *testing.T) {
	e := newEnv(t, true)
	e.events.suspectIPs = []repository.IPCount{{ClientIP: "9.9.9.9", Count: 60}}

	rec := e.do(t, http.MethodPost, "/admin/abuse/auto-block",
		`{"window_minutes":10,"min_unauth_401":50,"dry_run":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[map[string]any](t, rec)
	if result["dry_run"] != true {
		t.Error("expected dry_run true")
	}
	blocked := result["blocked"].([]any)
	if len(blocked) != 1 || blocked[0].(map[string]any)["client_ip"] != "9.9.9.9" {
		t.Errorf("blocked = %v", blocked)
	}

	// ドライランはブロックリストに書かない
	rec = e.do(t, http.MethodGet, "/admin/abuse/blocked", "")
	if list := decodeBody[[]map[string]any](t, rec); len(list) != 0 {
		t.Errorf("blocked list = %v, want empty", list)
	}
}

func TestAutoBlock_Live(t *testing.T) {
	e := newEnv(t, true)
	e.events.suspectIPs = []repository.IPCount{{ClientIP: "9.9.9.9", Count: 60}}

	rec := e.do(t, http.MethodPost, "/admin/abuse/auto-block",
		`{"window_minutes":10,"min_unauth_401":50,"ttl_seconds":600}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/admin/abuse/blocked/9.9.9.9", "")
	if rec.Code != http.StatusOK {
		t.Errorf("details status = %d, want 200", rec.Code)
	}
	details := decodeBody[map[string]any](t, rec)
	if details["reason_code"] != entity.ReasonAutoUnauthSurge {
		t.Errorf("reason_code = %v, want %v", details["reason_code"], entity.ReasonAutoUnauthSurge)
	}
}

func TestUsageSummary(t *testing.T) {
	e := newEnv(t, false)
	tenantID := createTenant(t, e)
	e.events.statusRows = []repository.StatusCount{
		{StatusCode: 200, Count: 90, AvgLatency: 10},
		{StatusCode: 429, Count: 10, AvgLatency: 1},
	}

	rec := e.do(t, http.MethodGet, "/admin/tenants/"+tenantID+"/usage/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	byStatus := body["by_status"].(map[string]any)
	if byStatus["200"].(float64) != 90 || byStatus["429"].(float64) != 10 {
		t.Errorf("by_status = %v", byStatus)
	}
	if body["avg_latency_ms"].(float64) != 9.1 {
		t.Errorf("avg_latency_ms = %v, want 9.1", body["avg_latency_ms"])
	}
}

func TestUsageSummary_InvalidRange(t *testing.T) {
	e := newEnv(t, false)
	tenantID := createTenant(t, e)

	rec := e.do(t, http.MethodGet,
		"/admin/tenants/"+tenantID+"/usage/summary?from_ts=2026-01-02T00:00:00Z&to_ts=2026-01-01T00:00:00Z", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIPTimeline_MissingClientIP(t *testing.T) {
	e := newEnv(t, false)

	rec := e.do(t, http.MethodGet, "/admin/abuse/ip-timeline", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
