package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGuard() *AdminGuard {
	return NewAdminGuard("test-admin-token", slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func TestAdminGuard_ValidToken(t *testing.T) {
	guard := newTestGuard()

	reached := false
	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
	req.Header.Set(AdminTokenHeader, "test-admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !reached {
		t.Error("expected handler to be reached with valid token")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestAdminGuard_InvalidToken(t *testing.T) {
	guard := newTestGuard()

	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong token", token: "wrong-token"},
		{name: "token with suffix", token: "test-admin-token-extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
			req.RemoteAddr = "192.0.2.10:12345"
			if tt.token != "" {
				req.Header.Set(AdminTokenHeader, tt.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rec.Code)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["detail"] != "Invalid admin token" {
				t.Errorf("detail = %q, want %q", body["detail"], "Invalid admin token")
			}
		})
	}
}

func TestAdminGuard_ThrottlesRepeatedFailures(t *testing.T) {
	guard := newTestGuard()

	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Burn through the per-IP failed-attempt budget
	var last int
	for i := 0; i < 12; i++ {
		req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
		req.RemoteAddr = "203.0.113.9:12345"
		req.Header.Set(AdminTokenHeader, "wrong-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("expected status 429 after repeated failures, got %d", last)
	}

	// The throttle also gates valid attempts from the abusive IP
	req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
	req.RemoteAddr = "203.0.113.9:12345"
	req.Header.Set(AdminTokenHeader, "test-admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429 for throttled IP, got %d", rec.Code)
	}
}

func TestAdminGuard_ThrottleIsPerIP(t *testing.T) {
	guard := newTestGuard()

	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Exhaust one IP's budget
	for i := 0; i < 12; i++ {
		req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
		req.RemoteAddr = "203.0.113.9:12345"
		req.Header.Set(AdminTokenHeader, "wrong-token")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// A different IP is unaffected
	req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
	req.RemoteAddr = "198.51.100.23:12345"
	req.Header.Set(AdminTokenHeader, "test-admin-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for unaffected IP, got %d", rec.Code)
	}
}

func TestAdminGuard_SuccessDoesNotChargeBudget(t *testing.T) {
	guard := newTestGuard()

	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Many successful requests from the same IP pass freely
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
		req.RemoteAddr = "192.0.2.10:12345"
		req.Header.Set(AdminTokenHeader, "test-admin-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i, rec.Code)
		}
	}
}
