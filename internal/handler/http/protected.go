package http

import (
	"net/http"

	"tollgate/internal/handler/http/authctx"
	"tollgate/internal/handler/http/respond"
)

// protectedResponse echoes the resolved credential back to the caller.
type protectedResponse struct {
	OK       bool   `json:"ok"`
	TenantID string `json:"tenant_id"`
	APIKeyID string `json:"api_key_id"`
}

// ProtectedHandler serves the authenticated demo route. The credential
// resolver has already run; the handler only reads the resolved identity.
type ProtectedHandler struct{}

func (h *ProtectedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := authctx.FromContext(r.Context())
	if id == nil {
		// resolver配下でしか登録されないルートなので通常は到達しない
		respond.Detail(w, http.StatusUnauthorized, "Invalid API key")
		return
	}

	respond.JSON(w, http.StatusOK, protectedResponse{
		OK:       true,
		TenantID: id.TenantID,
		APIKeyID: id.APIKeyID,
	})
}
