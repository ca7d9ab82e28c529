package admin

import (
	"encoding/json"
	"net/http"

	"tollgate/internal/handler/http/respond"
	keyUC "tollgate/internal/usecase/apikey"
	tenantUC "tollgate/internal/usecase/tenant"
)

type CreateTenantHandler struct{ Svc *tenantUC.Service }

// ServeHTTP テナント作成
// @Summary      テナント作成
// @Description  新しいテナントを作成します。名前はゲートウェイ全体で一意
// @Tags         admin
// @Security     AdminToken
// @Accept       json
// @Produce      json
// @Success      200 {object} object
// @Failure      400 {string} string "Bad request - invalid name"
// @Failure      409 {string} string "Conflict - duplicate tenant name"
// @Router       /admin/tenants [post]
func (h CreateTenantHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	t, err := h.Svc.Create(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, tenantDTO{ID: t.ID, Name: t.Name})
}

type IssueKeyHandler struct{ Svc *keyUC.Service }

// ServeHTTP issues a new key for the tenant. The plaintext appears in
// this response and nowhere else.
func (h IssueKeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathUUID(r, "tenant_id")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.Svc.Issue(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, issuedKeyDTO{
		KeyID:     res.Key.ID,
		TenantID:  res.Key.TenantID,
		KeyPrefix: res.Key.KeyPrefix,
		APIKey:    res.Plaintext,
	})
}

type ListKeysHandler struct{ Svc *keyUC.Service }

func (h ListKeysHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathUUID(r, "tenant_id")
	if err != nil {
		writeError(w, err)
		return
	}
	keys, err := h.Svc.ListByTenant(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]keyDTO, 0, len(keys))
	for _, k := range keys {
		out = append(out, toKeyDTO(k))
	}
	respond.JSON(w, http.StatusOK, out)
}
