package admin

import (
	"encoding/json"
	"net/http"

	"tollgate/internal/handler/http/respond"
	keyUC "tollgate/internal/usecase/apikey"
)

type RevokeKeyHandler struct{ Svc *keyUC.Service }

// ServeHTTP revokes a key. Repeated revocations report already_revoked
// instead of failing.
func (h RevokeKeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	keyID, err := pathUUID(r, "key_id")
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := h.Svc.Revoke(r.Context(), keyID)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, revokeDTO{Status: status, KeyID: keyID})
}

type SetLimitsHandler struct{ Svc *keyUC.Service }

func (h SetLimitsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	keyID, err := pathUUID(r, "key_id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		RateLimit  int `json:"rate_limit"`
		RateWindow int `json:"rate_window"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.Svc.SetLimits(r.Context(), keyID, req.RateLimit, req.RateWindow); err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, limitsDTO{
		KeyID:      keyID,
		RateLimit:  req.RateLimit,
		RateWindow: req.RateWindow,
	})
}

type SetTierHandler struct{ Svc *keyUC.Service }

func (h SetTierHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	keyID, err := pathUUID(r, "key_id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Tier string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	tier, err := h.Svc.SetTier(r.Context(), keyID, req.Tier)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, tierDTO{
		KeyID:      keyID,
		Tier:       tier.Name,
		RateLimit:  tier.RateLimit,
		RateWindow: tier.RateWindow,
	})
}
