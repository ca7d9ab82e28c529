// Package admin implements the operator surface of the gateway: tenant
// and key management, usage analytics, abuse detection and the blocklist
// controls. Every route requires the X-Admin-Token header.
package admin

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tollgate/internal/domain/entity"
	"tollgate/internal/handler/http/respond"
	keyUC "tollgate/internal/usecase/apikey"
	autoblockUC "tollgate/internal/usecase/autoblock"
	tenantUC "tollgate/internal/usecase/tenant"
)

// writeError maps use case errors onto the wire contract.
func writeError(w http.ResponseWriter, err error) {
	var ve *entity.ValidationError
	switch {
	case errors.As(err, &ve):
		respond.Detail(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, keyUC.ErrUnknownTier):
		respond.Detail(w, http.StatusBadRequest, "Unknown tier")
	case errors.Is(err, tenantUC.ErrTenantNotFound), errors.Is(err, keyUC.ErrTenantNotFound):
		respond.Detail(w, http.StatusNotFound, "Tenant not found")
	case errors.Is(err, keyUC.ErrKeyNotFound):
		respond.Detail(w, http.StatusNotFound, "API key not found")
	case errors.Is(err, tenantUC.ErrDuplicateTenant):
		respond.Detail(w, http.StatusConflict, "Tenant name already exists")
	case errors.Is(err, keyUC.ErrKeyRevoked):
		respond.Detail(w, http.StatusConflict, "API key is revoked")
	case errors.Is(err, autoblockUC.ErrDisabled):
		respond.Detail(w, http.StatusConflict, "Auto-block is disabled")
	case errors.Is(err, keyUC.ErrHashCollision):
		respond.Detail(w, http.StatusInternalServerError, "Key generation collision, retry")
	default:
		respond.SafeError(w, http.StatusInternalServerError, err)
	}
}

// pathUUID reads a path parameter and rejects values that are not UUIDs.
// The id columns are typed uuid, so a malformed id must fail as 400 here
// instead of surfacing as a cast error from the store.
func pathUUID(r *http.Request, name string) (string, error) {
	v := r.PathValue(name)
	if _, err := uuid.Parse(v); err != nil {
		return "", &entity.ValidationError{Field: name, Message: "must be a UUID"}
	}
	return v, nil
}

// Timestamp layouts accepted by the from_ts/to_ts query parameters.
// Naive timestamps are taken as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// queryTime parses an optional timestamp parameter. Bare epoch seconds
// are accepted alongside the layouts above.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.Unix(epoch, 0).UTC()
		return &t, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &entity.ValidationError{Field: name, Message: "invalid timestamp"}
}

// queryInt parses an optional integer parameter, returning def when
// absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &entity.ValidationError{Field: name, Message: "must be an integer"}
	}
	return v, nil
}

// queryFloat parses an optional float parameter, returning def when
// absent.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &entity.ValidationError{Field: name, Message: "must be a number"}
	}
	return v, nil
}
