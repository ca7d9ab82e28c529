package admin

import (
	"net/http"

	"tollgate/internal/handler/http/respond"
	"tollgate/internal/repository"
	abuseUC "tollgate/internal/usecase/abuse"
	usageUC "tollgate/internal/usecase/usage"
)

type NearQuotaHandler struct{ Svc *usageUC.Service }

func (h NearQuotaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryFloat(r, "threshold", 0.8)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.Svc.NearQuota(r.Context(), threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]nearQuotaDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, nearQuotaDTO{
			APIKeyID:   row.APIKeyID,
			TenantID:   row.TenantID,
			RateLimit:  row.RateLimit,
			RateWindow: row.RateWindow,
			Count:      row.Count,
			Ratio:      row.Ratio,
		})
	}
	respond.JSON(w, http.StatusOK, out)
}

type UnauthTrafficHandler struct{ Svc *abuseUC.Service }

func (h UnauthTrafficHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window_minutes", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, windowUsed, err := h.Svc.UnauthTraffic(r.Context(), window, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"window_minutes": windowUsed,
		"ips":            toIPCountDTOs(rows),
	})
}

type SuspectsHandler struct{ Svc *abuseUC.Service }

func (h SuspectsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window_minutes", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	minUnauth, err := queryInt(r, "min_unauth_401", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.Svc.Suspects(r.Context(), abuseUC.SuspectQuery{
		WindowMinutes: window,
		MinUnauth401:  minUnauth,
		Limit:         limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	suspects := make([]suspectDTO, 0, len(report.Suspects))
	for _, s := range report.Suspects {
		paths := make([]pathHitDTO, 0, len(s.TopPaths))
		for _, p := range s.TopPaths {
			paths = append(paths, pathHitDTO{Path: p.Path, Count: p.Count})
		}
		suspects = append(suspects, suspectDTO{
			ClientIP:  s.ClientIP,
			Unauth401: s.Unauth401,
			FirstSeen: s.FirstSeen,
			LastSeen:  s.LastSeen,
			TopPaths:  paths,
		})
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"window_minutes": report.WindowMinutes,
		"min_unauth_401": report.MinUnauth401,
		"suspects":       suspects,
	})
}

// RateLimitedHandler serves both the global view and the per-tenant view;
// the tenant_id path value is empty on the global route.
type RateLimitedHandler struct{ Svc *abuseUC.Service }

func (h RateLimitedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window_minutes", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	// グローバルルートでは tenant_id は空
	tenantID := r.PathValue("tenant_id")
	if tenantID != "" {
		if tenantID, err = pathUUID(r, "tenant_id"); err != nil {
			writeError(w, err)
			return
		}
	}

	rows, windowUsed, err := h.Svc.RateLimited(r.Context(), tenantID, window, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"window_minutes": windowUsed,
		"ips":            toIPCountDTOs(rows),
	})
}

type IPTimelineHandler struct{ Svc *abuseUC.Service }

func (h IPTimelineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window_minutes", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	lastN, err := queryInt(r, "last_n", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	timeline, err := h.Svc.IPTimeline(r.Context(), r.URL.Query().Get("client_ip"), window, lastN)
	if err != nil {
		writeError(w, err)
		return
	}

	statuses := make([]statusCountDTO, 0, len(timeline.Statuses))
	for _, s := range timeline.Statuses {
		statuses = append(statuses, statusCountDTO{StatusCode: s.StatusCode, Count: s.Count})
	}
	paths := make([]pathHitDTO, 0, len(timeline.TopPaths))
	for _, p := range timeline.TopPaths {
		paths = append(paths, pathHitDTO{Path: p.Path, Count: p.Count})
	}
	events := make([]eventDTO, 0, len(timeline.LastEvents))
	for _, e := range timeline.LastEvents {
		events = append(events, toEventDTO(e))
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"client_ip":      timeline.ClientIP,
		"window_minutes": timeline.WindowMinutes,
		"statuses":       statuses,
		"top_paths":      paths,
		"last_events":    events,
	})
}

func toIPCountDTOs(rows []repository.IPCount) []ipCountDTO {
	out := make([]ipCountDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ipCountDTO{
			ClientIP: row.ClientIP,
			Count:    row.Count,
			FirstTs:  row.FirstTs,
			LastTs:   row.LastTs,
		})
	}
	return out
}
