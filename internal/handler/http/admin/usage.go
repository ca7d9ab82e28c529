package admin

import (
	"net/http"

	"tollgate/internal/handler/http/respond"
	usageUC "tollgate/internal/usecase/usage"
)

type UsageSummaryHandler struct{ Svc *usageUC.Service }

func (h UsageSummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathUUID(r, "tenant_id")
	if err != nil {
		writeError(w, err)
		return
	}
	from, err := queryTime(r, "from_ts")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := queryTime(r, "to_ts")
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := h.Svc.Summary(r.Context(), tenantID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, summaryDTO{
		FromTs:       summary.FromTs,
		ToTs:         summary.ToTs,
		ByStatus:     summary.ByStatus,
		AvgLatencyMS: summary.AvgLatencyMS,
	})
}

type TopEndpointsHandler struct{ Svc *usageUC.Service }

func (h TopEndpointsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathUUID(r, "tenant_id")
	if err != nil {
		writeError(w, err)
		return
	}
	from, err := queryTime(r, "from_ts")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := queryTime(r, "to_ts")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.Svc.TopEndpoints(r.Context(), tenantID, from, to, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]endpointDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, endpointDTO{Path: row.Path, Count: row.Count, ErrorRate: row.ErrorRate})
	}
	respond.JSON(w, http.StatusOK, out)
}

type UsageByKeyHandler struct{ Svc *usageUC.Service }

func (h UsageByKeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathUUID(r, "tenant_id")
	if err != nil {
		writeError(w, err)
		return
	}
	from, err := queryTime(r, "from_ts")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := queryTime(r, "to_ts")
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.Svc.ByKey(r.Context(), tenantID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]keyUsageDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, keyUsageDTO{APIKeyID: row.APIKeyID, Count: row.Count, ErrorRate: row.ErrorRate})
	}
	respond.JSON(w, http.StatusOK, out)
}

type StatusClassesHandler struct{ Svc *usageUC.Service }

func (h StatusClassesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tenantID, err := pathUUID(r, "tenant_id")
	if err != nil {
		writeError(w, err)
		return
	}
	from, err := queryTime(r, "from_ts")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := queryTime(r, "to_ts")
	if err != nil {
		writeError(w, err)
		return
	}

	totals, start, end, err := h.Svc.StatusClasses(r.Context(), tenantID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, statusClassesDTO{
		FromTs:      start,
		ToTs:        end,
		Success:     totals.Success,
		ClientError: totals.ClientError,
		ServerError: totals.ServerError,
	})
}

type ListUsageEventsHandler struct{ Svc *usageUC.Service }

func (h ListUsageEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.Svc.ListEvents(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, toEventDTO(e))
	}
	respond.JSON(w, http.StatusOK, out)
}
