package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"tollgate/internal/blocklist"
	"tollgate/internal/domain/entity"
	gwhttp "tollgate/internal/handler/http"
	"tollgate/internal/handler/http/respond"
	autoblockUC "tollgate/internal/usecase/autoblock"
)

type BlockIPHandler struct{ Store *blocklist.Store }

// ServeHTTP IPブロック
// @Summary      IPブロック
// @Description  指定したIPをTTL付きでブロックします
// @Tags         admin
// @Security     AdminToken
// @Accept       json
// @Produce      json
// @Success      200 {object} object
// @Failure      400 {string} string "Bad request - missing client_ip"
// @Router       /admin/abuse/block-ip [post]
func (h BlockIPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientIP   string `json:"client_ip"`
		TTLSeconds int64  `json:"ttl_seconds"`
		Reason     string `json:"reason"`
		ReasonCode string `json:"reason_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ClientIP == "" {
		respond.Detail(w, http.StatusBadRequest, "client_ip is required")
		return
	}
	if req.TTLSeconds <= 0 {
		req.TTLSeconds = 3600
	}
	if req.ReasonCode == "" {
		req.ReasonCode = entity.ReasonManual
	}

	entry, err := h.Store.Block(r.Context(), req.ClientIP,
		time.Duration(req.TTLSeconds)*time.Second, req.ReasonCode, req.Reason, "admin")
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, blockResultDTO{
		ClientIP:       req.ClientIP,
		BlockID:        entry.BlockID,
		ReasonCode:     entry.ReasonCode,
		Reason:         entry.Reason,
		TTLSeconds:     req.TTLSeconds,
		CreatedAtEpoch: entry.CreatedAtEpoch,
		ExpiresAtEpoch: entry.ExpiresAtEpoch,
	})
}

type UnblockIPHandler struct{ Store *blocklist.Store }

func (h UnblockIPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientIP string `json:"client_ip"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ClientIP == "" {
		respond.Detail(w, http.StatusBadRequest, "client_ip is required")
		return
	}

	result, err := h.Store.Unblock(r.Context(), req.ClientIP, "admin")
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, unblockDTO{
		ClientIP:     req.ClientIP,
		KeyExisted:   result.KeyExisted,
		IndexExisted: result.IndexExisted,
	})
}

type ListBlockedHandler struct{ Store *blocklist.Store }

func (h ListBlockedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, err)
		return
	}

	blocked, err := h.Store.List(r.Context(), limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]blockedIPDTO, 0, len(blocked))
	for _, b := range blocked {
		out = append(out, toBlockedIPDTO(b))
	}
	respond.JSON(w, http.StatusOK, out)
}

type BlockedDetailsHandler struct{ Store *blocklist.Store }

func (h BlockedDetailsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	blocked, err := h.Store.Details(r.Context(), r.PathValue("ip"))
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if blocked == nil {
		respond.Detail(w, http.StatusNotFound, "IP not blocked")
		return
	}
	respond.JSON(w, http.StatusOK, toBlockedIPDTO(*blocked))
}

type BlocksReportHandler struct{ Store *blocklist.Store }

func (h BlocksReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lookback, err := queryInt(r, "lookback_minutes", 60)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 200)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.Store.ReportBlocks(r.Context(), time.Duration(lookback)*time.Minute, limit)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	entries := make([]reportEntryDTO, 0, len(report.Entries))
	for _, e := range report.Entries {
		entries = append(entries, reportEntryDTO{
			IP:             e.IP,
			ExpiresAtEpoch: e.ExpiresAtEpoch,
			State:          e.State,
		})
	}
	respond.JSON(w, http.StatusOK, blocksReportDTO{
		Active:          report.Active,
		ExpiredRecently: report.ExpiredRecently,
		Stale:           report.Stale,
		RemovedStale:    report.RemovedStale,
		Entries:         entries,
	})
}

type BlockEventsHandler struct{ Store *blocklist.Store }

func (h BlockEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.Store.Events(r.Context(), limit, offset)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, events)
}

type AutoBlockHandler struct{ Svc *autoblockUC.Service }

func (h AutoBlockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WindowMinutes    int  `json:"window_minutes"`
		MinUnauth401     int  `json:"min_unauth_401"`
		TTLSeconds       int  `json:"ttl_seconds"`
		Limit            int  `json:"limit"`
		DryRun           bool `json:"dry_run"`
		IncludeLocalhost bool `json:"include_localhost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.Svc.Run(r.Context(), autoblockUC.Params{
		WindowMinutes:    req.WindowMinutes,
		MinUnauth401:     req.MinUnauth401,
		TTLSeconds:       req.TTLSeconds,
		Limit:            req.Limit,
		DryRun:           req.DryRun,
		IncludeLocalhost: req.IncludeLocalhost,
	}, autoblockUC.ActorAutoBlock)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAutoBlockResult(w, result)
}

type OneClickBlockHandler struct{ Svc *autoblockUC.Service }

func (h OneClickBlockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TopN             int  `json:"top_n"`
		TTLSeconds       int  `json:"ttl_seconds"`
		DryRun           bool `json:"dry_run"`
		IncludeLocalhost bool `json:"include_localhost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.Svc.OneClick(r.Context(), req.TopN, req.TTLSeconds, req.DryRun, req.IncludeLocalhost)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAutoBlockResult(w, result)
}

func writeAutoBlockResult(w http.ResponseWriter, result *autoblockUC.Result) {
	blocked := make([]autoBlockedDTO, 0, len(result.Blocked))
	for _, b := range result.Blocked {
		blocked = append(blocked, autoBlockedDTO{
			ClientIP:   b.ClientIP,
			Unauth401:  b.Unauth401,
			BlockID:    b.BlockID,
			TTLSeconds: b.TTLSeconds,
		})
	}
	skipped := make([]autoSkippedDTO, 0, len(result.Skipped))
	for _, s := range result.Skipped {
		skipped = append(skipped, autoSkippedDTO{ClientIP: s.ClientIP, Reason: s.Reason})
	}

	if !result.DryRun {
		for range result.Blocked {
			gwhttp.RecordAutoBlock(result.Actor)
		}
	}
	respond.JSON(w, http.StatusOK, autoBlockResultDTO{
		DryRun:        result.DryRun,
		Actor:         result.Actor,
		WindowMinutes: result.WindowMinutes,
		MinUnauth401:  result.MinUnauth401,
		Blocked:       blocked,
		Skipped:       skipped,
	})
}
