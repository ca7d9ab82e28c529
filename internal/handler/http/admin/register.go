package admin

import (
	"net/http"

	"tollgate/internal/blocklist"
	"tollgate/internal/handler/http/auth"
	abuseUC "tollgate/internal/usecase/abuse"
	keyUC "tollgate/internal/usecase/apikey"
	autoblockUC "tollgate/internal/usecase/autoblock"
	tenantUC "tollgate/internal/usecase/tenant"
	usageUC "tollgate/internal/usecase/usage"
)

// Deps collects the collaborators of the admin surface.
type Deps struct {
	Guard     *auth.AdminGuard
	Tenants   *tenantUC.Service
	Keys      *keyUC.Service
	Usage     *usageUC.Service
	Abuse     *abuseUC.Service
	AutoBlock *autoblockUC.Service
	Blocklist *blocklist.Store
}

// Register registers all admin routes with the given mux. Every handler
// sits behind the admin token guard.
func Register(mux *http.ServeMux, d Deps) {
	guard := d.Guard.Middleware

	// Tenant and key management
	mux.Handle("POST /admin/tenants", guard(CreateTenantHandler{d.Tenants}))
	mux.Handle("POST /admin/tenants/{tenant_id}/keys", guard(IssueKeyHandler{d.Keys}))
	mux.Handle("GET /admin/tenants/{tenant_id}/keys", guard(ListKeysHandler{d.Keys}))
	mux.Handle("POST /admin/keys/{key_id}/revoke", guard(RevokeKeyHandler{d.Keys}))
	mux.Handle("POST /admin/keys/{key_id}/limits", guard(SetLimitsHandler{d.Keys}))
	mux.Handle("POST /admin/keys/{key_id}/tier", guard(SetTierHandler{d.Keys}))

	// Per-tenant usage analytics
	mux.Handle("GET /admin/tenants/{tenant_id}/usage/summary", guard(UsageSummaryHandler{d.Usage}))
	mux.Handle("GET /admin/tenants/{tenant_id}/usage/top-endpoints", guard(TopEndpointsHandler{d.Usage}))
	mux.Handle("GET /admin/tenants/{tenant_id}/usage/by-key", guard(UsageByKeyHandler{d.Usage}))
	mux.Handle("GET /admin/tenants/{tenant_id}/usage/status-classes", guard(StatusClassesHandler{d.Usage}))
	mux.Handle("GET /admin/tenants/{tenant_id}/usage/rate-limited", guard(RateLimitedHandler{d.Abuse}))
	mux.Handle("GET /admin/usage/events", guard(ListUsageEventsHandler{d.Usage}))

	// Abuse analytics
	mux.Handle("GET /admin/abuse/near-quota", guard(NearQuotaHandler{d.Usage}))
	mux.Handle("GET /admin/abuse/unauth", guard(UnauthTrafficHandler{d.Abuse}))
	mux.Handle("GET /admin/abuse/suspects", guard(SuspectsHandler{d.Abuse}))
	mux.Handle("GET /admin/abuse/rate-limited", guard(RateLimitedHandler{d.Abuse}))
	mux.Handle("GET /admin/abuse/ip-timeline", guard(IPTimelineHandler{d.Abuse}))

	// Blocklist controls
	mux.Handle("POST /admin/abuse/block-ip", guard(BlockIPHandler{d.Blocklist}))
	mux.Handle("POST /admin/abuse/unblock-ip", guard(UnblockIPHandler{d.Blocklist}))
	mux.Handle("GET /admin/abuse/blocked", guard(ListBlockedHandler{d.Blocklist}))
	mux.Handle("GET /admin/abuse/blocked/{ip}", guard(BlockedDetailsHandler{d.Blocklist}))
	mux.Handle("GET /admin/abuse/blocks-report", guard(BlocksReportHandler{d.Blocklist}))
	mux.Handle("GET /admin/abuse/block-events", guard(BlockEventsHandler{d.Blocklist}))
	mux.Handle("POST /admin/abuse/auto-block", guard(AutoBlockHandler{d.AutoBlock}))
	mux.Handle("POST /admin/abuse/one-click-block", guard(OneClickBlockHandler{d.AutoBlock}))
}
