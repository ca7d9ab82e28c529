package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its corresponding normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// uuidSeg matches a canonical UUID path segment (tenant and key IDs).
const uuidSeg = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

// pathPatterns defines the list of patterns for dynamic routes.
// Patterns are evaluated in order from most specific to least specific.
// Pre-compiled at initialization for optimal performance (<1μs per operation).
var pathPatterns = []*PathPattern{
	// Tenant routes with IDs
	{Pattern: regexp.MustCompile(`^/admin/tenants/` + uuidSeg + `/keys$`), Template: "/admin/tenants/:id/keys"},
	{Pattern: regexp.MustCompile(`^/admin/tenants/` + uuidSeg + `/usage/summary$`), Template: "/admin/tenants/:id/usage/summary"},
	{Pattern: regexp.MustCompile(`^/admin/tenants/` + uuidSeg + `/usage/top-endpoints$`), Template: "/admin/tenants/:id/usage/top-endpoints"},
	{Pattern: regexp.MustCompile(`^/admin/tenants/` + uuidSeg + `/usage/by-key$`), Template: "/admin/tenants/:id/usage/by-key"},
	{Pattern: regexp.MustCompile(`^/admin/tenants/` + uuidSeg + `/usage/status-classes$`), Template: "/admin/tenants/:id/usage/status-classes"},
	{Pattern: regexp.MustCompile(`^/admin/tenants/` + uuidSeg + `/usage/rate-limited$`), Template: "/admin/tenants/:id/usage/rate-limited"},

	// Key routes with IDs
	{Pattern: regexp.MustCompile(`^/admin/keys/` + uuidSeg + `/revoke$`), Template: "/admin/keys/:id/revoke"},
	{Pattern: regexp.MustCompile(`^/admin/keys/` + uuidSeg + `/limits$`), Template: "/admin/keys/:id/limits"},
	{Pattern: regexp.MustCompile(`^/admin/keys/` + uuidSeg + `/tier$`), Template: "/admin/keys/:id/tier"},

	// Blocklist lookup keyed by client IP
	{Pattern: regexp.MustCompile(`^/admin/abuse/blocked/[^/]+$`), Template: "/admin/abuse/blocked/:ip"},
}

// NormalizePath normalizes dynamic URL paths to prevent metrics label cardinality explosion.
// It converts paths with IDs (e.g., /admin/keys/9c1f.../revoke) to template format
// (e.g., /admin/keys/:id/revoke). Static paths remain unchanged.
//
// Performance: <1μs per operation (pre-compiled regex patterns)
//
// Examples:
//
//	NormalizePath("/admin/keys/6f1c2a9e-.../revoke")  // "/admin/keys/:id/revoke"
//	NormalizePath("/admin/abuse/blocked/203.0.113.9") // "/admin/abuse/blocked/:ip"
//	NormalizePath("/admin/usage/events")              // "/admin/usage/events" (unchanged)
//	NormalizePath("/protected")                       // "/protected" (unchanged)
//	NormalizePath("/health")                          // "/health" (unchanged)
//
// Query parameters and trailing slashes are handled:
//
//	NormalizePath("/admin/usage/events?limit=10")     // "/admin/usage/events"
//	NormalizePath("/admin/abuse/blocked/")            // "/admin/abuse/blocked"
func NormalizePath(path string) string {
	// Strip query parameters if present
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Strip trailing slash if present (except for root path)
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	// Try to match against known patterns
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}

	// No match found, return original path
	// This is safe - static paths like /health, /metrics, /protected
	// and list endpoints like /admin/usage/events will pass through unchanged
	return path
}

// GetExpectedCardinality returns the expected number of unique path labels
// after normalization. This is useful for capacity planning and monitoring.
func GetExpectedCardinality() int {
	// Count template patterns
	templateCount := len(pathPatterns)

	// Estimate static endpoints
	staticCount := 20 // /health, /metrics, /protected, static /admin routes

	// Total expected cardinality
	return templateCount + staticCount
}
