// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the gateway's domain metrics including:
//   - Blocklist metrics (active blocks, lifecycle events)
//   - Auto-block sweep metrics (runs, duration, blocked IPs)
//   - Database query metrics
//   - Connection pool statistics
//
// Request-level HTTP metrics are owned by the handler layer and are not
// defined here.
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "tollgate/internal/observability/metrics"
//
//	func runSweep() {
//	    start := time.Now()
//	    blocked, err := sweep()
//	    metrics.RecordSweepRun(err == nil, time.Since(start), blocked)
//	}
package metrics
