// Package tracing provides OpenTelemetry tracing integration.
//
// Key features:
//   - Automatic HTTP request tracing via middleware
//   - Request ID correlation on spans
//   - Cross-service trace propagation
//
// Example usage:
//
//	import "tollgate/internal/observability/tracing"
//
//	func processRequest(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "process-request")
//	    defer span.End()
//	    // ... process request ...
//	}
package tracing
