package metrics

import (
	"time"
)

// RecordBlockEvent records a block lifecycle event.
// EventType should be either "block" or "unblock".
func RecordBlockEvent(eventType string) {
	BlockEventsTotal.WithLabelValues(eventType).Inc()
}

// UpdateActiveBlockedIPs updates the gauge of currently blocked IPs.
// This should be refreshed whenever the blocklist report runs.
func UpdateActiveBlockedIPs(count int) {
	BlockedIPsActive.Set(float64(count))
}

// RecordStaleIndexEvictions records index entries removed because their
// backing block key had already expired.
func RecordStaleIndexEvictions(count int) {
	StaleIndexEntriesRemoved.Add(float64(count))
}

// RecordSweepRun records the outcome of one auto-block sweep execution.
func RecordSweepRun(success bool, duration time.Duration, blocked int) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	SweepRunsTotal.WithLabelValues(outcome).Inc()
	SweepDuration.Observe(duration.Seconds())
	if blocked > 0 {
		SweepBlockedIPs.Add(float64(blocked))
	}
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "insert_usage_event", "select_api_key").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
