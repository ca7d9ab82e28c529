// Package metrics provides centralized Prometheus metrics for the
// gateway's domain operations. Request-level HTTP metrics live in the
// handler layer; the metrics here cover the blocklist, the usage log,
// the auto-block sweep, and the database pool.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Blocklist metrics track IP block lifecycle
var (
	// BlockedIPsActive tracks the number of currently blocked IPs,
	// refreshed by the blocklist report reconciliation.
	BlockedIPsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blocklist_active_ips",
			Help: "Number of currently blocked client IPs",
		},
	)

	// BlockEventsTotal counts block lifecycle events by type
	BlockEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blocklist_events_total",
			Help: "Total number of block lifecycle events",
		},
		[]string{"event_type"}, // block / unblock
	)

	// StaleIndexEntriesRemoved counts index entries evicted during
	// report reconciliation.
	StaleIndexEntriesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blocklist_stale_index_entries_removed_total",
			Help: "Index entries evicted because their backing key disappeared",
		},
	)
)

// Sweep metrics track the periodic auto-block run
var (
	// SweepRunsTotal counts sweep executions by outcome
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoblock_sweep_runs_total",
			Help: "Total number of auto-block sweep executions",
		},
		[]string{"outcome"}, // success / failure
	)

	// SweepBlockedIPs counts IPs blocked by sweep runs
	SweepBlockedIPs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autoblock_sweep_blocked_ips_total",
			Help: "Total number of IPs blocked by the sweep",
		},
	)

	// SweepDuration measures time per sweep run
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autoblock_sweep_duration_seconds",
			Help:    "Time taken by one auto-block sweep run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)
