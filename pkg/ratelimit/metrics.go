package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics receives limiter outcomes.
type Metrics interface {
	RecordDecision(allowed bool)
	RecordError()
}

// NoopMetrics discards all observations.
type NoopMetrics struct{}

func (NoopMetrics) RecordDecision(bool) {}
func (NoopMetrics) RecordError()        {}

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_decisions_total",
		Help: "Rate limit decisions by outcome.",
	}, []string{"outcome"})

	errorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_errors_total",
		Help: "Rate limit checks that failed due to a store error.",
	})
)

// PromMetrics reports limiter outcomes to the default Prometheus registry.
type PromMetrics struct{}

// RecordDecision counts an allowed or denied decision.
func (PromMetrics) RecordDecision(allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	decisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordError counts a failed check.
func (PromMetrics) RecordError() {
	errorsTotal.Inc()
}
