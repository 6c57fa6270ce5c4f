package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type governanceMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	proposals  prometheus.Counter
	votes      *prometheus.CounterVec
	timelock   *prometheus.CounterVec
	events     *prometheus.CounterVec
	throttles  *prometheus.CounterVec
}

var (
	governanceMetricsOnce sync.Once
	governanceRegistry    *governanceMetrics
)

// GovernanceMetrics returns the lazily-initialised registry recording
// sequenced governance operations.
func GovernanceMetrics() *governanceMetrics {
	governanceMetricsOnce.Do(func() {
		governanceRegistry = &governanceMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gov",
				Subsystem: "node",
				Name:      "operations_total",
				Help:      "Total sequenced operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "gov",
				Subsystem: "node",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for sequenced operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			proposals: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "gov",
				Subsystem: "proposals",
				Name:      "created_total",
				Help:      "Count of proposals admitted.",
			}),
			votes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gov",
				Subsystem: "proposals",
				Name:      "votes_total",
				Help:      "Count of ballots recorded segmented by support.",
			}, []string{"support"}),
			timelock: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gov",
				Subsystem: "timelock",
				Name:      "transactions_total",
				Help:      "Count of timelock transactions segmented by action.",
			}, []string{"action"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gov",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gov",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by the rate limiter.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			governanceRegistry.operations,
			governanceRegistry.latency,
			governanceRegistry.proposals,
			governanceRegistry.votes,
			governanceRegistry.timelock,
			governanceRegistry.events,
			governanceRegistry.throttles,
		)
	})
	return governanceRegistry
}

// ObserveOperation records the outcome and latency of one sequenced operation.
func (m *governanceMetrics) ObserveOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordEvent tallies a committed event and the domain counters derived from it.
func (m *governanceMetrics) RecordEvent(eventType string, attrs map[string]string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
	switch {
	case eventType == "gov.proposal_created":
		m.proposals.Inc()
	case eventType == "gov.vote_cast":
		support := "against"
		if attrs["support"] == "true" {
			support = "for"
		}
		m.votes.WithLabelValues(support).Inc()
	case strings.HasPrefix(eventType, "timelock.") && strings.HasSuffix(eventType, "_transaction"):
		action := strings.TrimSuffix(strings.TrimPrefix(eventType, "timelock."), "_transaction")
		m.timelock.WithLabelValues(action).Inc()
	}
}

// RecordThrottle increments the rate limiter rejection counter for route.
func (m *governanceMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(route).Inc()
}
