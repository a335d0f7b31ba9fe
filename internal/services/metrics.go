package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Decision engine metrics
	Decisions        *prometheus.CounterVec // by outcome
	ActionsExecuted  *prometheus.CounterVec // by kind
	DecisionLatency  prometheus.Histogram
	DegradedClassify prometheus.Counter

	// Gateway metrics
	GatewayCalls    *prometheus.CounterVec // by endpoint + source
	GatewayErrors   *prometheus.CounterVec // by kind
	RateLimitStalls prometheus.Counter
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "echoreach_decisions_total",
			Help: "Total number of item decisions by terminal outcome",
		}, []string{"outcome"}),

		ActionsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "echoreach_actions_executed_total",
			Help: "Total number of executed actions by kind",
		}, []string{"kind"}),

		DecisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "echoreach_decision_duration_seconds",
			Help:    "End-to-end item decision latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}, // classification + generation can be slow
		}),

		DegradedClassify: promauto.NewCounter(prometheus.CounterOpts{
			Name: "echoreach_degraded_classifications_total",
			Help: "Total number of heuristic fallback classifications",
		}),

		GatewayCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "echoreach_gateway_calls_total",
			Help: "Total number of gateway results by endpoint and source",
		}, []string{"endpoint", "source"}),

		GatewayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "echoreach_gateway_errors_total",
			Help: "Total number of gateway failures by classification",
		}, []string{"kind"}),

		RateLimitStalls: promauto.NewCounter(prometheus.CounterOpts{
			Name: "echoreach_rate_limit_stalls_total",
			Help: "Total number of calls refused because an endpoint was rate limited with no cached fallback",
		}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordDecision records a terminal item outcome
func (m *Metrics) RecordDecision(outcome string) {
	m.Decisions.WithLabelValues(outcome).Inc()
}

// RecordAction records an executed action
func (m *Metrics) RecordAction(kind string) {
	m.ActionsExecuted.WithLabelValues(kind).Inc()
}

// RecordDecisionLatency records end-to-end decision latency
func (m *Metrics) RecordDecisionLatency(seconds float64) {
	m.DecisionLatency.Observe(seconds)
}

// RecordDegradedClassification records a heuristic fallback classification
func (m *Metrics) RecordDegradedClassification() {
	m.DegradedClassify.Inc()
}

// RecordGatewayCall records a gateway result by source
func (m *Metrics) RecordGatewayCall(endpoint, source string) {
	m.GatewayCalls.WithLabelValues(endpoint, source).Inc()
}

// RecordGatewayError records a classified gateway failure
func (m *Metrics) RecordGatewayError(kind string) {
	m.GatewayErrors.WithLabelValues(kind).Inc()
}

// RecordRateLimitStall records a refused call with no fallback
func (m *Metrics) RecordRateLimitStall() {
	m.RateLimitStalls.Inc()
}
