// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	// Submission loop metrics
	TicksTotal         *prometheus.CounterVec
	SubmissionsTotal   *prometheus.CounterVec
	LastSubmissionTime prometheus.Gauge

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Link metrics
	LinkState          prometheus.Gauge
	LinkConnectsTotal  prometheus.Counter
	LinkAttemptsFailed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_heartbeat"
	}

	return &Metrics{
		TicksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Total number of submission loop ticks by outcome",
		}, []string{"outcome"}),
		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "submissions_total",
			Help:      "Total number of transaction submissions by status",
		}, []string{"status"}),
		LastSubmissionTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "last_submission_timestamp",
			Help:      "Unix timestamp of last accepted submission",
		}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "Total number of RPC call failures by method and kind",
		}, []string{"method", "kind"}),
		LinkState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "state",
			Help:      "Connectivity state (0=disconnected 1=connecting 2=connected 3=failed)",
		}),
		LinkConnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "connects_total",
			Help:      "Total number of successful link establishments",
		}),
		LinkAttemptsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "attempts_failed_total",
			Help:      "Total number of failed connect attempts",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordTick records one submission loop tick outcome.
func RecordTick(outcome string) {
	DefaultMetrics.TicksTotal.WithLabelValues(outcome).Inc()
}

// RecordSubmission records a transaction submission status.
func RecordSubmission(status string) {
	DefaultMetrics.SubmissionsTotal.WithLabelValues(status).Inc()
}

// SetLastSubmission updates the last accepted submission timestamp.
func SetLastSubmission(unixSeconds float64) {
	DefaultMetrics.LastSubmissionTime.Set(unixSeconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRPCError records an RPC call failure.
func RecordRPCError(method, kind string) {
	DefaultMetrics.RPCCallErrors.WithLabelValues(method, kind).Inc()
}

// SetLinkState updates the connectivity state gauge.
func SetLinkState(state int) {
	DefaultMetrics.LinkState.Set(float64(state))
}

// RecordLinkConnect records a successful link establishment.
func RecordLinkConnect() {
	DefaultMetrics.LinkConnectsTotal.Inc()
}

// RecordLinkAttemptFailed records a failed connect attempt.
func RecordLinkAttemptFailed() {
	DefaultMetrics.LinkAttemptsFailed.Inc()
}
