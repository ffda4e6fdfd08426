// Package prometheus provides the Prometheus-backed implementations of the
// client's metrics collaborators: per-node connection pool gauges and
// per-operation dispatch counters/histograms.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cbkv-io/cbkv-go/internal/metrics"
)

// PoolMetrics is the Prometheus implementation of kvpool.PoolMetrics.
type PoolMetrics struct {
	liveConnections  *prometheus.GaugeVec
	recoveryAttempts *prometheus.CounterVec
	recoveryFailures *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
}

// NewPoolMetrics returns a Prometheus-backed PoolMetrics, or nil if
// metrics collection is disabled.
func NewPoolMetrics() *PoolMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &PoolMetrics{
		liveConnections: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cbkv_pool_live_connections",
				Help: "Number of live connections in a node's connection pool.",
			},
			[]string{"node"},
		),
		recoveryAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbkv_pool_recovery_attempts_total",
				Help: "Total number of connection recovery attempts by node.",
			},
			[]string{"node"},
		),
		recoveryFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbkv_pool_recovery_failures_total",
				Help: "Total number of connection recovery attempts that failed to dial.",
			},
			[]string{"node"},
		),
		queueDepth: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cbkv_pool_queue_depth",
				Help: "Number of operations currently queued for a node's connection pool.",
			},
			[]string{"node"},
		),
	}
}

// SetLiveConnections implements kvpool.PoolMetrics.
func (m *PoolMetrics) SetLiveConnections(node string, n int) {
	if m == nil {
		return
	}
	m.liveConnections.WithLabelValues(node).Set(float64(n))
}

// IncRecoveryAttempt implements kvpool.PoolMetrics.
func (m *PoolMetrics) IncRecoveryAttempt(node string) {
	if m == nil {
		return
	}
	m.recoveryAttempts.WithLabelValues(node).Inc()
}

// IncRecoveryFailure implements kvpool.PoolMetrics.
func (m *PoolMetrics) IncRecoveryFailure(node string) {
	if m == nil {
		return
	}
	m.recoveryFailures.WithLabelValues(node).Inc()
}

// SetQueueDepth implements kvpool.PoolMetrics.
func (m *PoolMetrics) SetQueueDepth(node string, n int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(node).Set(float64(n))
}
