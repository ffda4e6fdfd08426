package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cbkv-io/cbkv-go/internal/metrics"
)

// DispatchMetrics is the Prometheus implementation of the KV dispatcher's
// per-operation metrics collaborator.
type DispatchMetrics struct {
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
}

// NewDispatchMetrics returns a Prometheus-backed DispatchMetrics, or nil if
// metrics collection is disabled.
func NewDispatchMetrics() *DispatchMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &DispatchMetrics{
		latency: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cbkv_operation_latency_seconds",
				Help:    "KV operation latency by opcode.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"opcode"},
		),
		errors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbkv_operation_errors_total",
				Help: "Total number of KV operations that completed with an error, by error kind.",
			},
			[]string{"opcode", "kind"},
		),
	}
}

// ObserveLatency records how long one operation took to complete.
func (m *DispatchMetrics) ObserveLatency(opcode string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(opcode).Observe(d.Seconds())
}

// IncError records an operation completing with the given error kind.
func (m *DispatchMetrics) IncError(opcode, kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(opcode, kind).Inc()
}
