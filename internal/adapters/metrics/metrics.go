// Package metrics exports poll service operation counters and latencies to
// Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

const (
	namespace = "polling"
	subsystem = "service"
)

type ServiceMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

var _ ports.OperationRecorder = (*ServiceMetrics)(nil)

// NewServiceMetrics registers the collectors on reg. Passing a fresh
// registry keeps tests independent of the global default.
func NewServiceMetrics(reg prometheus.Registerer) *ServiceMetrics {
	factory := promauto.With(reg)

	return &ServiceMetrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      "Poll service operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_duration_seconds",
				Help:      "Latency of poll service operations",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
			},
			[]string{"operation"},
		),
	}
}

// Observe labels the outcome with the error kind, "ok" for nil.
func (m *ServiceMetrics) Observe(operation string, err error, elapsed time.Duration) {
	m.Operations.WithLabelValues(operation, domain.KindName(err)).Inc()
	m.Duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
