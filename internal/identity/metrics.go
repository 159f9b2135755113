package identity

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for identity operations.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	leaseRenewals     *prometheus.CounterVec
	checksTotal       *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton identity metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

// MustRegister registers the identity metric collectors with the given
// Prometheus registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.leaseRenewals,
		m.checksTotal,
	)
}

// observe records one operation outcome.
func (m *Metrics) observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operationsTotal.WithLabelValues(op, result).Inc()
	m.operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func newMetrics() *Metrics {
	return &Metrics{
		operationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idbridge",
				Subsystem: "identity",
				Name:      "operations_total",
				Help:      "Total number of identity operations",
			},
			[]string{"operation", "result"},
		),
		operationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "idbridge",
				Subsystem: "identity",
				Name:      "operation_duration_seconds",
				Help:      "Duration of identity operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		leaseRenewals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idbridge",
				Subsystem: "identity",
				Name:      "lease_renewals_total",
				Help:      "Total number of credential lease renewals",
			},
			[]string{"result"},
		),
		checksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idbridge",
				Subsystem: "identity",
				Name:      "checks_total",
				Help:      "Total number of role and permission checks",
			},
			[]string{"check", "outcome"},
		),
	}
}
