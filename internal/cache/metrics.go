package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for cache operations.
type Metrics struct {
	hitsTotal       *prometheus.CounterVec
	missesTotal     *prometheus.CounterVec
	evictionsTotal  *prometheus.CounterVec
	sizeGauge       *prometheus.GaugeVec
	invalidations   *prometheus.CounterVec
	computeDuration *prometheus.HistogramVec

	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton cache metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = newMetrics()
	})
	return metricsInstance
}

// MustRegister registers all cache metric collectors with the given
// Prometheus registry. promauto registers metrics with the default
// global registry, but the service serves /metrics from a custom
// registry. Calling MustRegister bridges the two so cache metrics
// appear on the service's metrics endpoint.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.hitsTotal,
		m.missesTotal,
		m.evictionsTotal,
		m.sizeGauge,
		m.invalidations,
		m.computeDuration,
		m.operationDuration,
		m.errorsTotal,
	)
}

// Init pre-initializes common label combinations with zero values so
// that metrics appear in /metrics output immediately after startup.
// Prometheus *Vec types only emit metric lines after WithLabelValues()
// is called at least once. Idempotent.
func (m *Metrics) Init(regions []string) {
	for _, backend := range []string{"memory", "redis"} {
		for _, region := range regions {
			m.hitsTotal.WithLabelValues(backend, region)
			m.missesTotal.WithLabelValues(backend, region)
			m.evictionsTotal.WithLabelValues(backend, region)
			m.sizeGauge.WithLabelValues(backend, region)
		}
		for _, op := range []string{"get", "set", "delete", "clear"} {
			m.operationDuration.WithLabelValues(backend, op)
			m.errorsTotal.WithLabelValues(backend, op)
		}
	}
	for _, region := range regions {
		m.invalidations.WithLabelValues(region)
		m.computeDuration.WithLabelValues(region)
	}
}

func newMetrics() *Metrics {
	return &Metrics{
		hitsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idbridge",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"backend", "region"},
		),
		missesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idbridge",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"backend", "region"},
		),
		evictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idbridge",
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Total number of cache evictions",
			},
			[]string{"backend", "region"},
		),
		sizeGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "idbridge",
				Subsystem: "cache",
				Name:      "size",
				Help:      "Current number of items in cache",
			},
			[]string{"backend", "region"},
		),
		invalidations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idbridge",
				Subsystem: "cache",
				Name:      "invalidations_total",
				Help:      "Total number of region invalidations",
			},
			[]string{"region"},
		),
		computeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "idbridge",
				Subsystem: "cache",
				Name:      "compute_duration_seconds",
				Help:      "Duration of origin computations on cache miss",
				Buckets: []float64{
					.001, .005, .01, .025, .05,
					.1, .25, .5, 1, 2.5,
				},
			},
			[]string{"region"},
		),
		operationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "idbridge",
				Subsystem: "cache",
				Name:      "operation_duration_seconds",
				Help:      "Duration of cache operations",
				Buckets: []float64{
					.0001, .0005, .001, .005,
					.01, .025, .05, .1,
				},
			},
			[]string{"backend", "operation"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "idbridge",
				Subsystem: "cache",
				Name:      "errors_total",
				Help:      "Total number of cache errors",
			},
			[]string{"backend", "operation"},
		),
	}
}
