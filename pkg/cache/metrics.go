package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/datahub/metric"
)

type storeMetrics struct {
	ops     *prometheus.CounterVec
	entries prometheus.Gauge
}

func registerStoreMetrics(registry *metric.MetricsRegistry, name string) (*storeMetrics, error) {
	labels := prometheus.Labels{"cache": name}
	m := &storeMetrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "datahub",
			Subsystem:   "cache",
			Name:        "operations_total",
			Help:        "Cache operations by kind: hit, miss, set, delete, evict",
			ConstLabels: labels,
		}, []string{"op"}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "datahub",
			Subsystem:   "cache",
			Name:        "entries",
			Help:        "Entries currently held",
			ConstLabels: labels,
		}),
	}

	owner := "cache_" + name
	if err := registry.RegisterCounterVec(owner, "operations_total", m.ops); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(owner, "entries", m.entries); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *storeMetrics) op(kind string) {
	if m != nil {
		m.ops.WithLabelValues(kind).Inc()
	}
}

func (m *storeMetrics) evicted(n int) {
	if m != nil {
		m.ops.WithLabelValues("evict").Add(float64(n))
	}
}

func (m *storeMetrics) size(n int) {
	if m != nil {
		m.entries.Set(float64(n))
	}
}
