package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/datahub/metric"
)

// Metrics are the Prometheus series of one named pool. Register them once
// and hand them to every Pool that replaces the previous one.
type Metrics struct {
	depth    prometheus.Gauge
	items    *prometheus.CounterVec
	duration prometheus.Histogram
}

// RegisterMetrics registers datahub_<name>_queue_depth,
// datahub_<name>_items_total{outcome} and datahub_<name>_duration_seconds.
func RegisterMetrics(registry *metric.MetricsRegistry, name string) (*Metrics, error) {
	prefix := "datahub_" + name
	m := &Metrics{
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_queue_depth",
			Help: "Items waiting for a worker",
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_items_total",
			Help: "Items by outcome: queued, done, failed or dropped",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_duration_seconds",
			Help:    "Time spent in the processor per item",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}

	owner := "worker_" + name
	if err := registry.RegisterGauge(owner, "queue_depth", m.depth); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(owner, "items_total", m.items); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(owner, "duration_seconds", m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) outcome(o string) {
	if m != nil {
		m.items.WithLabelValues(o).Inc()
	}
}

func (m *Metrics) setDepth(n int) {
	if m != nil {
		m.depth.Set(float64(n))
	}
}

func (m *Metrics) observe(seconds float64) {
	if m != nil {
		m.duration.Observe(seconds)
	}
}
