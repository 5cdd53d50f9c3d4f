package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/datahub/errors"
)

// MetricsRegistrar defines the interface for registering component-specific metrics
type MetricsRegistrar interface {
	RegisterCounter(owner, metricName string, counter prometheus.Counter) error
	RegisterGauge(owner, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(owner, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(owner, metricName string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(owner, metricName string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(owner, metricName string, histogramVec *prometheus.HistogramVec) error
	Unregister(owner, metricName string) bool
}

// MetricsRegistry owns a Prometheus registry, the hub metrics, and any
// collectors registered by individual components.
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewMetricsRegistry creates a registry with the hub metrics and Go runtime collectors
func NewMetricsRegistry() *MetricsRegistry {
	registry := &MetricsRegistry{
		prometheusRegistry: prometheus.NewRegistry(),
		registeredMetrics:  make(map[string]prometheus.Collector),
		Metrics:            NewMetrics(),
	}

	registry.prometheusRegistry.MustRegister(registry.Metrics.collectors()...)
	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the hub metrics
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

// RegisterCounter registers a counter owned by a component
func (r *MetricsRegistry) RegisterCounter(owner, metricName string, counter prometheus.Counter) error {
	return r.register("RegisterCounter", owner, metricName, counter)
}

// RegisterGauge registers a gauge owned by a component
func (r *MetricsRegistry) RegisterGauge(owner, metricName string, gauge prometheus.Gauge) error {
	return r.register("RegisterGauge", owner, metricName, gauge)
}

// RegisterHistogram registers a histogram owned by a component
func (r *MetricsRegistry) RegisterHistogram(owner, metricName string, histogram prometheus.Histogram) error {
	return r.register("RegisterHistogram", owner, metricName, histogram)
}

// RegisterCounterVec registers a counter vector owned by a component
func (r *MetricsRegistry) RegisterCounterVec(owner, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register("RegisterCounterVec", owner, metricName, counterVec)
}

// RegisterGaugeVec registers a gauge vector owned by a component
func (r *MetricsRegistry) RegisterGaugeVec(owner, metricName string, gaugeVec *prometheus.GaugeVec) error {
	return r.register("RegisterGaugeVec", owner, metricName, gaugeVec)
}

// RegisterHistogramVec registers a histogram vector owned by a component
func (r *MetricsRegistry) RegisterHistogramVec(
	owner, metricName string, histogramVec *prometheus.HistogramVec) error {
	return r.register("RegisterHistogramVec", owner, metricName, histogramVec)
}

func (r *MetricsRegistry) register(method, owner, metricName string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, metricName)

	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for %s", metricName, owner),
			"MetricsRegistry", method, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(c); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "MetricsRegistry", method,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", method,
			"failed to register collector with prometheus")
	}

	r.registeredMetrics[key] = c
	return nil
}

// Unregister removes a component metric from the registry
func (r *MetricsRegistry) Unregister(owner, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, metricName)

	collector, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registeredMetrics, key)
	}

	return success
}
