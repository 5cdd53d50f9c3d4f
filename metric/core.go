package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "datahub"

// Metrics contains the hub-level metrics shared by all components.
// A nil *Metrics is valid; every Record method is then a no-op.
type Metrics struct {
	// Bus connection
	BusConnected      prometheus.Gauge
	BusRTT            prometheus.Gauge
	BusReconnects     prometheus.Counter
	BusCircuitBreaker prometheus.Gauge

	// Credentials
	TokenRefreshes *prometheus.CounterVec

	// Request scheduler
	RequestsInFlight prometheus.Gauge
	RequestsQueued   prometheus.Gauge
	RequestDuration  *prometheus.HistogramVec
	RequestsTotal    *prometheus.CounterVec

	// Discovery
	Discoveries *prometheus.CounterVec

	// Traffic
	MessagesPublished *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics creates the hub metrics. They are not registered until passed to a MetricsRegistry.
func NewMetrics() *Metrics {
	return &Metrics{
		BusConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "connected",
			Help:      "Bus connection status (0=disconnected, 1=connected)",
		}),

		BusRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "rtt_milliseconds",
			Help:      "Bus round-trip time in milliseconds",
		}),

		BusReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "reconnects_total",
			Help:      "Total number of bus reconnections",
		}),

		BusCircuitBreaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "circuit_breaker",
			Help:      "Connect circuit breaker status (0=closed, 1=open, 2=half-open)",
		}),

		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "token",
				Name:      "refreshes_total",
				Help:      "Token fetches by result (success, failure, cooldown)",
			},
			[]string{"result"},
		),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "in_flight",
			Help:      "Bus requests currently awaiting a reply",
		}),

		RequestsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queued",
			Help:      "Bus requests waiting for a scheduler slot",
		}),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "request_duration_seconds",
				Help:      "Bus request round-trip time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "requests_total",
				Help:      "Bus requests by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		Discoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "attempts_total",
				Help:      "Definition discovery attempts by strategy and result",
			},
			[]string{"strategy", "result"},
		),

		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "published_total",
				Help:      "Messages published by kind",
			},
			[]string{"kind"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Messages received by kind",
			},
			[]string{"kind"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Errors by component and class",
			},
			[]string{"component", "class"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BusConnected,
		m.BusRTT,
		m.BusReconnects,
		m.BusCircuitBreaker,
		m.TokenRefreshes,
		m.RequestsInFlight,
		m.RequestsQueued,
		m.RequestDuration,
		m.RequestsTotal,
		m.Discoveries,
		m.MessagesPublished,
		m.MessagesReceived,
		m.ErrorsTotal,
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RecordBusStatus updates the connection gauge
func (m *Metrics) RecordBusStatus(connected bool) {
	if m == nil {
		return
	}
	m.BusConnected.Set(boolGauge(connected))
}

// RecordBusRTT updates the round-trip time gauge
func (m *Metrics) RecordBusRTT(rtt time.Duration) {
	if m == nil {
		return
	}
	m.BusRTT.Set(float64(rtt.Milliseconds()))
}

// RecordBusReconnect increments the reconnection counter
func (m *Metrics) RecordBusReconnect() {
	if m == nil {
		return
	}
	m.BusReconnects.Inc()
}

// RecordCircuitBreakerState updates the circuit breaker gauge
func (m *Metrics) RecordCircuitBreakerState(state int) {
	if m == nil {
		return
	}
	m.BusCircuitBreaker.Set(float64(state))
}

// RecordTokenRefresh counts a token fetch attempt
func (m *Metrics) RecordTokenRefresh(result string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(result).Inc()
}

// RecordSchedulerDepth updates the in-flight and queued gauges
func (m *Metrics) RecordSchedulerDepth(inFlight, queued int) {
	if m == nil {
		return
	}
	m.RequestsInFlight.Set(float64(inFlight))
	m.RequestsQueued.Set(float64(queued))
}

// RecordRequest observes one bus request
func (m *Metrics) RecordRequest(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
	m.RequestsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordDiscovery counts a discovery attempt
func (m *Metrics) RecordDiscovery(strategy, result string) {
	if m == nil {
		return
	}
	m.Discoveries.WithLabelValues(strategy, result).Inc()
}

// RecordPublished increments the published counter
func (m *Metrics) RecordPublished(kind string) {
	if m == nil {
		return
	}
	m.MessagesPublished.WithLabelValues(kind).Inc()
}

// RecordReceived increments the received counter
func (m *Metrics) RecordReceived(kind string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(kind).Inc()
}

// RecordError increments the error counter
func (m *Metrics) RecordError(component, class string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, class).Inc()
}
