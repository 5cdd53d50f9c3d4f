// Package metric provides Prometheus metrics for the hub client and an HTTP
// server that exposes them.
//
// A MetricsRegistry owns a private prometheus.Registry. It registers the hub
// metrics (bus connectivity, token refreshes, scheduler depth and latency,
// discovery attempts, message traffic and errors) together with the Go runtime
// and process collectors. Components register their own collectors through
// the MetricsRegistrar interface; registering the same owner and name twice
// returns an invalid-class error.
//
// # Basic Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(":9090", "/metrics", registry)
//	if err := server.Start(); err != nil {
//	    return err
//	}
//	defer server.Stop()
//
//	m := registry.CoreMetrics()
//	m.RecordBusStatus(true)
//	m.RecordRequest("read", "ok", 12*time.Millisecond)
//
// # Component Metrics
//
//	hits := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "datahub",
//	    Subsystem: "cache",
//	    Name:      "hits_total",
//	})
//	if err := registry.RegisterCounter("definitions", "cache_hits", hits); err != nil {
//	    return err
//	}
//
// A nil *Metrics is accepted everywhere, so components built without a
// registry call the Record methods unconditionally.
package metric
