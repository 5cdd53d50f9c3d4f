// Package health tracks the state of the hub clients running in a process.
//
// Each provider or consumer reports one of four levels:
//   - connecting: waiting for the bus session or the first definition
//   - healthy: connected and serving
//   - degraded: connected but discovery or a request failed
//   - unhealthy: credentials rejected or the session closed
//
// A Monitor collects those statuses by client name, notifies watchers when a
// level changes and serves the aggregate as JSON:
//
//	monitor := health.NewMonitor()
//	monitor.UpdateConnecting("consumer/plc-1", "acquiring session")
//	stop := monitor.Watch(func(s health.Status) {
//	    logger.Info("Status changed", "client", s.Component, "status", s.Status)
//	})
//	defer stop()
//
//	metricsServer.SetHealthHandler(monitor.Handler("datahub"))
//
// Error messages passed through FromError are sanitized: URLs, file paths,
// IP addresses, ports and credential-looking pairs are replaced with
// placeholders before they reach the status.
package health
