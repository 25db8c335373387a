// Package health tracks the liveness of running artefacts.
//
// A Monitor holds one Status per artefact, keyed by artefact URL, and
// aggregates them into a single system status:
//
//   - every artefact healthy: healthy
//   - any artefact unhealthy: unhealthy
//   - otherwise, any artefact degraded: degraded
//
// Monitor implements http.Handler and serves the aggregate as JSON,
// answering 503 when it is unhealthy. Messages derived from errors are
// sanitized so addresses and credentials do not leak through the endpoint.
//
//	monitor := health.NewMonitor()
//	monitor.SetHealthy("tremor://localhost/onramp/in", "running")
//	monitor.SetUnhealthy("tremor://localhost/pipeline/main", err.Error())
//	status := monitor.Aggregate("world")
package health
