// Package metric provides the Prometheus metrics registry and HTTP server of
// the runtime.
//
// The registry holds two kinds of metrics:
//
//  1. Core metrics (Metrics type): runtime-wide vectors labelled by artefact,
//     such as events in and out, drops, processing duration and errors by
//     failure kind.
//  2. Artefact metrics: collectors an onramp, operator or offramp registers
//     for itself through RegisterCounter, RegisterGauge or RegisterHistogram, keyed
//     "<service>.<metric>" so duplicates are rejected.
//
// Components accept a nil *MetricsRegistry and then skip metrics entirely.
//
// # Usage
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9898, "/metrics", registry)
//	if err := server.Listen(); err != nil {
//	    return err
//	}
//	go server.Serve()
//	defer server.Stop()
//
//	registry.CoreMetrics().RecordEventIn("pipeline-main", "in")
//
// The server exposes OpenMetrics at the configured path and a plain
// /health endpoint.
package metric
