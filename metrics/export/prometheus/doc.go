// Package prometheus exposes authcore metrics to Prometheus.
//
// [Exporter] implements the client_golang Collector interface over
// [authcore.Engine.MetricsSnapshot]. Register it with any Registerer, or mount
// [Exporter.Handler], which serves it from a private registry. Counter names
// are authcore_*_total and the single histogram is
// authcore_session_resolve_latency_seconds.
package prometheus
