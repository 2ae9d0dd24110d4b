// Package otel publishes authcore metrics through OpenTelemetry.
//
// [NewExporter] registers an Int64ObservableCounter per authcore counter and
// an Int64ObservableGauge per latency bucket on a caller-supplied Meter. One
// callback reads [authcore.Engine.MetricsSnapshot] on each collection.
package otel
