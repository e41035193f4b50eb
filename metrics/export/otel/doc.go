// Package otel exports edgeauth engine metrics through an OpenTelemetry meter.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per cumulative latency bucket. A single callback reads
// [edgeauth.Engine.MetricsSnapshot] on each collection cycle. The caller owns the
// MeterProvider.
package otel
