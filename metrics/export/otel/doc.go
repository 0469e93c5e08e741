// Package otel binds skyAuth counters to OpenTelemetry observable
// instruments. The caller owns the MeterProvider; each histogram bucket is
// published as a cumulative gauge.
package otel
