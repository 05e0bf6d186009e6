// Package observability wires OpenTelemetry tracing and metrics into the
// SDK.
//
// Instrumentation is opt-in: components call the nil-safe RequestMetrics
// methods unconditionally, and nothing is recorded until the application
// initializes a provider (InitTracer/InitMeter) or supplies its own.
package observability
