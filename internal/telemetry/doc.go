// Package telemetry holds the ambient observability stack shared across
// components: Prometheus metrics registration and the OpenTelemetry
// tracer provider setup backing each package's span-per-invocation calls.
package telemetry
