// Package telemetry wires OpenTelemetry tracing, metrics and the zap log
// bridge for the sync service. Every provider degrades to the global no-op
// implementation when its exporter is disabled, so callers never branch on
// whether telemetry is configured.
package telemetry
