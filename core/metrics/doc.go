// Package metrics defines the sink interfaces used to observe pipeline runs.
// Sinks record RunEvent values and may implement the optional
// VehicleStateRecorder and StageRecorder interfaces. Implementations live in
// infra/metrics and register themselves with the factory so that
// NewMetricsSink can build them from configuration; several configured sinks
// are combined in a MultiSink.
package metrics
