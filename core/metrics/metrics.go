package metrics

import (
	"time"

	"github.com/kilianp07/fleetpulse/core/model"
)

// Run outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeTransportError = "transport_error"
	OutcomeDecodeError    = "decode_error"
)

// RunEvent describes one finished pipeline run.
type RunEvent struct {
	RunID      string
	URL        string
	Outcome    string
	ErrorKind  string // transport or decode error kind, empty on success
	Duration   time.Duration
	Summary    *model.FleetSummary // nil unless Outcome is OutcomeSuccess
	SoftErrors int
	Time       time.Time
}

// MetricsSink records pipeline runs for observability purposes.
type MetricsSink interface {
	RecordRun(ev RunEvent) error
}

// VehicleStateEvent is the annotated state of one vehicle in a run.
type VehicleStateEvent struct {
	RunID   string
	Vehicle model.AnnotatedRecord
	Time    time.Time
}

// VehicleStateRecorder records per-vehicle snapshots.
type VehicleStateRecorder interface {
	RecordVehicleStates(evs []VehicleStateEvent) error
}

// StageTiming is the time a run spent in one stage.
type StageTiming struct {
	RunID    string
	Stage    model.Stage
	Duration time.Duration
}

// StageRecorder records stage durations.
type StageRecorder interface {
	RecordStageDuration(t StageTiming) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error                      { return nil }
func (NopSink) RecordVehicleStates([]VehicleStateEvent) error { return nil }
func (NopSink) RecordStageDuration(StageTiming) error         { return nil }

// VehicleStates builds the snapshot events of a successful result.
func VehicleStates(runID string, res *model.PipelineResult) []VehicleStateEvent {
	if res == nil {
		return nil
	}
	out := make([]VehicleStateEvent, len(res.Vehicles))
	for i, v := range res.Vehicles {
		out[i] = VehicleStateEvent{RunID: runID, Vehicle: v, Time: res.Summary.GeneratedAt}
	}
	return out
}
