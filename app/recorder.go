package app

import (
	"context"

	"github.com/kilianp07/fleetpulse/core/events"
	"github.com/kilianp07/fleetpulse/core/logger"
	coremqtt "github.com/kilianp07/fleetpulse/core/mqtt"
	"github.com/kilianp07/fleetpulse/core/pipeline"
	"github.com/kilianp07/fleetpulse/core/runlog"
	"github.com/kilianp07/fleetpulse/core/vehiclestate"
)

// Recorder persists completed runs outside the pipeline: latest vehicle
// states, the run history and MQTT publication. Nil collaborators are skipped.
// Handle is wired as the pipeline's completion callback so no run is lost.
type Recorder struct {
	States    vehiclestate.Store
	RunLog    runlog.Store
	Publisher coremqtt.Publisher
	OnResult  func(events.RunCompletedEvent)
	Logger    logger.Logger
}

// Handle records one completed run.
func (r *Recorder) Handle(ctx context.Context, ev events.RunCompletedEvent) {
	if r.RunLog != nil {
		if err := r.RunLog.Append(ctx, runlog.FromEvent(ev, pipeline.OutcomeOf(ev.Err))); err != nil {
			r.Logger.Errorf("run log append: %v", err)
		}
	}
	if !ev.Succeeded() {
		return
	}
	if r.States != nil {
		if err := r.States.Upsert(ctx, ev.RunID, ev.Result.Summary.GeneratedAt, ev.Result.Vehicles); err != nil {
			r.Logger.Errorf("state upsert: %v", err)
		}
	}
	if r.Publisher != nil {
		if err := r.Publisher.PublishResult(ev.RunID, ev.Result); err != nil {
			r.Logger.Errorf("mqtt publish: %v", err)
		}
	}
	if r.OnResult != nil {
		r.OnResult(ev)
	}
}
