package events

import (
	"time"

	"github.com/kilianp07/fleetpulse/core/model"
)

// RunCompletedEvent is published once a run is terminal. Exactly one of
// Result and Err is set.
type RunCompletedEvent struct {
	RunID    string
	URL      string
	Result   *model.PipelineResult
	Err      error
	Duration time.Duration
	Time     time.Time
}

// Succeeded reports whether the run produced a result.
func (e RunCompletedEvent) Succeeded() bool { return e.Err == nil && e.Result != nil }
