package events

import (
	"time"

	"github.com/kilianp07/fleetpulse/core/model"
)

// StageEvent is published on every state machine transition of a run.
// Elapsed is the time spent in From.
type StageEvent struct {
	RunID   string        `json:"runId"`
	From    model.Stage   `json:"from"`
	Stage   model.Stage   `json:"stage"`
	Elapsed time.Duration `json:"elapsed"`
	Time    time.Time     `json:"time"`
}
