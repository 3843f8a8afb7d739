package mqtt

import (
	"errors"

	"github.com/kilianp07/fleetpulse/core/model"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt client not connected")

// Publisher pushes pipeline results to a message broker.
type Publisher interface {
	// PublishResult sends the fleet summary and one message per vehicle.
	PublishResult(runID string, res *model.PipelineResult) error
}

// PollRequest asks the service to run the pipeline now. An empty URL means
// the configured source.
type PollRequest struct {
	CommandID string `json:"command_id"`
	URL       string `json:"url,omitempty"`
}

// SummaryMessage is the payload published on <prefix>/summary.
type SummaryMessage struct {
	MessageID string              `json:"message_id"`
	RunID     string              `json:"run_id"`
	Summary   model.FleetSummary  `json:"summary"`
	Errors    []model.RecordError `json:"errors"`
}

// VehicleMessage is the payload published on <prefix>/vehicles/<id>.
type VehicleMessage struct {
	MessageID string                `json:"message_id"`
	RunID     string                `json:"run_id"`
	Vehicle   model.AnnotatedRecord `json:"vehicle"`
}
