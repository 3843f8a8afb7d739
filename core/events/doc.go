// Package events defines the pipeline events emitted on the event bus.
//
// Available event types:
//   - StageEvent: a run moved to a new stage
//   - RunCompletedEvent: a run reached Done or Failed
package events
