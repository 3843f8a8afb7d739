package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/fleetpulse/core/events"
	"github.com/kilianp07/fleetpulse/core/model"
)

// Record captures one pipeline run and its outcome.
type Record struct {
	RunID      string                `json:"run_id"`
	Timestamp  time.Time             `json:"timestamp"`
	URL        string                `json:"url"`
	Outcome    string                `json:"outcome"`
	Error      string                `json:"error,omitempty"`
	DurationMS int64                 `json:"duration_ms"`
	Result     *model.PipelineResult `json:"result,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	VehicleID string
	Outcome   string
	Limit     int // most recent records only when > 0
}

// Store persists Records and supports querying. Records come back oldest first.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	Type       string `json:"type"` // jsonl, rotating, sqlite; empty disables the run log
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Open builds the Store described by cfg. It returns nil, nil when the run
// log is disabled.
func Open(cfg Config) (Store, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		size := cfg.MaxSizeMB
		if size <= 0 {
			size = 10
		}
		return NewRotatingJSONLStore(cfg.Path, size, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown run log type %q", cfg.Type)
	}
}

// FromEvent converts a completed run into a Record.
func FromEvent(ev events.RunCompletedEvent, outcome string) Record {
	rec := Record{
		RunID:      ev.RunID,
		Timestamp:  ev.Time,
		URL:        ev.URL,
		Outcome:    outcome,
		DurationMS: ev.Duration.Milliseconds(),
		Result:     ev.Result,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	return rec
}

// Match reports whether rec satisfies every filter of q except Limit.
func (q Query) Match(rec Record) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.Outcome != "" && rec.Outcome != q.Outcome {
		return false
	}
	if q.VehicleID != "" && (rec.Result == nil || !rec.Result.HasVehicle(q.VehicleID)) {
		return false
	}
	return true
}

func applyLimit(recs []Record, limit int) []Record {
	if limit > 0 && len(recs) > limit {
		return recs[len(recs)-limit:]
	}
	return recs
}
