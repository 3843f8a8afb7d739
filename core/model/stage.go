package model

// Stage is a state of the pipeline state machine.
type Stage int

const (
	StageFetching Stage = iota
	StageDecoding
	StageNormalizing
	StageAggregating
	StageDone
	StageFailed
)

// String returns a human-readable representation of the stage.
func (s Stage) String() string {
	switch s {
	case StageFetching:
		return "fetching"
	case StageDecoding:
		return "decoding"
	case StageNormalizing:
		return "normalizing"
	case StageAggregating:
		return "aggregating"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool { return s == StageDone || s == StageFailed }

// CanTransition reports whether the state machine allows s -> next.
// Failed is only reachable while fetching or decoding.
func (s Stage) CanTransition(next Stage) bool {
	switch s {
	case StageFetching:
		return next == StageDecoding || next == StageFailed
	case StageDecoding:
		return next == StageNormalizing || next == StageFailed
	case StageNormalizing:
		return next == StageAggregating
	case StageAggregating:
		return next == StageDone
	default:
		return false
	}
}
