package telemetry

import "fmt"

// DecodeKind classifies a fatal decode failure.
type DecodeKind int

const (
	KindMalformedJSON DecodeKind = iota + 1
	KindMissingTelemetry
)

func (k DecodeKind) String() string {
	switch k {
	case KindMalformedJSON:
		return "malformed_json"
	case KindMissingTelemetry:
		return "missing_telemetry"
	default:
		return "unknown"
	}
}

// DecodeError aborts a whole decode. Per-vehicle problems are reported as
// soft errors in Batch.Errors instead.
type DecodeError struct {
	Kind DecodeKind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode telemetry: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("decode telemetry: %s", e.Kind)
}

func (e *DecodeError) Unwrap() error { return e.Err }
