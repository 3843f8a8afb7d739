package pipeline

import (
	"errors"
	"fmt"

	"github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/core/telemetry"
	"github.com/kilianp07/fleetpulse/core/transport"
)

// Error is returned by Run when a run aborts. It wraps the transport or
// decode error that caused the failure.
type Error struct {
	RunID string
	Stage model.Stage // stage the run was in when it failed
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline run %s failed while %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsFatal reports whether err aborted a run, i.e. carries a transport or
// decode error.
func IsFatal(err error) bool {
	var te *transport.Error
	var de *telemetry.DecodeError
	return errors.As(err, &te) || errors.As(err, &de)
}

// Retryable reports whether running the pipeline again may succeed.
// Timeouts, connection failures and HTTP 5xx/429 are retryable; decode
// errors and other status codes are not.
func Retryable(err error) bool {
	var te *transport.Error
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return false
}

// OutcomeOf maps a Run error to a metrics outcome.
func OutcomeOf(err error) string {
	var de *telemetry.DecodeError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &de):
		return metrics.OutcomeDecodeError
	default:
		return metrics.OutcomeTransportError
	}
}

// ErrorKind returns the transport or decode kind name carried by err, or an
// empty string.
func ErrorKind(err error) string {
	var te *transport.Error
	var de *telemetry.DecodeError
	switch {
	case errors.As(err, &te):
		return te.Kind.String()
	case errors.As(err, &de):
		return de.Kind.String()
	default:
		return ""
	}
}
