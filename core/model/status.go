package model

import "fmt"

// Status classifies the health of a single vehicle reading. Higher values are
// more severe.
type Status int

const (
	StatusNormal Status = iota
	StatusWarning
	StatusInvalid
)

// Statuses lists every status from least to most severe.
var Statuses = []Status{StatusNormal, StatusWarning, StatusInvalid}

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "Normal"
	case StatusWarning:
		return "Warning"
	case StatusInvalid:
		return "Invalid"
	default:
		return "unknown"
	}
}

// Worse returns the more severe of s and o.
func (s Status) Worse(o Status) Status {
	if o > s {
		return o
	}
	return s
}

// ParseStatus converts a wire name back to a Status.
func ParseStatus(name string) (Status, error) {
	for _, s := range Statuses {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler so Status serializes as its
// name both as a JSON value and as a JSON object key.
func (s Status) MarshalText() ([]byte, error) {
	if s < StatusNormal || s > StatusInvalid {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
