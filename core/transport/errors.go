package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindConnectionFailed
	KindHTTPStatus
	KindResponseTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionFailed:
		return "connection_failed"
	case KindHTTPStatus:
		return "http_status"
	case KindResponseTooLarge:
		return "response_too_large"
	default:
		return "unknown"
	}
}

// Error is returned by Fetch for every failed request.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int // set for KindHTTPStatus
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("transport: GET %s: unexpected status code %d", e.URL, e.StatusCode)
	case KindResponseTooLarge:
		return fmt.Sprintf("transport: GET %s: response exceeds size limit", e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("transport: GET %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("transport: GET %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Temporary reports whether retrying the request may succeed.
func (e *Error) Temporary() bool {
	switch e.Kind {
	case KindTimeout, KindConnectionFailed:
		return true
	case KindHTTPStatus:
		return e.StatusCode >= 500 || e.StatusCode == 429
	default:
		return false
	}
}

// KindOf returns the transport kind carried by err, or 0.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
