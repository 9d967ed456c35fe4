package collector

import (
	"context"
	"errors"
	"fmt"
)

// TransportError reports that the bundle source failed.
type TransportError struct {
	Op  string // "subscribe" or "stream"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SinkError reports that a snapshot could not be persisted. The snapshot is
// dropped, not retried.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink: %v", e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// Error kinds returned by ErrorKind.
const (
	KindTransport = "transport"
	KindSink      = "sink"
	KindCanceled  = "canceled"
	KindOther     = "other"
)

// ErrorKind classifies an error returned by Run. nil maps to the empty string.
func ErrorKind(err error) string {
	var transportErr *TransportError
	var sinkErr *SinkError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &sinkErr):
		return KindSink
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindOther
	}
}
