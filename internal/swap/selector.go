package swap

import (
	"errors"

	"go.uber.org/zap"
)

// Failure reasons reported for program data lines that could not be decoded.
const (
	ReasonInvalidBase64 = "invalid_base64"
	ReasonShortPayload  = "short_payload"
	ReasonMalformed     = "malformed"
)

// FailureReason maps a DecodeLine error to a metric label.
// Filtering outcomes and nil map to the empty string.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidBase64):
		return ReasonInvalidBase64
	case errors.Is(err, ErrShortPayload):
		return ReasonShortPayload
	case errors.Is(err, ErrMalformedEvent):
		return ReasonMalformed
	default:
		return ""
	}
}

// Selector picks the swap event out of one transaction's log lines.
type Selector struct {
	logger    *zap.Logger
	onFailure func(reason string)
}

// NewSelector creates a Selector. onFailure is called once per undecodable
// program data line and may be nil.
func NewSelector(logger *zap.Logger, onFailure func(reason string)) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		logger:    logger,
		onFailure: onFailure,
	}
}

// Latest scans lines from the end and returns the last swap event in the bundle.
func (s *Selector) Latest(lines []string) (SwapEvent, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		ev, err := DecodeLine(lines[i])
		if err == nil {
			return ev, true
		}

		switch reason := FailureReason(err); reason {
		case "":
			if errors.Is(err, ErrOtherEvent) {
				s.logger.Debug("skipping non-swap event", zap.Int("line", i))
			}
		default:
			s.logger.Warn("failed to decode program data",
				zap.Int("line", i),
				zap.String("reason", reason),
				zap.Error(err))
			if s.onFailure != nil {
				s.onFailure(reason)
			}
		}
	}
	return SwapEvent{}, false
}
