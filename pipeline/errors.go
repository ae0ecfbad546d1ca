package pipeline

import "errors"

// Condition kinds surfaced to the HTTP boundary. Callers match them with
// errors.Is; every stage wraps its cause with one of these.
var (
	ErrMalformedTimestamp   = errors.New("malformed timestamp")
	ErrInvalidWindow        = errors.New("start_datetime is after end_datetime")
	ErrModelUnavailable     = errors.New("model unavailable")
	ErrFeatureShapeMismatch = errors.New("feature shape mismatch")
	ErrUnknownCategory      = errors.New("unknown category")
)

// Kind names the condition for logs, metrics and error bodies.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMalformedTimestamp):
		return "malformed_timestamp"
	case errors.Is(err, ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrFeatureShapeMismatch):
		return "feature_shape_mismatch"
	case errors.Is(err, ErrUnknownCategory):
		return "unknown_category"
	default:
		return "error"
	}
}
