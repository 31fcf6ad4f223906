package domain

import "errors"

// Failure categories. Stages wrap one of these so callers can classify an
// aborted run with errors.Is.
var (
	ErrNetwork       = errors.New("network error")
	ErrParse         = errors.New("parse error")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrModelLoad     = errors.New("model load error")
)

// ErrorKind returns a short label for the category err belongs to, used as a
// metric label. Unclassified errors are "unknown".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrShapeMismatch):
		return "shape"
	case errors.Is(err, ErrModelLoad):
		return "model_load"
	default:
		return "unknown"
	}
}
