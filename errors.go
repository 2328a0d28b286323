package calculator

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrDivisionByZero is the rejection of a division whose divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrNoReply is an error indicating an empty reply.
	ErrNoReply = errors.New("[CALC] empty reply")

	// ErrTooFrequently is an error indicating that the request was made too frequently.
	ErrTooFrequently = errors.New("[CALC] too frequently, try again later")

	// ErrTimeout is an error indicating a timeout occurred.
	ErrTimeout = errors.New("[CALC] timeout")
)

// knownErrors are reconstructed by clients from the message of a failed reply
// so that errors.Is keeps working across the wire.
var knownErrors = []error{ErrDivisionByZero, ErrTooFrequently, ErrTimeout, ErrNoReply}

// StatusError is an error carrying the status class of a failed call.
type StatusError struct {
	Status int
	Err    error
}

// NewStatusError wraps err with a status.
func NewStatusError(status int, err error) *StatusError {
	return &StatusError{Status: status, Err: err}
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("status %d", e.Status)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusOf returns the status class of err.
// Errors without an explicit status are server errors, except for division
// by zero which is always the caller's fault.
func StatusOf(err error) int {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	if errors.Is(err, ErrDivisionByZero) {
		return StatusClientError
	}
	return StatusServerError
}

// ErrorFromStatus rebuilds the error of a failed reply received by a client.
func ErrorFromStatus(status int, message string) error {
	for _, known := range knownErrors {
		if known.Error() == message {
			return NewStatusError(status, known)
		}
	}
	return NewStatusError(status, errors.New(message))
}

// StatusText returns a short description of a status class.
func StatusText(status int) string {
	switch status {
	case StatusOK:
		return "ok"
	case StatusClientError:
		return "invalid argument"
	case StatusNotFound:
		return "unimplemented"
	case StatusRequestTimeout, StatusGatewayTimeout:
		return "deadline exceeded"
	case StatusTooManyRequests:
		return "resource exhausted"
	case StatusServerError:
		return "internal"
	case StatusUnavailable:
		return "unavailable"
	}
	return "unknown"
}
