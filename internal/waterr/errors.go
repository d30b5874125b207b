// Package waterr defines the typed error kinds shared by every leak
// detection subsystem, so the API layer can map them to HTTP status codes
// without each package inventing its own sentinel errors.
package waterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for status-code mapping and caller handling.
type Kind string

const (
	// InvalidInput covers malformed requests, empty batches, out-of-range
	// parameters and malformed .inp files. Never retried.
	InvalidInput Kind = "INVALID_INPUT"

	// NotFound covers unknown ids.
	NotFound Kind = "NOT_FOUND"

	// Conflict covers duplicate ids within a network, or a build already
	// in progress.
	Conflict Kind = "CONFLICT"

	// InvariantViolation covers cycles in the parent graph and illegal
	// lifecycle transitions.
	InvariantViolation Kind = "INVARIANT_VIOLATION"

	// SimulatorUnavailable is returned when the hydraulic engine cannot be
	// loaded after exhausting its retry budget.
	SimulatorUnavailable Kind = "SIMULATOR_UNAVAILABLE"

	// SimulationFailed is returned when a solve exceeds its timeout or
	// otherwise fails.
	SimulationFailed Kind = "SIMULATION_FAILED"

	// NoValidReadings is returned when every sensor read from a solve is
	// NaN or infinite.
	NoValidReadings Kind = "NO_VALID_READINGS"

	// LocalizationUndetermined is returned when no candidate can be
	// ranked with a usable score.
	LocalizationUndetermined Kind = "LOCALIZATION_UNDETERMINED"
)

// Error wraps an underlying error with a Kind for dispatch.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a kinded error from a message.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind carried by err, walking the unwrap chain.
// Returns "" if err carries no Kind.
func KindOf(err error) Kind {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
