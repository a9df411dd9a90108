package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Phase identifies the stage of a harness session in which an error occurred.
type Phase string

const (
	// PhaseStartup covers spawning the server process.
	PhaseStartup Phase = "startup"
	// PhaseReadiness covers the optional readiness poll.
	PhaseReadiness Phase = "readiness"
	// PhaseRequest covers sending the HTTP request and reading the response.
	PhaseRequest Phase = "request"
	// PhaseContract covers status and body assertions.
	PhaseContract Phase = "contract"
	// PhaseTeardown covers terminating the server process. Teardown errors
	// are never surfaced by a session; the value is reserved for callers
	// that terminate a process themselves.
	PhaseTeardown Phase = "teardown"
)

// PhaseError carries operational context for a failed harness session.
//
// It wraps errors with the phase, the operation being performed, the run ID
// and a timestamp so that failure reports and the run history can attribute a
// failure without parsing messages.
type PhaseError struct {
	Phase      Phase                  // Which session phase failed
	Operation  string                 // What operation was being performed
	RunID      string                 // Which run (may be empty outside the CLI)
	Timestamp  time.Time              // When the error occurred
	Attributes map[string]interface{} // Additional context (optional)
	Cause      error                  // Underlying error
}

// NewPhaseError creates a PhaseError wrapping an error.
//
// Returns nil if cause is nil (no error to wrap).
//
// Example:
//
//	if err != nil {
//	    return NewPhaseError(PhaseStartup, "spawning server", runID, err)
//	}
func NewPhaseError(phase Phase, operation, runID string, cause error) *PhaseError {
	if cause == nil {
		return nil
	}

	return &PhaseError{
		Phase:     phase,
		Operation: operation,
		RunID:     runID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewPhaseErrorWithAttrs creates a PhaseError with additional attributes.
//
// Returns nil if cause is nil (no error to wrap).
func NewPhaseErrorWithAttrs(phase Phase, operation, runID string, cause error, attrs map[string]interface{}) *PhaseError {
	pe := NewPhaseError(phase, operation, runID, cause)
	if pe == nil {
		return nil
	}
	pe.Attributes = attrs
	return pe
}

// Error implements the error interface.
//
// Format: "[timestamp] phase: operation: run={id}: {cause}"
// If the run ID is empty, it's omitted from the message.
func (e *PhaseError) Error() string {
	if e == nil {
		return "<nil PhaseError>"
	}

	timestamp := e.Timestamp.Format(time.RFC3339)

	if e.RunID != "" {
		return fmt.Sprintf("[%s] %s: %s: run=%s: %v",
			timestamp,
			e.Phase,
			e.Operation,
			e.RunID,
			e.Cause)
	}

	return fmt.Sprintf("[%s] %s: %s: %v",
		timestamp,
		e.Phase,
		e.Operation,
		e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PhaseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// PhaseOf returns the phase of the first PhaseError in err's chain, or the
// empty phase when there is none.
func PhaseOf(err error) Phase {
	var pe *PhaseError
	if stderrors.As(err, &pe) && pe != nil {
		return pe.Phase
	}
	return ""
}
