// Package types defines core identifiers for svcprobe.
package types

import "github.com/google/uuid"

// RunID is a unique identifier for one harness run.
type RunID string

// NewRunID generates a new unique run ID.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// String returns the string representation of a RunID.
func (id RunID) String() string {
	return string(id)
}

// IsZero returns true if the RunID is the zero value.
func (id RunID) IsZero() bool {
	return id == ""
}

// Valid reports whether the RunID parses as a UUID.
func (id RunID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}
