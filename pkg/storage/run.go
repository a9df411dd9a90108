package storage

import (
	"time"

	"github.com/dshills/svcprobe/pkg/domain/types"
	harnesserrors "github.com/dshills/svcprobe/pkg/errors"
	"github.com/dshills/svcprobe/pkg/harness"
)

// RunStatus is the outcome of a stored run.
type RunStatus string

const (
	RunPassed RunStatus = "passed"
	RunFailed RunStatus = "failed"
)

// RunRecord is one harness run as kept in history.
type RunRecord struct {
	ID         types.RunID
	StartedAt  time.Time
	Duration   time.Duration
	Command    []string
	CI         bool
	Status     RunStatus
	Phase      string // failing phase, empty on success
	Error      string
	StatusCode int // zero when no response was received
	Body       string
	Output     string
}

// NewRunRecord converts a harness result into a history record. A result
// without a run ID gets a fresh one.
func NewRunRecord(result *harness.Result) *RunRecord {
	id := types.RunID(result.RunID)
	if id.IsZero() {
		id = types.NewRunID()
	}

	rec := &RunRecord{
		ID:        id,
		StartedAt: result.StartedAt,
		Duration:  result.Duration,
		Command:   result.Command.Clone(),
		CI:        result.CI,
		Status:    RunPassed,
		Output:    result.Output,
	}

	if result.Err != nil {
		rec.Status = RunFailed
		rec.Phase = string(harnesserrors.PhaseOf(result.Err))
		rec.Error = result.Err.Error()
	}
	if result.Response != nil {
		rec.StatusCode = result.Response.StatusCode
		rec.Body = string(result.Response.Body)
	}

	return rec
}

// Passed reports whether the run succeeded.
func (r *RunRecord) Passed() bool {
	return r.Status == RunPassed
}
