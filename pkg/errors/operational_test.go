package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	harnesserrors "github.com/dshills/svcprobe/pkg/errors"
)

// TestNewPhaseError tests basic PhaseError creation.
func TestNewPhaseError(t *testing.T) {
	baseErr := errors.New("connection refused")

	tests := []struct {
		name        string
		phase       harnesserrors.Phase
		operation   string
		runID       string
		cause       error
		wantNil     bool
		wantMessage []string
	}{
		{
			name:        "with run id",
			phase:       harnesserrors.PhaseRequest,
			operation:   "posting request",
			runID:       "run-123",
			cause:       baseErr,
			wantMessage: []string{"request", "posting request", "run=run-123", "connection refused"},
		},
		{
			name:        "without run id",
			phase:       harnesserrors.PhaseStartup,
			operation:   "spawning server",
			cause:       baseErr,
			wantMessage: []string{"startup", "spawning server", "connection refused"},
		},
		{
			name:    "nil cause returns nil",
			phase:   harnesserrors.PhaseContract,
			cause:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := harnesserrors.NewPhaseError(tt.phase, tt.operation, tt.runID, tt.cause)

			if tt.wantNil {
				if pe != nil {
					t.Errorf("NewPhaseError() = %v, want nil", pe)
				}
				return
			}

			if pe == nil {
				t.Fatal("NewPhaseError() returned nil, want non-nil")
			}

			for _, want := range tt.wantMessage {
				if !strings.Contains(pe.Error(), want) {
					t.Errorf("Error() = %q, want to contain %q", pe.Error(), want)
				}
			}
			if tt.runID == "" && strings.Contains(pe.Error(), "run=") {
				t.Errorf("Error() = %q, should omit empty run id", pe.Error())
			}

			if time.Since(pe.Timestamp) > time.Second {
				t.Errorf("Timestamp is too old: %v", pe.Timestamp)
			}
		})
	}
}

func TestNewPhaseErrorWithAttrs(t *testing.T) {
	attrs := map[string]interface{}{"url": "http://localhost:22346"}
	pe := harnesserrors.NewPhaseErrorWithAttrs(harnesserrors.PhaseRequest, "posting request", "", errors.New("boom"), attrs)
	if pe == nil {
		t.Fatal("NewPhaseErrorWithAttrs() returned nil")
	}
	if pe.Attributes["url"] != "http://localhost:22346" {
		t.Errorf("Attributes = %v", pe.Attributes)
	}

	if got := harnesserrors.NewPhaseErrorWithAttrs(harnesserrors.PhaseRequest, "x", "", nil, attrs); got != nil {
		t.Errorf("expected nil for nil cause, got %v", got)
	}
}

func TestPhaseError_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	pe := harnesserrors.NewPhaseError(harnesserrors.PhaseContract, "checking body", "", sentinel)
	wrapped := fmt.Errorf("session failed: %w", pe)

	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is should find the cause through PhaseError")
	}

	var target *harnesserrors.PhaseError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find PhaseError")
	}
	if target.Phase != harnesserrors.PhaseContract {
		t.Errorf("Phase = %q, want %q", target.Phase, harnesserrors.PhaseContract)
	}
}

func TestPhaseOf(t *testing.T) {
	if got := harnesserrors.PhaseOf(errors.New("plain")); got != "" {
		t.Errorf("PhaseOf(plain) = %q, want empty", got)
	}
	if got := harnesserrors.PhaseOf(nil); got != "" {
		t.Errorf("PhaseOf(nil) = %q, want empty", got)
	}

	pe := harnesserrors.NewPhaseError(harnesserrors.PhaseReadiness, "polling", "", errors.New("timeout"))
	if got := harnesserrors.PhaseOf(fmt.Errorf("wrap: %w", pe)); got != harnesserrors.PhaseReadiness {
		t.Errorf("PhaseOf = %q, want %q", got, harnesserrors.PhaseReadiness)
	}
}

func TestPhaseError_NilReceiver(t *testing.T) {
	var pe *harnesserrors.PhaseError
	if pe.Error() != "<nil PhaseError>" {
		t.Errorf("nil Error() = %q", pe.Error())
	}
	if pe.Unwrap() != nil {
		t.Error("nil Unwrap() should return nil")
	}
}
