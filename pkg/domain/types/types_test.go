package types

import "testing"

func TestNewRunID(t *testing.T) {
	a := NewRunID()
	b := NewRunID()

	if a.IsZero() || b.IsZero() {
		t.Fatal("NewRunID returned zero value")
	}
	if a == b {
		t.Errorf("NewRunID returned duplicate IDs: %s", a)
	}
	if !a.Valid() {
		t.Errorf("RunID %q should be a valid UUID", a)
	}
}

func TestRunID_Valid(t *testing.T) {
	tests := []struct {
		id   RunID
		want bool
	}{
		{"", false},
		{"not-a-uuid", false},
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
	}

	for _, tt := range tests {
		if got := tt.id.Valid(); got != tt.want {
			t.Errorf("RunID(%q).Valid() = %v, want %v", tt.id, got, tt.want)
		}
	}
}
