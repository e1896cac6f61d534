package models

import "testing"

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		state    LifecycleState
		terminal bool
	}{
		{StateQueued, false},
		{StateRunning, false},
		{StateReady, true},
		{StateFailed, true},
		{StatePermanentError, true},
		{StateTransientUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := IsTerminal(tt.state); got != tt.terminal {
				t.Errorf("IsTerminal(%q) = %v, want %v", tt.state, got, tt.terminal)
			}
		})
	}
}

func TestFromWireState(t *testing.T) {
	tests := []struct {
		wire string
		want LifecycleState
		ok   bool
	}{
		{"queued", StateQueued, true},
		{"not_started", StateQueued, true},
		{"pending", StateQueued, true},
		{"processing", StateRunning, true},
		{"running", StateRunning, true},
		{"in_progress", StateRunning, true},
		{"ready", StateReady, true},
		{"completed", StateReady, true},
		{"failed", StateFailed, true},
		{"error", StateFailed, true},
		{"cancelled", StateFailed, true},
		{"not_found", "", false},
		{"", "", false},
		{"banana", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			got, ok := FromWireState(tt.wire)
			if ok != tt.ok {
				t.Fatalf("FromWireState(%q) ok = %v, want %v", tt.wire, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("FromWireState(%q) = %q, want %q", tt.wire, got, tt.want)
			}
		})
	}
}
