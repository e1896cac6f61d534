// Package models defines the data structures shared by the podscrub client,
// polling core and reference server.
package models

// LifecycleState is the reconciled processing state of a tracked episode or job.
type LifecycleState string

const (
	StateQueued               LifecycleState = "queued"
	StateRunning              LifecycleState = "running"
	StateReady                LifecycleState = "ready"
	StateFailed               LifecycleState = "failed"
	StatePermanentError       LifecycleState = "permanent_error"
	StateTransientUnavailable LifecycleState = "transient_unavailable"
)

var terminalStates = map[LifecycleState]bool{
	StateReady:          true,
	StateFailed:         true,
	StatePermanentError: true,
}

// IsTerminal reports whether s is a one-way final state. Once a session's
// model reaches a terminal state no further outcome may change it.
func IsTerminal(s LifecycleState) bool {
	return terminalStates[s]
}

// wireStates maps backend state/status strings onto lifecycle states.
// The trigger endpoint reports not_started for episodes the trigger link has
// not kicked off yet; from the watcher's seat that is pending work.
var wireStates = map[string]LifecycleState{
	"queued":      StateQueued,
	"not_started": StateQueued,
	"pending":     StateQueued,
	"processing":  StateRunning,
	"running":     StateRunning,
	"in_progress": StateRunning,
	"ready":       StateReady,
	"completed":   StateReady,
	"failed":      StateFailed,
	"error":       StateFailed,
	"cancelled":   StateFailed,
}

// FromWireState maps a backend state string to a lifecycle state.
// ok is false for states the contract does not cover (e.g. "not_found"
// smuggled into a 2xx body).
func FromWireState(state string) (LifecycleState, bool) {
	s, ok := wireStates[state]
	return s, ok
}
