package pipeline

import "fmt"

// State is the run state of a pipeline.
type State int

const (
	StateReady State = iota
	StateRunning
	StatePaused
	StateCancelled
	StateSucceeded
	StateFailed
	StateInterrupted
	StateDestroyed
)

var stateNames = [...]string{
	StateReady:       "READY",
	StateRunning:     "RUNNING",
	StatePaused:      "PAUSED",
	StateCancelled:   "CANCELLED",
	StateSucceeded:   "SUCCEEDED",
	StateFailed:      "FAILED",
	StateInterrupted: "INTERRUPTED",
	StateDestroyed:   "DESTROYED",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// IsTerminal reports whether a run in state s is over.
func (s State) IsTerminal() bool {
	switch s {
	case StateCancelled, StateSucceeded, StateFailed, StateInterrupted, StateDestroyed:
		return true
	}
	return false
}

func allowedTransition(from, to State) bool {
	if to == StateDestroyed {
		return from != StateDestroyed
	}
	switch from {
	case StateReady, StateSucceeded, StateFailed, StateCancelled, StateInterrupted:
		return to == StateRunning
	case StateRunning:
		return to == StatePaused || to == StateCancelled || to == StateSucceeded || to == StateFailed || to == StateInterrupted
	case StatePaused:
		return to == StateRunning || to == StateCancelled || to == StateInterrupted
	}
	return false
}
