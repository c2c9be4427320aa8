package execution

// State is the lifecycle stage of a Process.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
	StateTimedOut  State = "timed_out"
)

var validTransitions = map[State][]State{
	StatePending: {StateRunning, StateFailed, StateCancelled},
	StateRunning: {StateCompleted, StateFailed, StateCancelled, StateTimedOut},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	_, ok := validTransitions[s]
	return !ok
}

// CanTransitionTo checks if a state transition is valid
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OutputEvent is one chunk of process output. Exactly one event per
// process has Finished set, and it is the last one.
type OutputEvent struct {
	SessionID string `json:"session_id"`
	ProcessID string `json:"process_id"`
	Chunk     string `json:"output"`
	IsError   bool   `json:"is_error"`
	Finished  bool   `json:"finished"`
	NewPath   string `json:"new_path,omitempty"`
	Status    State  `json:"status,omitempty"`
}
