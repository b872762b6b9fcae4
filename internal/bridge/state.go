package bridge

// State is the controller's position in its load cycle.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateEmpty   State = "empty"
)

// validTransitions defines the controller state machine. There is no
// terminal state while a session is mounted.
var validTransitions = map[State][]State{
	StateIdle:    {StateLoading},
	StateLoading: {StateLoading, StateReady, StateEmpty},
	StateReady:   {StateLoading},
	StateEmpty:   {StateLoading},
}

// CanTransitionTo returns true if a transition from this state to the target is allowed.
func (s State) CanTransitionTo(target State) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
