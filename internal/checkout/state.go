package checkout

// State is the lifecycle of one checkout attempt:
//
//	Idle -> Validating -> Rejected
//	                   -> Submitting -> Committed | PartiallyCommitted | Failed
type State string

const (
	StateIdle               State = "IDLE"
	StateValidating         State = "VALIDATING"
	StateRejected           State = "REJECTED"
	StateSubmitting         State = "SUBMITTING"
	StateCommitted          State = "COMMITTED"
	StatePartiallyCommitted State = "PARTIALLY_COMMITTED"
	StateFailed             State = "FAILED"
)

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateRejected, StateSubmitting},
	StateSubmitting: {StateCommitted, StatePartiallyCommitted, StateFailed},
}

func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) IsTerminal() bool {
	switch s {
	case StateRejected, StateCommitted, StatePartiallyCommitted, StateFailed:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}
