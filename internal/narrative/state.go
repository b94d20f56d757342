package narrative

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid narrative state transition")
)

// State is where an executive summary attempt is in its lifecycle:
//
//	NotAttempted → Requested → Succeeded
//	                         ↘ Failed
type State int

const (
	StateNotAttempted State = iota
	StateRequested
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotAttempted:
		return "not_attempted"
	case StateRequested:
		return "requested"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var allowed = map[State][]State{
	StateNotAttempted: {StateRequested},
	StateRequested:    {StateSucceeded, StateFailed},
}

// attempt tracks one summary request through the state machine.
type attempt struct {
	state  State
	reason string
}

// to moves the attempt to next. The transitions are fixed by the
// Summarizer, so an illegal one is a programming error and panics.
func (a *attempt) to(next State, reason string) {
	for _, s := range allowed[a.state] {
		if s == next {
			a.state = next
			a.reason = reason
			return
		}
	}
	panic(fmt.Errorf("%w: %s → %s", ErrInvalidTransition, a.state, next))
}
