package futurize

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidState indicates an invalid state transition.
var ErrInvalidState = errors.New("futurize: invalid state transition")

// State represents the lifecycle state of a controller.
type State uint32

const (
	// StatePending indicates the controller was built but TryDo was not called.
	StatePending State = iota
	// StateRunning indicates the worker was dispatched and no terminal value
	// has been observed by a poll yet.
	StateRunning
	// StateDone indicates the terminal value was delivered to the caller.
	StateDone
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

var validTransitions = map[State][]State{
	StatePending: {StateRunning},
	StateRunning: {StateDone},
	StateDone:    {},
}

// StateMachine manages controller state transitions with thread safety.
type StateMachine struct {
	mu      sync.RWMutex
	current State
	history []StateTransition
}

// StateTransition represents a state change.
type StateTransition struct {
	From State
	To   State
	At   time.Time
}

// NewStateMachine creates a new state machine starting in Pending state.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StatePending,
		history: make([]StateTransition, 0, 2),
	}
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

func (sm *StateMachine) canTransitionTo(target State) bool {
	for _, s := range validTransitions[sm.current] {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionTo attempts to move to target. The check and the move happen
// under one lock, so exactly one of several racing callers succeeds.
func (sm *StateMachine) TransitionTo(target State, at time.Time) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.canTransitionTo(target) {
		return fmt.Errorf("%w: cannot transition from %s to %s",
			ErrInvalidState, sm.current, target)
	}

	sm.history = append(sm.history, StateTransition{
		From: sm.current,
		To:   target,
		At:   at,
	})
	sm.current = target
	return nil
}

// History returns a copy of the transition history.
func (sm *StateMachine) History() []StateTransition {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	result := make([]StateTransition, len(sm.history))
	copy(result, sm.history)
	return result
}

// enteredAt returns when the machine entered s, or the zero time.
func (sm *StateMachine) enteredAt(s State) time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for _, tr := range sm.history {
		if tr.To == s {
			return tr.At
		}
	}
	return time.Time{}
}
