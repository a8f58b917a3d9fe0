package session

import (
	"errors"
	"fmt"
	"sync"
)

// State is one phase of a broker session.
type State uint8

const (
	StateGreeting State = iota
	StateReady
	StateDispatching
	StateClosed
)

var ErrInvalidTransition = errors.New("session: invalid state transition")

func (s State) String() string {
	switch s {
	case StateGreeting:
		return "GREETING"
	case StateReady:
		return "READY"
	case StateDispatching:
		return "DISPATCHING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

var transitions = map[State][]State{
	StateGreeting:    {StateReady, StateClosed},
	StateReady:       {StateDispatching, StateClosed},
	StateDispatching: {StateReady, StateClosed},
}

// Machine tracks the state of one session. Safe for concurrent readers.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns a machine in GREETING.
func NewMachine() *Machine {
	return &Machine{state: StateGreeting}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to next or returns ErrInvalidTransition. CLOSED is terminal.
func (m *Machine) Transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
}

// Close moves to CLOSED from any state and reports whether it changed.
func (m *Machine) Close() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return false
	}
	m.state = StateClosed
	return true
}
