package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/matrixtui/internal/bus"
)

// State is the sync connection state of one account.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Syncing      State = "SYNCING"
	Synced       State = "SYNCED"
	Error        State = "ERROR"
)

var validTransitions = map[State][]State{
	Disconnected: {Syncing, Error},
	Syncing:      {Synced, Error, Disconnected},
	Synced:       {Syncing, Error, Disconnected},
	Error:        {Syncing, Disconnected},
}

// Machine tracks the connection state of a single account.
type Machine struct {
	mu        sync.RWMutex
	account   string
	current   State
	reason    string
	firstSync bool
	bus       *bus.Bus
}

// NewMachine creates a machine for account starting in Disconnected.
func NewMachine(account string, b *bus.Bus) *Machine {
	return &Machine{
		account: account,
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reason returns the error reason when the state is Error.
func (m *Machine) Reason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reason
}

// HasSynced reports whether the account ever completed a sync.
func (m *Machine) HasSynced() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.firstSync
}

// Transition moves to a new state. Repeating the current state is a no-op.
func (m *Machine) Transition(to State) error {
	return m.transition(to, "")
}

// Fail moves to Error with a human-readable reason.
func (m *Machine) Fail(reason string) error {
	if reason == "" {
		reason = "unknown error"
	}
	return m.transition(Error, reason)
}

func (m *Machine) transition(to State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to && to != Error {
		return nil
	}
	if m.current != to && !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.reason = reason
	if to == Synced {
		m.firstSync = true
	}
	m.bus.Emit(bus.KindAccountStatus, StatusChange{
		Account: m.account,
		From:    from,
		To:      to,
		Reason:  reason,
	})
	return nil
}

// StatusChange is the payload for account status events.
type StatusChange struct {
	Account string
	From    State
	To      State
	Reason  string
}
