package auth

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nexushq/nexus/internal/bus"
)

// Status represents the authentication lifecycle state.
type Status string

const (
	SignedOut      Status = "SIGNED_OUT"
	SessionPending Status = "SESSION_PENDING"
	SignedIn       Status = "SIGNED_IN"
)

// validTransitions defines allowed status transitions.
var validTransitions = map[Status][]Status{
	SignedOut:      {SessionPending},
	SessionPending: {SignedIn, SignedOut},
	SignedIn:       {SignedOut},
}

// Machine tracks and enforces auth status transitions.
type Machine struct {
	mu      sync.RWMutex
	current Status
	bus     *bus.Bus
}

// NewMachine creates a new auth machine starting signed out.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: SignedOut,
		bus:     b,
	}
}

// Current returns the current status.
func (m *Machine) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new status. Returns error if transition is invalid.
func (m *Machine) Transition(to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindAuthStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for auth status change events.
type StatusChange struct {
	From Status
	To   Status
}
