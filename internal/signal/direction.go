package signal

import (
	"sync"
	"time"

	"github.com/richgang/indice-killer/internal/models"
)

// DirectionMachine holds the global directional bias. NEUTRAL moves to a
// locked direction on the first directional signal; a lock is only released
// by Reset or replaced by a forced direction.
type DirectionMachine struct {
	mu    sync.Mutex
	state models.DirectionState
}

// NewDirectionMachine creates a machine in the NEUTRAL state
func NewDirectionMachine() *DirectionMachine {
	return &DirectionMachine{state: models.NeutralDirectionState()}
}

// Current returns a copy of the state
func (m *DirectionMachine) Current() models.DirectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyState(m.state)
}

// Restore replaces the state, e.g. with the persisted record at startup
func (m *DirectionMachine) Restore(state models.DirectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.ID = models.DirectionStateID
	if !state.IsLocked() {
		state = models.NeutralDirectionState()
	}
	m.state = copyState(state)
}

// Resolve picks the direction for a new signal and locks it in one step.
// A held lock wins unless force is set; otherwise force, then derived, is
// used. The returned state is the one this call left behind. ok is false
// when neither yields BUY or SELL, in which case the state is unchanged.
func (m *DirectionMachine) Resolve(force, derived models.Direction, reason string, now time.Time) (models.DirectionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.IsLocked() && force == "" {
		return copyState(m.state), true
	}

	dir := derived
	if force != "" {
		dir = force
	}
	if dir != models.DirectionBuy && dir != models.DirectionSell {
		return copyState(m.state), false
	}

	if m.state.CurrentDirection == dir && m.state.LockedAt != nil {
		return copyState(m.state), true
	}
	lockedAt := now.UTC()
	m.state = models.DirectionState{
		ID:               models.DirectionStateID,
		CurrentDirection: dir,
		LockedAt:         &lockedAt,
		Reason:           reason,
	}
	return copyState(m.state), true
}

// Reset returns to NEUTRAL, clearing the lock time and reason
func (m *DirectionMachine) Reset() models.DirectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = models.NeutralDirectionState()
	return copyState(m.state)
}

func copyState(s models.DirectionState) models.DirectionState {
	if s.LockedAt != nil {
		t := *s.LockedAt
		s.LockedAt = &t
	}
	return s
}
