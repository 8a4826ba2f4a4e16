package models

import "time"

// DirectionStateID is the fixed key of the process-wide direction record
const DirectionStateID = "global_direction"

// DirectionState is the global directional bias
type DirectionState struct {
	ID               string     `json:"id"`
	CurrentDirection Direction  `json:"current_direction"`
	LockedAt         *time.Time `json:"locked_at"`
	Reason           string     `json:"reason"`
}

// NeutralDirectionState returns the unlocked state
func NeutralDirectionState() DirectionState {
	return DirectionState{
		ID:               DirectionStateID,
		CurrentDirection: DirectionNeutral,
	}
}

// IsLocked reports whether a BUY or SELL bias is held
func (d DirectionState) IsLocked() bool {
	return d.CurrentDirection == DirectionBuy || d.CurrentDirection == DirectionSell
}
