package models

import (
	"math"
	"time"
)

// Direction is a trade direction or the neutral bias
type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionNeutral Direction = "NEUTRAL"
)

// ParseDirection parses a forced direction. The empty string means "not forced".
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "":
		return "", nil
	case DirectionBuy, DirectionSell:
		return Direction(s), nil
	default:
		return "", ErrInvalidDirection
	}
}

// SignalStatus is the lifecycle status of a signal
type SignalStatus string

const (
	StatusPending SignalStatus = "PENDING"
	StatusActive  SignalStatus = "ACTIVE"
	StatusTP1Hit  SignalStatus = "TP1_HIT"
	StatusTP2Hit  SignalStatus = "TP2_HIT"
	StatusTP3Hit  SignalStatus = "TP3_HIT"
	StatusStopped SignalStatus = "STOPPED"
	StatusClosed  SignalStatus = "CLOSED"
)

// OpenStatuses are the statuses listed as live signals
var OpenStatuses = []SignalStatus{StatusActive, StatusTP1Hit, StatusTP2Hit}

// StructureType is the categorical market structure classification
type StructureType string

const (
	StructureHigherHighs StructureType = "HH_HL"
	StructureLowerLows   StructureType = "LL_LH"
	StructureRanging     StructureType = "RANGING"
)

// KeyLevels are reference prices derived from the current price
type KeyLevels struct {
	Resistance float64 `json:"resistance"`
	Support    float64 `json:"support"`
	FVGZone    float64 `json:"fvg_zone"`
}

// StructureAnalysis is the synthetic feature bundle a signal is scored on
type StructureAnalysis struct {
	HTFStructureClear  bool          `json:"htf_structure_clear"`
	LiquiditySwept     bool          `json:"liquidity_swept"`
	StrongDisplacement bool          `json:"strong_displacement"`
	CleanPullback      bool          `json:"clean_pullback"`
	SessionAligned     bool          `json:"session_aligned"`
	NoCounterPressure  bool          `json:"no_counter_pressure"`
	StructureType      StructureType `json:"structure_type"`
	KeyLevels          KeyLevels     `json:"key_levels"`
}

// Signal is a fully specified trade idea
type Signal struct {
	ID         string            `json:"id"`
	Symbol     string            `json:"symbol"`
	Direction  Direction         `json:"direction"`
	EntryPrice float64           `json:"entry_price"`
	StopLoss   float64           `json:"stop_loss"`
	TP1        float64           `json:"tp1"`
	TP2        float64           `json:"tp2"`
	TP3        float64           `json:"tp3"`
	Confidence int               `json:"confidence"`
	Status     SignalStatus      `json:"status"`
	IsPending  bool              `json:"is_pending"`
	CreatedAt  time.Time         `json:"created_at"`
	Analysis   StructureAnalysis `json:"analysis"`
	Session    string            `json:"session"`
}

// Validate checks identity, direction and level ordering
func (s *Signal) Validate() error {
	if s.ID == "" {
		return ErrInvalidSignalID
	}
	if s.Symbol == "" {
		return ErrInvalidSymbol
	}
	if s.CreatedAt.IsZero() {
		return ErrInvalidTimestamp
	}
	switch s.Direction {
	case DirectionBuy:
		if !(s.StopLoss < s.EntryPrice && s.EntryPrice < s.TP1 && s.TP1 < s.TP2 && s.TP2 < s.TP3) {
			return ErrInvalidLevels
		}
	case DirectionSell:
		if !(s.TP3 < s.TP2 && s.TP2 < s.TP1 && s.TP1 < s.EntryPrice && s.EntryPrice < s.StopLoss) {
			return ErrInvalidLevels
		}
	default:
		return ErrInvalidDirection
	}
	return nil
}

// Round2 rounds to two decimal places, half away from zero
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
