package models

import "errors"

var (
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrInvalidLevels    = errors.New("invalid price levels")
	ErrInvalidSignalID  = errors.New("invalid signal ID")
)
