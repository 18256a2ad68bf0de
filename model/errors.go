package model

import "errors"

// Sentinel errors returned by world collaborators. Callers match them with
// errors.Is to decide whether to retry elsewhere or give up for this tick.
var (
	ErrTileRejected      = errors.New("tile rejected")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrQueueFull         = errors.New("training queue full")
	ErrUnknownFaction    = errors.New("unknown faction")
	ErrUnknownBuilding   = errors.New("unknown building")
)
