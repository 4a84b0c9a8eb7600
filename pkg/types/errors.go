package types

import "errors"

// ARCHITECTURAL DISCOVERY: Protocol errors are tolerated by the event core, these
// sentinels only exist so handlers can log why an event was dropped
var (
	ErrInvalidRoomID   = errors.New("room ID must be 1-128 printable characters")
	ErrMissingFileName = errors.New("file name is required for execution")
	ErrSourceTooLarge  = errors.New("source text exceeds 256KB limit")
	ErrInvalidPayload  = errors.New("invalid event payload")
)
