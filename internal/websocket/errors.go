package websocket

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("write queue full, connection closed")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Registry-related errors
var (
	ErrNilConnection      = errors.New("connection cannot be nil")
	ErrEmptyConnectionID  = errors.New("connection ID cannot be empty")
	ErrConnectionNotFound = errors.New("connection not registered")
)
