package types

import (
	"encoding/json"
	"path/filepath"
	"strings"
)

// MaxRoomIDLength bounds room keys chosen by clients.
const MaxRoomIDLength = 128

// MaxSourceBytes bounds the source text accepted for a single execution.
const MaxSourceBytes = 256 * 1024

// IsValidRoomID reports whether a client-chosen room key can be used.
// Room keys are opaque; only emptiness, length and control characters are checked.
func IsValidRoomID(roomID string) bool {
	if roomID == "" || len(roomID) > MaxRoomIDLength {
		return false
	}
	for _, r := range roomID {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// Validate checks the fields a join needs.
func (p *JoinPayload) Validate() error {
	if !IsValidRoomID(p.RoomID) {
		return ErrInvalidRoomID
	}
	return nil
}

// Validate checks the fields a run needs. An empty source is allowed.
func (r *ExecutionRequest) Validate() error {
	if !IsValidRoomID(r.RoomID) {
		return ErrInvalidRoomID
	}
	if strings.TrimSpace(r.FileName) == "" {
		return ErrMissingFileName
	}
	if len(r.SourceText) > MaxSourceBytes {
		return ErrSourceTooLarge
	}
	return nil
}

// Extension returns the lowercase extension of the request's file name, including the dot.
func (r *ExecutionRequest) Extension() string {
	return strings.ToLower(filepath.Ext(r.FileName))
}

// DecodePayload unmarshals an event payload into v.
// FUNCTIONAL DISCOVERY: A missing payload decodes as an empty object so handlers
// see zero values instead of an error
func DecodePayload(e *Event, v interface{}) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

// NewErrorResult builds a result that carries only an error.
func NewErrorResult(stdout, errText string) ExecutionResult {
	return ExecutionResult{StdoutText: stdout, ErrorText: &errText}
}

// HasError reports whether the result carries an error.
func (r ExecutionResult) HasError() bool {
	return r.ErrorText != nil
}
