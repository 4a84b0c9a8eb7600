package types

import (
	"encoding/json"
	"time"
)

// ARCHITECTURAL DISCOVERY: Event names are the wire contract shared with the editor client
// and must not change independently of it
const (
	EventJoin            = "join"
	EventFirstJoin       = "first-join"
	EventJoined          = "joined"
	EventDisconnected    = "disconnected"
	EventFileChange      = "file-change"
	EventFileCreated     = "file-created"
	EventFileDeleted     = "file-deleted"
	EventCursorChange    = "cursor-change"
	EventExecuteCode     = "execute-code"
	EventExecutionResult = "execution-result"
	EventCodeChange      = "code-change"
)

// Event is the envelope for every frame exchanged over a connection.
// Payload stays raw until the event core knows which struct to decode into.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundEvent is the envelope written to clients.
type OutboundEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// File is one entry of a room's FileSet.
type File struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Cursor is the last reported edit position of one connection.
// FUNCTIONAL DISCOVERY: Position is opaque to the server - only clients interpret it
type Cursor struct {
	FileID      string          `json:"fileId"`
	Position    json.RawMessage `json:"position"`
	DisplayName string          `json:"displayName"`
}

// Member identifies a participant in a membership list.
type Member struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

// ExecutionRequest asks the server to run the source text of one file.
type ExecutionRequest struct {
	RoomID        string `json:"roomId"`
	FileID        string `json:"fileId"`
	SourceText    string `json:"sourceText"`
	FileName      string `json:"fileName"`
	RequesterName string `json:"requesterName"`
	// ConnectionID is filled in by the server, never read from the wire.
	ConnectionID string `json:"-"`
}

// ExecutionResult is the normalised outcome of a run.
// TECHNICAL DISCOVERY: ErrorText is a pointer so an absent error serialises as null
type ExecutionResult struct {
	StdoutText string  `json:"stdoutText"`
	ErrorText  *string `json:"errorText"`
}

// Inbound payloads

type JoinPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

type FileChangePayload struct {
	RoomID         string          `json:"roomId"`
	FileID         string          `json:"fileId"`
	Content        string          `json:"content"`
	CursorPosition json.RawMessage `json:"cursorPosition,omitempty"`
}

type FileCreatedPayload struct {
	RoomID string `json:"roomId"`
	File   File   `json:"file"`
}

type FileDeletedPayload struct {
	RoomID string `json:"roomId"`
	FileID string `json:"fileId"`
}

type CursorChangePayload struct {
	RoomID      string          `json:"roomId"`
	FileID      string          `json:"fileId"`
	Position    json.RawMessage `json:"position"`
	DisplayName string          `json:"displayName,omitempty"`
}

type CodeChangePayload struct {
	RoomID     string `json:"roomId"`
	SourceText string `json:"sourceText"`
}

// Outbound payloads

type FirstJoinMessage struct {
	Members []Member `json:"members"`
	Files   []File   `json:"files"`
}

// JoinedMessage announces a joiner to the existing members. Clients decode the
// joiner's own copy (JoinedSnapshotMessage) into it as well.
type JoinedMessage struct {
	Members      []Member          `json:"members"`
	DisplayName  string            `json:"displayName"`
	ConnectionID string            `json:"connectionId"`
	Files        []File            `json:"files,omitempty"`
	Cursors      map[string]Cursor `json:"cursors,omitempty"`
}

// JoinedSnapshotMessage is the copy of JOINED sent to the joiner. Files and
// Cursors are always on the wire, empty when the room has none.
type JoinedSnapshotMessage struct {
	Members      []Member          `json:"members"`
	DisplayName  string            `json:"displayName"`
	ConnectionID string            `json:"connectionId"`
	Files        []File            `json:"files"`
	Cursors      map[string]Cursor `json:"cursors"`
}

type DisconnectedMessage struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

type FileChangeMessage struct {
	FileID         string          `json:"fileId"`
	Content        string          `json:"content"`
	CursorPosition json.RawMessage `json:"cursorPosition,omitempty"`
	ConnectionID   string          `json:"connectionId"`
}

type FileCreatedMessage struct {
	File File `json:"file"`
}

type FileDeletedMessage struct {
	FileID string `json:"fileId"`
}

type CursorChangeMessage struct {
	ConnectionID string          `json:"connectionId"`
	FileID       string          `json:"fileId"`
	Position     json.RawMessage `json:"position"`
	DisplayName  string          `json:"displayName"`
}

type ExecutionResultMessage struct {
	Result        ExecutionResult `json:"result"`
	RequesterName string          `json:"requesterName"`
}

type CodeChangeMessage struct {
	SourceText string `json:"sourceText"`
}

// ExecutionRecord is one row of the execution audit log.
type ExecutionRecord struct {
	ID            string          `json:"id"`
	RoomID        string          `json:"roomId"`
	FileID        string          `json:"fileId"`
	FileName      string          `json:"fileName"`
	Language      string          `json:"language"`
	RequesterName string          `json:"requesterName"`
	Result        ExecutionResult `json:"result"`
	DurationMS    int64           `json:"durationMs"`
	Timestamp     time.Time       `json:"timestamp"`
}
