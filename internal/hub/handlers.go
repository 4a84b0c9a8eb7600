package hub

import (
	"bytes"
	"encoding/json"
	"log"

	"codesync/pkg/types"
)

// members lists a room's participants in join order
func (h *Hub) members(roomID string) []types.Member {
	ids := h.registry.RoomMemberIDs(roomID)
	members := make([]types.Member, 0, len(ids))
	for _, id := range ids {
		name, _ := h.presence.Lookup(id)
		members = append(members, types.Member{ConnectionID: id, DisplayName: name})
	}
	return members
}

// displayName returns the registered name of a connection, empty if unknown
func (h *Hub) displayName(connectionID string) string {
	name, _ := h.presence.Lookup(connectionID)
	return name
}

// hasValue reports whether an optional raw JSON field was actually sent
func hasValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// handleJoin attaches a connection to a room and announces it
// FUNCTIONAL DISCOVERY: The first member gets FIRST_JOIN and nothing else; later
// joiners get the full snapshot while existing members only learn the new roster
func (h *Hub) handleJoin(eventCtx *EventContext) error {
	var payload types.JoinPayload
	if err := types.DecodePayload(eventCtx.Event, &payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	connectionID := eventCtx.ConnectionID
	if err := h.registry.JoinRoom(connectionID, payload.RoomID); err != nil {
		return err
	}
	h.presence.Register(connectionID, payload.DisplayName)
	h.store.EnsureRoom(payload.RoomID)

	members := h.members(payload.RoomID)
	log.Printf("Connection joined: id=%s name=%s room=%s members=%d",
		connectionID, payload.DisplayName, payload.RoomID, len(members))

	if len(members) == 1 {
		h.broadcaster.ToConnection(connectionID, types.EventFirstJoin, types.FirstJoinMessage{
			Members: members,
			Files:   h.store.ListFiles(payload.RoomID),
		})
		return nil
	}

	h.broadcaster.ToConnection(connectionID, types.EventJoined, types.JoinedSnapshotMessage{
		Members:      members,
		DisplayName:  payload.DisplayName,
		ConnectionID: connectionID,
		Files:        h.store.ListFiles(payload.RoomID),
		Cursors:      h.store.Cursors(payload.RoomID),
	})
	h.broadcaster.ToRoomExcept(payload.RoomID, connectionID, types.EventJoined, types.JoinedMessage{
		Members:      members,
		DisplayName:  payload.DisplayName,
		ConnectionID: connectionID,
	})
	return nil
}

// handleFileChange applies last-writer-wins content and relays it to the others
func (h *Hub) handleFileChange(eventCtx *EventContext) error {
	var payload types.FileChangePayload
	if err := types.DecodePayload(eventCtx.Event, &payload); err != nil {
		return err
	}
	if payload.RoomID == "" {
		return ErrMissingRoomID
	}

	// FUNCTIONAL DISCOVERY: Unknown file IDs are a silent no-op, the relay still happens
	h.store.UpsertFileContent(payload.RoomID, payload.FileID, payload.Content)

	if hasValue(payload.CursorPosition) && h.store.HasRoom(payload.RoomID) {
		h.store.SetCursor(payload.RoomID, eventCtx.ConnectionID, payload.FileID,
			payload.CursorPosition, h.displayName(eventCtx.ConnectionID))
	}

	h.broadcaster.ToRoomExcept(payload.RoomID, eventCtx.ConnectionID, types.EventFileChange, types.FileChangeMessage{
		FileID:         payload.FileID,
		Content:        payload.Content,
		CursorPosition: payload.CursorPosition,
		ConnectionID:   eventCtx.ConnectionID,
	})
	return nil
}

// handleCursorChange records the sender's cursor and relays it to the others
func (h *Hub) handleCursorChange(eventCtx *EventContext) error {
	var payload types.CursorChangePayload
	if err := types.DecodePayload(eventCtx.Event, &payload); err != nil {
		return err
	}
	if payload.RoomID == "" {
		return ErrMissingRoomID
	}

	name := payload.DisplayName
	if name == "" {
		name = h.displayName(eventCtx.ConnectionID)
	}

	h.store.SetCursor(payload.RoomID, eventCtx.ConnectionID, payload.FileID, payload.Position, name)

	h.broadcaster.ToRoomExcept(payload.RoomID, eventCtx.ConnectionID, types.EventCursorChange, types.CursorChangeMessage{
		ConnectionID: eventCtx.ConnectionID,
		FileID:       payload.FileID,
		Position:     payload.Position,
		DisplayName:  name,
	})
	return nil
}

// handleFileCreated appends a file and relays it to the others
func (h *Hub) handleFileCreated(eventCtx *EventContext) error {
	var payload types.FileCreatedPayload
	if err := types.DecodePayload(eventCtx.Event, &payload); err != nil {
		return err
	}
	if payload.RoomID == "" {
		return ErrMissingRoomID
	}

	h.store.CreateFile(payload.RoomID, payload.File)

	h.broadcaster.ToRoomExcept(payload.RoomID, eventCtx.ConnectionID, types.EventFileCreated, types.FileCreatedMessage{
		File: payload.File,
	})
	return nil
}

// handleFileDeleted removes a file and tells the whole room, sender included
func (h *Hub) handleFileDeleted(eventCtx *EventContext) error {
	var payload types.FileDeletedPayload
	if err := types.DecodePayload(eventCtx.Event, &payload); err != nil {
		return err
	}
	if payload.RoomID == "" {
		return ErrMissingRoomID
	}

	// TECHNICAL DISCOVERY: Cursors pointing at the deleted file are left alone;
	// clients drop them when the file disappears
	h.store.DeleteFile(payload.RoomID, payload.FileID)

	h.broadcaster.ToRoom(payload.RoomID, types.EventFileDeleted, types.FileDeletedMessage{
		FileID: payload.FileID,
	})
	return nil
}

// handleCodeChange relays legacy whole-buffer sync without touching state
func (h *Hub) handleCodeChange(eventCtx *EventContext) error {
	var payload types.CodeChangePayload
	if err := types.DecodePayload(eventCtx.Event, &payload); err != nil {
		return err
	}
	if payload.RoomID == "" {
		return ErrMissingRoomID
	}

	h.broadcaster.ToRoomExcept(payload.RoomID, eventCtx.ConnectionID, types.EventCodeChange, types.CodeChangeMessage{
		SourceText: payload.SourceText,
	})
	return nil
}

// handleExecuteCode hands a run to the dispatcher without waiting for it
// ARCHITECTURAL DISCOVERY: The run happens off the hub goroutine; its result is
// published by the dispatcher so a hung program never stalls other rooms
func (h *Hub) handleExecuteCode(eventCtx *EventContext) error {
	if h.dispatcher == nil {
		return ErrExecutionDisabled
	}

	var req types.ExecutionRequest
	if err := types.DecodePayload(eventCtx.Event, &req); err != nil {
		return err
	}
	if !types.IsValidRoomID(req.RoomID) {
		return types.ErrInvalidRoomID
	}
	req.ConnectionID = eventCtx.ConnectionID

	return h.dispatcher.Submit(&req)
}

// handleDisconnect notifies every room the connection was in, then forgets it
// FUNCTIONAL DISCOVERY: Presence is unregistered last so DISCONNECTED still
// carries the display name
func (h *Hub) handleDisconnect(connectionID string) {
	name := h.displayName(connectionID)

	for _, roomID := range h.registry.RoomsOf(connectionID) {
		h.broadcaster.ToRoomExcept(roomID, connectionID, types.EventDisconnected, types.DisconnectedMessage{
			ConnectionID: connectionID,
			DisplayName:  name,
		})
		h.store.RemoveCursor(roomID, connectionID)
	}

	if conn, exists := h.registry.GetConnection(connectionID); exists {
		h.registry.UnregisterConnection(conn)
	}
	if h.dispatcher != nil {
		h.dispatcher.Forget(connectionID)
	}
	h.presence.Unregister(connectionID)

	log.Printf("Connection deregistered: id=%s", connectionID)
}
