package session

import (
	"encoding/json"
	"sort"
	"sync"

	"codesync/pkg/types"
)

// room is the per-room aggregate of shared files and cursor positions
type room struct {
	files   []types.File            // insertion ordered, duplicates by ID allowed
	cursors map[string]types.Cursor // connectionID -> last reported cursor
}

func newRoom() *room {
	return &room{
		files:   []types.File{},
		cursors: make(map[string]types.Cursor),
	}
}

// RoomStats summarises one room for monitoring
type RoomStats struct {
	Files   int `json:"files"`
	Cursors int `json:"cursors"`
}

// Store holds the FileSet and CursorMap of every known room
// ARCHITECTURAL DISCOVERY: Rooms are created lazily on first use and only removed
// through Evict - emptiness of the transport group is not tracked here
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*room),
	}
}

// roomLocked returns the room, creating it when absent. Caller must hold the write lock.
func (s *Store) roomLocked(roomID string) *room {
	r, exists := s.rooms[roomID]
	if !exists {
		r = newRoom()
		s.rooms[roomID] = r
	}
	return r
}

// EnsureRoom creates an empty room if none exists. Idempotent.
func (s *Store) EnsureRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roomLocked(roomID)
}

// ListFiles returns a copy of the room's files in insertion order.
// Unknown rooms yield an empty, non-nil slice.
func (s *Store) ListFiles(roomID string) []types.File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.rooms[roomID]
	if !exists {
		return []types.File{}
	}

	files := make([]types.File, len(r.files))
	copy(files, r.files)
	return files
}

// UpsertFileContent replaces the content of an existing file in place.
// Content changes for unknown rooms or files are dropped; creation is a separate event.
// FUNCTIONAL DISCOVERY: With duplicated IDs only the first entry is updated,
// later duplicates keep the content they were created with
func (s *Store) UpsertFileContent(roomID, fileID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.rooms[roomID]
	if !exists {
		return false
	}

	for i := range r.files {
		if r.files[i].ID == fileID {
			r.files[i].Content = content
			return true
		}
	}
	return false
}

// CreateFile appends a file to the room, creating the room if needed.
// A duplicate ID produces a second entry rather than replacing the first.
func (s *Store) CreateFile(roomID string, file types.File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.roomLocked(roomID)
	r.files = append(r.files, file)
}

// DeleteFile removes every entry with the given ID. Cursor entries pointing at
// the file are left in place.
func (s *Store) DeleteFile(roomID, fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.rooms[roomID]
	if !exists {
		return
	}

	kept := r.files[:0]
	for _, f := range r.files {
		if f.ID != fileID {
			kept = append(kept, f)
		}
	}
	// Clear the tail so removed contents can be collected
	for i := len(kept); i < len(r.files); i++ {
		r.files[i] = types.File{}
	}
	r.files = kept
}

// SetCursor records the cursor of a connection, creating the room if needed
func (s *Store) SetCursor(roomID, connectionID, fileID string, position json.RawMessage, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.roomLocked(roomID)
	r.cursors[connectionID] = types.Cursor{
		FileID:      fileID,
		Position:    position,
		DisplayName: displayName,
	}
}

// RemoveCursor drops the cursor of a connection. Unknown rooms or connections are ignored.
func (s *Store) RemoveCursor(roomID, connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, exists := s.rooms[roomID]; exists {
		delete(r.cursors, connectionID)
	}
}

// Cursors returns a snapshot copy of the room's CursorMap
func (s *Store) Cursors(roomID string) map[string]types.Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursors := make(map[string]types.Cursor)
	if r, exists := s.rooms[roomID]; exists {
		for id, c := range r.cursors {
			cursors[id] = c
		}
	}
	return cursors
}

// IsEmpty reports whether the room holds no files and no cursors.
// Unknown rooms are empty.
func (s *Store) IsEmpty(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.rooms[roomID]
	if !exists {
		return true
	}
	return len(r.files) == 0 && len(r.cursors) == 0
}

// HasRoom reports whether the store holds state for the room
func (s *Store) HasRoom(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.rooms[roomID]
	return exists
}

// Evict drops all state of a room
func (s *Store) Evict(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, roomID)
}

// Rooms returns the IDs of all known rooms, sorted
func (s *Store) Rooms() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Stats returns file and cursor counts for a room
func (s *Store) Stats(roomID string) (RoomStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.rooms[roomID]
	if !exists {
		return RoomStats{}, false
	}
	return RoomStats{Files: len(r.files), Cursors: len(r.cursors)}, true
}
