package websocket

import (
	"log"
	"sort"
	"sync"

	"codesync/pkg/interfaces"
)

// Registry tracks live connections and their room membership with thread-safe operations
// ARCHITECTURAL DISCOVERY: Pure connection management without room state -
// files and cursors live in the session store, membership lives here
type Registry struct {
	mu          sync.RWMutex                     // TECHNICAL DISCOVERY: RWMutex optimizes for read-heavy fan-out
	connections map[string]interfaces.Connection // connectionID -> Connection for O(1) lookup
	roomMembers map[string][]string              // roomID -> connectionIDs in join order
	memberOf    map[string]map[string]struct{}   // connectionID -> set of roomIDs
}

// NewRegistry creates a new connection registry
// FUNCTIONAL DISCOVERY: Initialize all maps to prevent nil map writes during concurrent operations
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]interfaces.Connection),
		roomMembers: make(map[string][]string),
		memberOf:    make(map[string]map[string]struct{}),
	}
}

// RegisterConnection adds a connection to the registry
// A connection registered again under the same ID replaces the previous one, which is closed.
func (r *Registry) RegisterConnection(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	id := conn.GetConnectionID()
	if id == "" {
		return ErrEmptyConnectionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.connections[id]; exists && existing != conn {
		go func() {
			if err := existing.Close(); err != nil {
				log.Printf("Failed to close replaced connection %s: %v", id, err)
			}
		}() // Close asynchronously to avoid deadlock
	}

	r.connections[id] = conn
	return nil
}

// UnregisterConnection removes a specific connection and detaches it from every room
// RACE CONDITION FIX: Only removes the connection if it matches the one currently registered
func (r *Registry) UnregisterConnection(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	id := conn.GetConnectionID()
	r.mu.Lock()
	defer r.mu.Unlock()

	registered, exists := r.connections[id]
	if !exists || registered != conn {
		return
	}

	delete(r.connections, id)
	for roomID := range r.memberOf[id] {
		r.removeMemberLocked(roomID, id)
	}
	delete(r.memberOf, id)
}

// JoinRoom attaches a registered connection to a room. Joining twice is a no-op.
func (r *Registry) JoinRoom(connectionID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[connectionID]; !exists {
		return ErrConnectionNotFound
	}

	rooms, exists := r.memberOf[connectionID]
	if !exists {
		rooms = make(map[string]struct{})
		r.memberOf[connectionID] = rooms
	}
	if _, already := rooms[roomID]; already {
		return nil
	}

	rooms[roomID] = struct{}{}
	r.roomMembers[roomID] = append(r.roomMembers[roomID], connectionID)
	return nil
}

// LeaveRoom detaches a connection from a room. Unknown pairs are ignored.
func (r *Registry) LeaveRoom(connectionID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rooms, exists := r.memberOf[connectionID]; exists {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.memberOf, connectionID)
		}
	}
	r.removeMemberLocked(roomID, connectionID)
}

// removeMemberLocked drops connectionID from the room list. Caller must hold the write lock.
// TECHNICAL DISCOVERY: Clean up empty room lists to prevent memory leaks
func (r *Registry) removeMemberLocked(roomID, connectionID string) {
	members := r.roomMembers[roomID]
	for i, id := range members {
		if id == connectionID {
			members = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(members) == 0 {
		delete(r.roomMembers, roomID)
		return
	}
	r.roomMembers[roomID] = members
}

// GetConnection returns the connection registered under an ID
func (r *Registry) GetConnection(connectionID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.connections[connectionID]
	return conn, exists
}

// RoomMemberIDs returns the connection IDs attached to a room in join order
func (r *Registry) RoomMemberIDs(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.roomMembers[roomID]
	ids := make([]string, len(members))
	copy(ids, members)
	return ids
}

// RoomConnections returns the live connections attached to a room
func (r *Registry) RoomConnections(roomID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.roomMembers[roomID]
	connections := make([]interfaces.Connection, 0, len(members))
	for _, id := range members {
		if conn, exists := r.connections[id]; exists {
			connections = append(connections, conn)
		}
	}
	return connections
}

// RoomMemberCount implements interfaces.Membership
func (r *Registry) RoomMemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.roomMembers[roomID])
}

// RoomsOf returns the rooms a connection is attached to, sorted
func (r *Registry) RoomsOf(connectionID string) []string {
	r.mu.RLock()
	rooms := make([]string, 0, len(r.memberOf[connectionID]))
	for roomID := range r.memberOf[connectionID] {
		rooms = append(rooms, roomID)
	}
	r.mu.RUnlock()

	sort.Strings(rooms)
	return rooms
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.connections),
		"active_rooms":      len(r.roomMembers),
	}
}

// CloseAll closes every registered connection and returns how many were closed.
// Read pumps notice the closed sockets and report their disconnects as usual.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	connections := make([]interfaces.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	r.mu.RUnlock()

	for _, conn := range connections {
		if err := conn.Close(); err != nil {
			log.Printf("Failed to close connection %s: %v", conn.GetConnectionID(), err)
		}
	}
	return len(connections)
}
