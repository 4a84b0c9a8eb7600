package interfaces

// Connection represents one live client connection
// ARCHITECTURAL DISCOVERY: Pure abstraction without implementation details
// ensures clean boundaries between WebSocket infrastructure and room state
type Connection interface {
	// WriteJSON queues a JSON message for the client (thread-safe)
	WriteJSON(v interface{}) error

	// Close closes the connection and cleans up resources
	Close() error

	// GetConnectionID returns the server-assigned identifier of this connection
	GetConnectionID() string
}

// Membership reports live transport-level room membership
// FUNCTIONAL DISCOVERY: The reaper and HTTP API only need counts, never connections
type Membership interface {
	// RoomMemberCount returns the number of live connections attached to a room
	RoomMemberCount(roomID string) int
}
