package router

import (
	"log"

	"codesync/internal/websocket"
	"codesync/pkg/interfaces"
	"codesync/pkg/types"
)

// Router implements interfaces.Broadcaster on top of the connection registry
// ARCHITECTURAL DISCOVERY: Pure recipient selection without room state or connection handling -
// the registry answers "who is in the room", each connection's write queue does the delivery
type Router struct {
	registry *websocket.Registry
}

// NewRouter creates a new broadcast router
// FUNCTIONAL DISCOVERY: Dependency injection enables testing with fake connections
func NewRouter(registry *websocket.Registry) *Router {
	return &Router{registry: registry}
}

// ToRoomExcept delivers to every member of the room other than connectionID
func (r *Router) ToRoomExcept(roomID, connectionID, eventName string, payload interface{}) {
	event := &types.OutboundEvent{Type: eventName, Payload: payload}
	for _, conn := range r.registry.RoomConnections(roomID) {
		if conn.GetConnectionID() == connectionID {
			continue
		}
		r.deliver(conn, event)
	}
}

// ToRoom delivers to every member of the room, sender included
func (r *Router) ToRoom(roomID, eventName string, payload interface{}) {
	event := &types.OutboundEvent{Type: eventName, Payload: payload}
	for _, conn := range r.registry.RoomConnections(roomID) {
		r.deliver(conn, event)
	}
}

// ToConnection delivers to a single connection. Unknown IDs get nothing.
func (r *Router) ToConnection(connectionID, eventName string, payload interface{}) {
	conn, exists := r.registry.GetConnection(connectionID)
	if !exists {
		return
	}
	r.deliver(conn, &types.OutboundEvent{Type: eventName, Payload: payload})
}

// deliver writes one event to one recipient
// FUNCTIONAL DISCOVERY: Continue delivery to other recipients even if one fails
func (r *Router) deliver(conn interfaces.Connection, event *types.OutboundEvent) {
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("Failed to deliver %s to %s: %v", event.Type, conn.GetConnectionID(), err)
	}
}
