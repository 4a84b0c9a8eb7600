package interfaces

// Broadcaster delivers events to room members
// ARCHITECTURAL DISCOVERY: Recipient selection is the only routing decision -
// delivery is fire-and-forget with no acknowledgement or retry
type Broadcaster interface {
	// ToRoomExcept delivers to every member of the room other than connectionID
	ToRoomExcept(roomID, connectionID, eventName string, payload interface{})

	// ToRoom delivers to every member of the room, sender included
	ToRoom(roomID, eventName string, payload interface{})

	// ToConnection delivers to a single connection
	ToConnection(connectionID, eventName string, payload interface{})
}
