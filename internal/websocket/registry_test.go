package websocket

import (
	"fmt"
	"sync"
	"testing"
)

// fakeConnection records close calls without a socket
type fakeConnection struct {
	id     string
	mu     sync.Mutex
	closed bool
}

func (f *fakeConnection) WriteJSON(v interface{}) error { return nil }
func (f *fakeConnection) GetConnectionID() string       { return f.id }
func (f *fakeConnection) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestRegistry_NewRegistryInitialization(t *testing.T) {
	registry := NewRegistry()

	stats := registry.GetStats()
	if stats["total_connections"] != 0 || stats["active_rooms"] != 0 {
		t.Errorf("Expected empty registry, got %v", stats)
	}
}

func TestRegistry_RegisterConnectionValidation(t *testing.T) {
	registry := NewRegistry()

	if err := registry.RegisterConnection(nil); err != ErrNilConnection {
		t.Errorf("Expected ErrNilConnection, got %v", err)
	}

	if err := registry.RegisterConnection(&fakeConnection{}); err != ErrEmptyConnectionID {
		t.Errorf("Expected ErrEmptyConnectionID, got %v", err)
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	conn := &fakeConnection{id: "c1"}

	if err := registry.RegisterConnection(conn); err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}

	got, exists := registry.GetConnection("c1")
	if !exists || got != conn {
		t.Error("Registered connection not found")
	}
}

func TestRegistry_JoinRoomRequiresRegistration(t *testing.T) {
	registry := NewRegistry()

	if err := registry.JoinRoom("ghost", "r1"); err != ErrConnectionNotFound {
		t.Errorf("Expected ErrConnectionNotFound, got %v", err)
	}
	if registry.RoomMemberCount("r1") != 0 {
		t.Error("Room should stay empty")
	}
}

func TestRegistry_RoomMembershipInJoinOrder(t *testing.T) {
	registry := NewRegistry()
	for _, id := range []string{"c3", "c1", "c2"} {
		registry.RegisterConnection(&fakeConnection{id: id})
		if err := registry.JoinRoom(id, "r1"); err != nil {
			t.Fatalf("JoinRoom failed: %v", err)
		}
	}

	// Joining twice does not duplicate
	registry.JoinRoom("c1", "r1")

	members := registry.RoomMemberIDs("r1")
	if fmt.Sprint(members) != "[c3 c1 c2]" {
		t.Errorf("Expected join order [c3 c1 c2], got %v", members)
	}
	if registry.RoomMemberCount("r1") != 3 {
		t.Errorf("Expected 3 members, got %d", registry.RoomMemberCount("r1"))
	}
	if len(registry.RoomConnections("r1")) != 3 {
		t.Error("Expected 3 room connections")
	}
}

func TestRegistry_MultipleRooms(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterConnection(&fakeConnection{id: "c1"})
	registry.JoinRoom("c1", "b")
	registry.JoinRoom("c1", "a")

	rooms := registry.RoomsOf("c1")
	if fmt.Sprint(rooms) != "[a b]" {
		t.Errorf("Expected rooms [a b], got %v", rooms)
	}

	registry.LeaveRoom("c1", "a")
	if fmt.Sprint(registry.RoomsOf("c1")) != "[b]" {
		t.Errorf("Expected rooms [b] after leave, got %v", registry.RoomsOf("c1"))
	}
	if registry.RoomMemberCount("a") != 0 {
		t.Error("Room a should be empty")
	}

	// Unknown pairs are ignored
	registry.LeaveRoom("c1", "zzz")
	registry.LeaveRoom("ghost", "b")
}

func TestRegistry_UnregisterDetachesFromAllRooms(t *testing.T) {
	registry := NewRegistry()
	c1 := &fakeConnection{id: "c1"}
	c2 := &fakeConnection{id: "c2"}
	registry.RegisterConnection(c1)
	registry.RegisterConnection(c2)
	registry.JoinRoom("c1", "r1")
	registry.JoinRoom("c1", "r2")
	registry.JoinRoom("c2", "r1")

	registry.UnregisterConnection(c1)

	if _, exists := registry.GetConnection("c1"); exists {
		t.Error("c1 should be gone")
	}
	if fmt.Sprint(registry.RoomMemberIDs("r1")) != "[c2]" {
		t.Errorf("Expected r1 members [c2], got %v", registry.RoomMemberIDs("r1"))
	}
	if registry.RoomMemberCount("r2") != 0 {
		t.Error("r2 should be empty")
	}
	if len(registry.RoomsOf("c1")) != 0 {
		t.Error("c1 should belong to no rooms")
	}

	stats := registry.GetStats()
	if stats["total_connections"] != 1 || stats["active_rooms"] != 1 {
		t.Errorf("Unexpected stats %v", stats)
	}

	// Idempotent
	registry.UnregisterConnection(c1)
	registry.UnregisterConnection(nil)
}

func TestRegistry_StaleUnregisterKeepsReplacement(t *testing.T) {
	registry := NewRegistry()
	old := &fakeConnection{id: "c1"}
	replacement := &fakeConnection{id: "c1"}

	registry.RegisterConnection(old)
	registry.RegisterConnection(replacement)

	registry.UnregisterConnection(old)

	got, exists := registry.GetConnection("c1")
	if !exists || got != replacement {
		t.Error("Unregistering a replaced connection must not remove the replacement")
	}
}

func TestRegistry_ConcurrentOperations(t *testing.T) {
	registry := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := &fakeConnection{id: fmt.Sprintf("c%d", i)}
			roomID := fmt.Sprintf("r%d", i%5)
			registry.RegisterConnection(conn)
			registry.JoinRoom(conn.id, roomID)
			registry.RoomConnections(roomID)
			registry.RoomsOf(conn.id)
			if i%2 == 0 {
				registry.UnregisterConnection(conn)
			}
		}(i)
	}
	wg.Wait()

	if registry.GetStats()["total_connections"] != 25 {
		t.Errorf("Expected 25 connections, got %d", registry.GetStats()["total_connections"])
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	registry := NewRegistry()
	c1 := &fakeConnection{id: "c1"}
	c2 := &fakeConnection{id: "c2"}
	registry.RegisterConnection(c1)
	registry.RegisterConnection(c2)

	if n := registry.CloseAll(); n != 2 {
		t.Errorf("Expected 2 closed connections, got %d", n)
	}
	for _, c := range []*fakeConnection{c1, c2} {
		c.mu.Lock()
		if !c.closed {
			t.Errorf("Connection %s not closed", c.id)
		}
		c.mu.Unlock()
	}
}
