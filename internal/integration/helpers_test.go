package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"codesync/internal/app"
	"codesync/internal/config"
	"codesync/pkg/types"
)

const eventTimeout = 5 * time.Second

// inboundEvent mirrors what the server writes, with the payload left raw
type inboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// startServer runs the whole application on an ephemeral port with the audit log enabled
func startServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Execution.ScratchDir = filepath.Join(dir, "scratch")
	cfg.Database.Enabled = true
	cfg.Database.Path = filepath.Join(dir, "audit.db")

	application, err := app.NewApplication(cfg)
	if err != nil {
		t.Fatalf("Failed to create application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start application: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(ctx)
	})

	return application.GetAddr()
}

// testClient is an editor client speaking the wire protocol
type testClient struct {
	conn   *websocket.Conn
	events chan inboundEvent
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	c := &testClient{conn: conn, events: make(chan inboundEvent, 100)}
	go func() {
		defer close(c.events)
		for {
			var event inboundEvent
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			c.events <- event
		}
	}()
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

func (c *testClient) send(t *testing.T, eventType string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := c.conn.WriteJSON(types.Event{Type: eventType, Payload: raw}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

// expect reads until an event of the given type arrives and decodes its payload into v
func (c *testClient) expect(t *testing.T, eventType string, v interface{}) {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				t.Fatalf("Connection closed while waiting for %s", eventType)
			}
			if event.Type != eventType {
				continue
			}
			if v != nil {
				if err := json.Unmarshal(event.Payload, v); err != nil {
					t.Fatalf("Invalid %s payload: %v", eventType, err)
				}
			}
			return
		case <-deadline:
			t.Fatalf("Timed out waiting for %s", eventType)
		}
	}
}

// expectSilence fails if any event arrives within d
func (c *testClient) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case event, ok := <-c.events:
		if ok {
			t.Fatalf("Expected no events, got %s %s", event.Type, event.Payload)
		}
	case <-time.After(d):
	}
}

// join sends a join and waits for the server's reply to the joiner
func (c *testClient) join(t *testing.T, roomID, name string, first bool) types.JoinedMessage {
	t.Helper()
	c.send(t, types.EventJoin, types.JoinPayload{RoomID: roomID, DisplayName: name})

	var joined types.JoinedMessage
	if first {
		var firstJoin types.FirstJoinMessage
		c.expect(t, types.EventFirstJoin, &firstJoin)
		joined.Members = firstJoin.Members
		joined.Files = firstJoin.Files
		return joined
	}
	c.expect(t, types.EventJoined, &joined)
	return joined
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Invalid JSON from %s: %v", url, err)
		}
	}
	return resp.StatusCode
}
