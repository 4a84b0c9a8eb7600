package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"codesync/pkg/types"
)

// WebSocket upgrader with production-ready settings
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// FUNCTIONAL DISCOVERY: Editor clients are served from arbitrary origins
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// EventSink receives decoded inbound events and disconnect notifications
// ARCHITECTURAL DISCOVERY: The handler only moves frames - every state decision
// belongs to the event core behind this interface
type EventSink interface {
	HandleEvent(connectionID string, event *types.Event) error
	HandleDisconnect(connectionID string) error
}

// Options tunes heartbeat and buffering of accepted connections
type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BufferSize   int
	MaxFrameSize int64
}

// DefaultOptions returns the heartbeat settings used when none are configured
func DefaultOptions() Options {
	return Options{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		BufferSize:   100,
		MaxFrameSize: 1 << 20,
	}
}

// Handler upgrades HTTP requests and pumps frames into the event core
type Handler struct {
	registry *Registry
	sink     EventSink
	options  Options
}

// NewHandler creates a new WebSocket handler with dependency injection
func NewHandler(registry *Registry, sink EventSink, options Options) *Handler {
	return &Handler{
		registry: registry,
		sink:     sink,
		options:  options,
	}
}

// HandleWebSocket upgrades the request, assigns a connection ID and starts the read pump
// FUNCTIONAL DISCOVERY: Identity comes later with the join event - a fresh
// connection belongs to no room and has no display name
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnectionWithOptions(conn, uuid.New().String(), h.options.BufferSize, h.options.WriteTimeout)

	if err := h.registry.RegisterConnection(wsConn); err != nil {
		log.Printf("Failed to register connection: %v", err)
		_ = wsConn.Close()
		return
	}

	log.Printf("A new connection is connected with the ID %s", wsConn.GetConnectionID())

	go h.handleConnection(wsConn)
}

// handleConnection manages the connection lifecycle with heartbeat monitoring
func (h *Handler) handleConnection(conn *Connection) {
	defer h.teardown(conn)

	if h.options.MaxFrameSize > 0 {
		conn.conn.SetReadLimit(h.options.MaxFrameSize)
	}

	// TECHNICAL DISCOVERY: Read deadline is pushed forward by every pong
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.options.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.options.ReadTimeout))
	})

	ticker := time.NewTicker(h.options.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.options.WriteTimeout)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	// Read pump - frames from one connection reach the sink in send order
	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var event types.Event
		if err := json.Unmarshal(data, &event); err != nil || event.Type == "" {
			log.Printf("Dropping malformed frame from %s", conn.GetConnectionID())
			continue
		}

		if err := h.sink.HandleEvent(conn.GetConnectionID(), &event); err != nil {
			log.Printf("Dropping %s event from %s: %v", event.Type, conn.GetConnectionID(), err)
		}
	}
}

// teardown hands disconnect cleanup to the event core and closes the socket
// FUNCTIONAL DISCOVERY: The event core unregisters the connection itself so room
// membership is still readable while DISCONNECTED notifications are built
func (h *Handler) teardown(conn *Connection) {
	if err := h.sink.HandleDisconnect(conn.GetConnectionID()); err != nil {
		log.Printf("Disconnect for %s not queued, cleaning up directly: %v", conn.GetConnectionID(), err)
		h.registry.UnregisterConnection(conn)
	}
	_ = conn.Close()
}
