package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"codesync/internal/execution"
	"codesync/internal/presence"
	"codesync/internal/reaper"
	"codesync/internal/session"
	"codesync/internal/websocket"
	"codesync/pkg/interfaces"
	"codesync/pkg/types"
)

// throttleIdle is how long throttle state of a quiet connection is kept
const throttleIdle = 10 * time.Minute

// Hub is the event core: it applies every inbound event to room state and decides
// what is broadcast to whom
// ARCHITECTURAL DISCOVERY: One goroutine handles one event at a time to completion,
// so join, edit, disconnect and sweep never interleave mid-handler
type Hub struct {
	// Channels for coordination
	// FUNCTIONAL DISCOVERY: Buffered channels absorb typing bursts; a full buffer
	// blocks the sender's read pump instead of dropping edits
	eventChannel      chan *EventContext // 1000 buffer for edit and cursor bursts
	disconnectChannel chan string        // connectionID - lifecycle events
	shutdownChannel   chan struct{}      // Unbuffered for immediate shutdown signaling
	done              chan struct{}

	// Components
	registry    *websocket.Registry
	presence    *presence.Registry
	store       *session.Store
	broadcaster interfaces.Broadcaster
	dispatcher  *execution.Dispatcher
	reaper      *reaper.Reaper

	// State
	running bool
	mu      sync.RWMutex
}

// EventContext wraps an inbound event with the server-known sender
// FUNCTIONAL DISCOVERY: The sender ID comes from the socket, never from the payload
type EventContext struct {
	Event        *types.Event
	ConnectionID string
	Timestamp    time.Time
}

// NewHub creates a new hub
// ARCHITECTURAL DISCOVERY: Constructor pattern with dependency injection
// enables clean testing and component isolation
func NewHub(
	registry *websocket.Registry,
	presence *presence.Registry,
	store *session.Store,
	broadcaster interfaces.Broadcaster,
	dispatcher *execution.Dispatcher,
	reaper *reaper.Reaper,
) *Hub {
	return &Hub{
		eventChannel:      make(chan *EventContext, 1000),
		disconnectChannel: make(chan string, 100),
		shutdownChannel:   make(chan struct{}),
		done:              make(chan struct{}),
		registry:          registry,
		presence:          presence,
		store:             store,
		broadcaster:       broadcaster,
		dispatcher:        dispatcher,
		reaper:            reaper,
	}
}

// Start begins hub processing
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	if isClosed(h.shutdownChannel) {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = true
	h.mu.Unlock()

	log.Println("Starting event hub...")

	go h.run(ctx)

	return nil
}

// Stop shuts the hub down and waits for the loop to exit
// TECHNICAL DISCOVERY: A stopped hub cannot be restarted; its channels stay closed
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false

	log.Println("Stopping event hub...")

	// TECHNICAL DISCOVERY: Safe channel close using select to prevent panic
	select {
	case <-h.shutdownChannel:
		// Channel already closed
	default:
		close(h.shutdownChannel)
	}
	h.mu.Unlock()

	<-h.done
	return nil
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// HandleEvent queues an inbound event. Implements websocket.EventSink.
// Blocks while the queue is full so events of one connection keep their order.
func (h *Hub) HandleEvent(connectionID string, event *types.Event) error {
	if event == nil {
		return ErrNilEvent
	}

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return ErrHubNotRunning
	}

	eventCtx := &EventContext{
		Event:        event,
		ConnectionID: connectionID,
		Timestamp:    time.Now(),
	}

	select {
	case h.eventChannel <- eventCtx:
		return nil
	case <-h.shutdownChannel:
		return ErrHubNotRunning
	}
}

// HandleDisconnect queues cleanup for a closed connection. Implements websocket.EventSink.
// FUNCTIONAL DISCOVERY: Disconnects share the loop with events, so every event the
// connection sent before closing is applied before its cleanup
func (h *Hub) HandleDisconnect(connectionID string) error {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return ErrHubNotRunning
	}

	select {
	case h.disconnectChannel <- connectionID:
		return nil
	case <-h.shutdownChannel:
		return ErrHubNotRunning
	}
}

// run is the main hub processing loop
// TECHNICAL DISCOVERY: Single select loop handles all coordination
// preventing race conditions while maintaining high throughput
func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	defer log.Println("Hub processing stopped")

	var sweep <-chan time.Time
	if h.reaper != nil {
		ticker := time.NewTicker(h.reaper.Interval())
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case eventCtx := <-h.eventChannel:
			h.dispatchEvent(eventCtx)

		case connectionID := <-h.disconnectChannel:
			// Drain events the connection queued before it went away
			h.drainEvents()
			h.handleDisconnect(connectionID)

		case <-sweep:
			h.sweep()

		case <-h.shutdownChannel:
			log.Println("Hub shutdown requested")
			return

		case <-ctx.Done():
			log.Println("Hub context cancelled")
			h.mu.Lock()
			h.running = false
			if !isClosed(h.shutdownChannel) {
				close(h.shutdownChannel)
			}
			h.mu.Unlock()
			return
		}
	}
}

// drainEvents applies every event already queued
func (h *Hub) drainEvents() {
	for {
		select {
		case eventCtx := <-h.eventChannel:
			h.dispatchEvent(eventCtx)
		default:
			return
		}
	}
}

// dispatchEvent routes an event to its handler
// FUNCTIONAL DISCOVERY: Protocol errors are logged and dropped - nothing is sent back
func (h *Hub) dispatchEvent(eventCtx *EventContext) {
	var err error
	switch eventCtx.Event.Type {
	case types.EventJoin:
		err = h.handleJoin(eventCtx)
	case types.EventFileChange:
		err = h.handleFileChange(eventCtx)
	case types.EventCursorChange:
		err = h.handleCursorChange(eventCtx)
	case types.EventFileCreated:
		err = h.handleFileCreated(eventCtx)
	case types.EventFileDeleted:
		err = h.handleFileDeleted(eventCtx)
	case types.EventCodeChange:
		err = h.handleCodeChange(eventCtx)
	case types.EventExecuteCode:
		err = h.handleExecuteCode(eventCtx)
	default:
		err = ErrUnknownEventType
	}

	if err != nil {
		log.Printf("Dropping %s event from %s: %v", eventCtx.Event.Type, eventCtx.ConnectionID, err)
	}
}

// sweep evicts unused rooms and stale throttle state
func (h *Hub) sweep() {
	h.reaper.Sweep()
	if h.dispatcher != nil {
		h.dispatcher.CleanupThrottle(throttleIdle)
	}
}
