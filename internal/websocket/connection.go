package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultBufferSize   = 100
	defaultWriteTimeout = 5 * time.Second
)

// Connection implements the interfaces.Connection interface
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race conditions
// Interface boundary maintained - no room state in connection wrapper
type Connection struct {
	conn         *websocket.Conn
	id           string             // Server-assigned, immutable
	writeCh      chan []byte        // FUNCTIONAL DISCOVERY: Buffered queue keeps per-recipient FIFO order
	writeTimeout time.Duration      // Deadline for a single socket write
	ctx          context.Context    // For cancellation
	cancel       context.CancelFunc // For cleanup
	closeOnce    sync.Once          // Ensure single close
}

// NewConnection creates a new WebSocket connection wrapper with default buffering
func NewConnection(conn *websocket.Conn, id string) *Connection {
	return NewConnectionWithOptions(conn, id, defaultBufferSize, defaultWriteTimeout)
}

// NewConnectionWithOptions creates a connection wrapper with an explicit queue size and write deadline
func NewConnectionWithOptions(conn *websocket.Conn, id string, bufferSize int, writeTimeout time.Duration) *Connection {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           id,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	// Start the single writer goroutine
	go c.writeLoop()

	return c
}

// ARCHITECTURAL DISCOVERY: Single writer goroutine pattern eliminates races
// writeCh is never closed - senders observe ctx.Done() instead
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				_ = c.Close()
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues v for delivery without blocking
// FUNCTIONAL DISCOVERY: A full queue means the client stopped reading. The
// connection is closed instead of skipping the message, a client that missed
// an edit would diverge from the room; its disconnect runs the normal cleanup
// and a reconnect receives a fresh snapshot.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	case c.writeCh <- data:
		return nil
	default:
		_ = c.Close()
		return ErrSlowConsumer
	}
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()

		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// GetConnectionID returns the server-assigned connection identifier
func (c *Connection) GetConnectionID() string {
	return c.id
}

// Done is closed once the connection has been closed
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}
