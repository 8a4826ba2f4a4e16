package wsgateway

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when enqueueing to a closed connection
var ErrConnectionClosed = errors.New("connection closed")

// ErrSendBufferFull is returned when a slow client's queue is full
var ErrSendBufferFull = errors.New("send buffer full")

const sendBufferSize = 256

// Connection represents a WebSocket connection with a client
type Connection struct {
	ID            string
	UserID        string
	Role          string
	Conn          *websocket.Conn
	Send          chan []byte
	Subscriptions map[string]bool // symbol -> subscribed
	mu            sync.RWMutex
	closed        bool
	lastPong      time.Time
	createdAt     time.Time
}

// NewConnection creates a new WebSocket connection
func NewConnection(id string, userID string, role string, conn *websocket.Conn) *Connection {
	return &Connection{
		ID:            id,
		UserID:        userID,
		Role:          role,
		Conn:          conn,
		Send:          make(chan []byte, sendBufferSize),
		Subscriptions: make(map[string]bool),
		createdAt:     time.Now(),
		lastPong:      time.Now(),
	}
}

// Subscribe restricts updates to symbol (and any other subscribed symbols)
func (c *Connection) Subscribe(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Subscriptions[symbol] = true
}

// Unsubscribe removes symbol from the subscriptions
func (c *Connection) Unsubscribe(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Subscriptions, symbol)
}

// IsSubscribed checks if the connection is subscribed to a symbol
func (c *Connection) IsSubscribed(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Subscriptions[symbol]
}

// ShouldReceive checks if updates for symbol go to this connection.
// A connection without subscriptions receives everything.
func (c *Connection) ShouldReceive(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.Subscriptions) == 0 {
		return true
	}
	return c.Subscriptions[symbol]
}

// UpdateLastPong updates the last pong time
func (c *Connection) UpdateLastPong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPong = time.Now()
}

// GetLastPong returns the last pong time
func (c *Connection) GetLastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}

// Enqueue queues data for the write pump without blocking
func (c *Connection) Enqueue(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close closes the send queue and the socket. It is safe to call more than once.
func (c *Connection) Close() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	close(c.Send)
	c.mu.Unlock()

	if c.Conn != nil {
		c.Conn.Close()
	}
	return true
}
