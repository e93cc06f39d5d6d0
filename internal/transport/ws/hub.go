package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"majorcompass/internal/logger"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Dashboard message types
const (
	MsgResultCreated MessageType = "result_created"
	MsgSessionReset  MessageType = "session_reset"
	MsgWelcome       MessageType = "welcome"
)

// Message is the WebSocket envelope format
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans dashboard events out to connected admins
type Hub struct {
	conns map[*Connection]struct{}
	mu    sync.RWMutex

	broadcast chan *Message
	done      chan struct{}
	closed    bool
	closeOnce sync.Once
}

// Connection represents an admin WebSocket connection
type Connection struct {
	AdminID string
	Send    chan []byte
	Hub     *Hub
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	h := &Hub{
		conns:     make(map[*Connection]struct{}),
		broadcast: make(chan *Message, 256),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			h.closed = true
			for conn := range h.conns {
				delete(h.conns, conn)
				close(conn.Send)
			}
			h.mu.Unlock()
			return

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Log.Warn("failed to encode dashboard message", zap.Error(err))
				continue
			}
			h.mu.RLock()
			for conn := range h.conns {
				select {
				case conn.Send <- data:
				default:
					// Drop message if buffer full
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connection. On a closed hub the connection's Send channel is closed at once.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(conn.Send)
		return
	}
	h.conns[conn] = struct{}{}
	logger.Log.Info("admin connected to dashboard feed", zap.String("admin", conn.AdminID))
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(conn.Send)
		logger.Log.Info("admin disconnected from dashboard feed", zap.String("admin", conn.AdminID))
	}
}

// Len returns the number of connected admins
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects everyone and stops the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// BroadcastToAdmins sends a message to every connected admin (implements service.Broadcaster).
// It never blocks the caller; when the queue is full the message is dropped.
func (h *Hub) BroadcastToAdmins(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Warn("failed to encode broadcast payload", zap.String("type", msgType), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- &Message{Type: MessageType(msgType), Payload: data}:
	default:
		logger.Log.Warn("dashboard broadcast queue full, dropping message", zap.String("type", msgType))
	}
}
