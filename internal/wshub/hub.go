package wshub

import (
	"context"
	"sync"

	"sketchparty/internal/metrics"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID   uuid.UUID
	Conn *websocket.Conn
	Send chan []byte
}

func NewClient(conn *websocket.Conn, buffer int) *Client {
	return &Client{
		ID:   uuid.New(),
		Conn: conn,
		Send: make(chan []byte, buffer),
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub is the connection registry of one room.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client and closes its Send channel. Frames sent to the
// client afterwards are silently skipped.
func (h *Hub) Unregister(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		close(c.Send)
		delete(h.clients, id)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send queues a frame for one client. Non-blocking: drops if channel full.
func (h *Hub) Send(id uuid.UUID, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	return enqueue(c, data)
}

// Broadcast queues a frame for every client.
func (h *Hub) Broadcast(data []byte) {
	h.BroadcastExcept(uuid.Nil, data)
}

// BroadcastExcept queues a frame for all clients except the sender.
func (h *Hub) BroadcastExcept(senderID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		if id == senderID {
			continue
		}
		enqueue(c, data)
	}
}

func enqueue(c *Client, data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
		metrics.FramesDropped.Inc()
		return false
	}
}
