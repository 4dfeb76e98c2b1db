// Package ws serves the CRM live feed: new bookings and declined payments pushed to open dashboards.
package ws

import (
	"encoding/json"
	"sync"
)

// Client is one open CRM dashboard connection.
type Client struct {
	Operator string
	Send     chan []byte
	hub      *Hub
	mu       sync.Mutex
	closed   bool
}

func NewClient(operator string) *Client {
	return &Client{Operator: operator, Send: make(chan []byte, 64)}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.hub != nil {
		c.hub.unregister(c)
	}
	close(c.Send)
}

// Hub maintains the set of connected dashboards.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Message is the envelope sent to dashboards.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Broadcast sends to every client. Slow clients miss messages rather than block the sender.
func (h *Hub) Broadcast(msgType string, payload json.RawMessage) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.Send <- data:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
