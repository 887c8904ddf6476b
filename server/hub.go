package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/moffa90/go-lightning/logging"
)

// Event is the envelope of every websocket message, in both directions.
type Event struct {
	// Type is the operation or event name
	Type string `json:"type"`

	// Payload is the operation arguments or result
	Payload json.RawMessage `json:"payload,omitempty"`
}

// client is one websocket connection. Gorilla connections allow a single
// concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(Event{Type: eventType, Payload: data})
}

// Hub tracks connected clients and broadcasts events to all of them.
// It implements session.EventSink.
type Hub struct {
	log logging.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub. The logger may be nil.
func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		log:     logging.OrNop(logger),
		clients: make(map[*client]struct{}),
	}
}

// Broadcast sends an event to every connected client. Failed sends are
// logged; the reader of that connection notices the failure and drops it.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	h.log.Debug("broadcast", "event", event, "clients", len(clients))
	for _, c := range clients {
		if err := c.send(event, payload); err != nil {
			h.log.Info("broadcast failed", "event", event, "remote", c.conn.RemoteAddr().String(), "error", err)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// closeAll closes every connection; their readers then remove them.
func (h *Hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
}
