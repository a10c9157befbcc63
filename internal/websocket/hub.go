package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub maintains active WebSocket connections and fans events out to
// every connected dashboard client.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound envelopes for all clients
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done chan struct{}

	// Sink for position updates received from vehicle clients
	positions PositionSink

	mu sync.RWMutex
}

// PositionSink consumes GPS fixes pushed by vehicle clients.
type PositionSink interface {
	ReportPosition(vehicleID string, lat, lon float64)
}

// Envelope is the wire frame for every outbound event.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// NewHub creates a new Hub. positions may be nil when inbound
// position updates should be ignored.
func NewHub(positions PositionSink) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		positions:  positions,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("websocket: client connected (%d online)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.drop()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("websocket: client disconnected (%d online)", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.enqueue(message) {
					// Client buffer full, drop the connection
					client.drop()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.drop()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop terminates the hub loop and disconnects every client.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast sends a typed event to every connected client. Marshal
// failures are logged and dropped; a full hub queue drops the event
// rather than blocking dispatch.
func (h *Hub) Broadcast(event string, data interface{}) {
	envelope := Envelope{
		Type:      event,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("websocket: failed to marshal %s event: %v", event, err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Printf("websocket: broadcast queue full, dropping %s event", event)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
