package websocket

import (
	"sync"

	"github.com/google/uuid"

	"github.com/followread/backend/internal/metrics"
)

// TaskEvent is one serialized task mutation pushed to subscribers
type TaskEvent struct {
	Type      string    `json:"type"`
	TaskID    uuid.UUID `json:"task_id"`
	VideoID   int64     `json:"video_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Speed     string    `json:"speed,omitempty"`
	ETA       string    `json:"eta,omitempty"`
	TotalSize string    `json:"total_size,omitempty"`
	Error     string    `json:"error,omitempty"`
	Title     string    `json:"title,omitempty"`
}

// Hub maintains the set of live subscribers and fans task events out to
// all of them. No history is kept; a subscriber only sees events from the
// moment it registers, and a full send buffer drops the subscriber.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *TaskEvent

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *TaskEvent, 64),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.Default().SetWSSubscribers(int64(len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.Default().SetWSSubscribers(int64(len(h.clients)))
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// slow subscriber, drop it
					close(client.send)
					delete(h.clients, client)
				}
			}
			metrics.Default().SetWSSubscribers(int64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

// Broadcast pushes a task event to all current subscribers
func (h *Hub) Broadcast(event *TaskEvent) {
	h.broadcast <- event
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
