package overlay

import (
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message is the envelope written to overlay sockets
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const clientBuffer = 16

// Hub fans messages out to connected overlay clients. A client that
// cannot keep up is dropped rather than slowing the publisher.
type Hub struct {
	log *zap.SugaredLogger

	mu      sync.Mutex
	clients map[string]chan []byte
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{log: log, clients: make(map[string]chan []byte)}
}

// Join registers a client and returns its id and outbox
func (h *Hub) Join() (string, <-chan []byte) {
	id := uuid.NewString()
	out := make(chan []byte, clientBuffer)

	h.mu.Lock()
	h.clients[id] = out
	h.mu.Unlock()
	return id, out
}

// Leave unregisters a client and closes its outbox
func (h *Hub) Leave(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if out, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(out)
	}
}

// Broadcast sends msg to every client
func (h *Hub) Broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Warnf("[Overlay] Failed to encode %s: %v", msg.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, out := range h.clients {
		select {
		case out <- payload:
		default:
			h.log.Warnf("[Overlay] Dropping slow client %s", id)
			delete(h.clients, id)
			close(out)
		}
	}
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
