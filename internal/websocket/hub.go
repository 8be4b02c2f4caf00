package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans file lifecycle events out to the owning user's connected clients.
type Hub struct {
	clients    map[string]map[*Client]bool
	mu         sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
	log        *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		log:        logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.UID]; !ok {
		h.clients[client.UID] = make(map[*Client]bool)
	}
	h.clients[client.UID][client] = true
	h.log.Debug("ws client registered", "uid", client.UID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userClients, ok := h.clients[client.UID]; ok {
		if _, ok := userClients[client]; ok {
			delete(userClients, client)
			close(client.send)
			if len(userClients) == 0 {
				delete(h.clients, client.UID)
			}
			h.log.Debug("ws client unregistered", "uid", client.UID)
		}
	}
}

type event struct {
	EventType string      `json:"event_type"`
	Payload   interface{} `json:"payload"`
}

// PublishEvent pushes an event to every client of the given user. Slow
// clients get messages dropped rather than blocking the publisher.
func (h *Hub) PublishEvent(uid, eventType string, payload interface{}) {
	data, err := json.Marshal(event{EventType: eventType, Payload: payload})
	if err != nil {
		h.log.Error("failed to marshal ws event", "event_type", eventType, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if userClients, ok := h.clients[uid]; ok {
		for client := range userClients {
			select {
			case client.send <- data:
			default:
				h.log.Warn("ws send buffer full, dropping message", "uid", uid)
			}
		}
	}
}
