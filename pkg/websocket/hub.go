package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"poolmate/pkg/logger"
)

const broadcastBuffer = 256

type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	broadcast  chan roomMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *logger.Logger
	mutex      sync.RWMutex
}

// Message is the envelope written to subscribers.
type Message struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

type roomMessage struct {
	roomID string
	data   []byte
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan roomMessage, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log.WithField("component", "websocket_hub"),
	}
}

// Run owns all room membership changes. It returns when ctx is done, after
// closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.sendToRoom(message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	if h.rooms[client.RoomID] == nil {
		h.rooms[client.RoomID] = make(map[*Client]bool)
	}
	h.rooms[client.RoomID][client] = true
	h.mutex.Unlock()

	h.logger.WithFields(map[string]interface{}{
		"user_id": client.UserID.Hex(),
		"room_id": client.RoomID,
	}).Debug("Client subscribed")

	h.sendToClient(client, Message{
		Type:      "subscribed",
		RoomID:    client.RoomID,
		UserID:    client.UserID.Hex(),
		Timestamp: getCurrentTimestamp(),
	})
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.removeLocked(client)
}

// removeLocked drops client from the hub. Callers hold h.mutex.
func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)

	if room, exists := h.rooms[client.RoomID]; exists {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.RoomID)
		}
	}
}

func (h *Hub) sendToRoom(message roomMessage) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.rooms[message.roomID] {
		select {
		case client.send <- message.data:
		default:
			// slow consumer
			h.removeLocked(client)
		}
	}
}

func (h *Hub) sendToClient(client *Client, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
		h.removeLocked(client)
	}
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		h.removeLocked(client)
	}
}

// Register subscribes client. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client; a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues message for every subscriber of roomID. It never blocks;
// when the queue is full the message is dropped.
func (h *Hub) Publish(roomID string, message Message) {
	message.RoomID = roomID
	if message.Timestamp == 0 {
		message.Timestamp = getCurrentTimestamp()
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode websocket message")
		return
	}

	select {
	case h.broadcast <- roomMessage{roomID: roomID, data: data}:
	default:
		h.logger.WithField("room_id", roomID).Warn("Websocket broadcast queue full, dropping message")
	}
}

// RoomSize reports how many clients are subscribed to roomID.
func (h *Hub) RoomSize(roomID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomID])
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
