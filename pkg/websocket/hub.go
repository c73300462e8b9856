package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"assessment-system/internal/auth"
)

// Message represents the standard message format exchanged over WebSocket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// SnapshotMessage is the first message a subscriber receives, and the reply
// to a "sync" request.
const SnapshotMessage = "snapshot"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer and the bearer token.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RoomAuthorizer decides who may subscribe to a room and returns the state
// the subscriber starts from.
type RoomAuthorizer interface {
	JoinRoom(userID, room string) (interface{}, error)
}

type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	unregister chan *Client
	mu         sync.RWMutex
	authorizer RoomAuthorizer
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		unregister: make(chan *Client),
	}
}

func (h *Hub) SetAuthorizer(a RoomAuthorizer) {
	h.authorizer = a
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	room   string
	userID string
}

// NewClient creates a new Client instance.
func NewClient(hub *Hub, conn *websocket.Conn, room, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		room:   room,
		userID: userID,
	}
}

// Run drops clients whose connection has gone away.
func (h *Hub) Run() {
	for client := range h.unregister {
		h.mu.Lock()
		h.dropLocked(client)
		h.mu.Unlock()
	}
}

// RegisterClient adds client to its room. first, if set, is queued ahead of
// any broadcast the client could otherwise see.
func (h *Hub) RegisterClient(client *Client, first []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	if _, ok := h.rooms[client.room]; !ok {
		h.rooms[client.room] = make(map[*Client]bool)
	}
	h.rooms[client.room][client] = true
	if first != nil {
		client.send <- first
	}
	log.Printf("Client %p joined room %s (user %s). Total: %d", client, client.room, client.userID, len(h.rooms[client.room]))
}

// dropLocked removes a client and closes its send channel once.
func (h *Hub) dropLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if room, ok := h.rooms[client.room]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.room)
		}
	}
	close(client.send)
	log.Printf("Client %p left room %s", client, client.room)
}

// BroadcastToRoom queues message for every client in room. Clients whose
// buffer is full are disconnected.
func (h *Hub) BroadcastToRoom(room string, message []byte) {
	var slow []*Client
	h.mu.RLock()
	for client := range h.rooms[room] {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, c := range slow {
			log.Printf("Send channel full for client %p; disconnecting", c)
			h.dropLocked(c)
		}
		h.mu.Unlock()
	}
}

// BroadcastMessage marshals the message and then broadcasts it.
func (h *Hub) BroadcastMessage(room string, messageType string, data interface{}) {
	messageBytes, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s message for room %s: %v", messageType, room, err)
		return
	}
	h.BroadcastToRoom(room, messageBytes)
}

// CloseRoom disconnects every subscriber of room.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[room] {
		h.dropLocked(client)
	}
}

// RoomSize reports how many clients are subscribed to room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// HandleWebSocket upgrades an authenticated request for /ws/attempts/{id}
// and subscribes it to the attempt's room.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["id"]
	if room == "" {
		http.Error(w, "Missing attempt id", http.StatusBadRequest)
		return
	}
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var snapshot interface{}
	if h.authorizer != nil {
		var err error
		snapshot, err = h.authorizer.JoinRoom(id.UserID, room)
		if err != nil {
			log.Printf("User %s refused room %s: %v", id.UserID, room, err)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	first, err := json.Marshal(Message{Type: SnapshotMessage, Data: snapshot})
	if err != nil {
		log.Printf("Error marshaling snapshot for room %s: %v", room, err)
		first = nil
	}
	client := NewClient(h, conn, room, id.UserID)
	h.RegisterClient(client, first)

	go client.writePump()
	go client.readPump()
}

func (c *Client) sendMessage(messageType string, data interface{}) {
	messageBytes, err := json.Marshal(Message{Type: messageType, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s message: %v", messageType, err)
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- messageBytes:
	default:
		log.Printf("Send channel full for client %p; dropping %s", c, messageType)
	}
}

// readPump continuously reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Unexpected close: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// handleMessage serves the only client request, "sync", which resends the
// current snapshot. Attempt actions go through the HTTP API.
func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}

	switch msg.Type {
	case "sync":
		if c.hub.authorizer == nil {
			return
		}
		snapshot, err := c.hub.authorizer.JoinRoom(c.userID, c.room)
		if err != nil {
			log.Printf("Sync refused for client %p in room %s: %v", c, c.room, err)
			return
		}
		c.sendMessage(SnapshotMessage, snapshot)
	default:
		log.Printf("Client %p sent unsupported message type %q", c, msg.Type)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				log.Printf("Error getting writer for client %p: %v", c, err)
				return
			}
			if _, err := w.Write(message); err != nil {
				log.Printf("Error writing message to client %p: %v", c, err)
				return
			}
			if err := w.Close(); err != nil {
				log.Printf("Error closing writer for client %p: %v", c, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
