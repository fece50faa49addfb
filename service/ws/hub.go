// Package ws pushes scheduling events to connected clients. It is one of the
// notification sink's delivery channels, keyed by user id.
package ws

import (
	"log"
	"net/http"
	"sync"

	"github.com/sabrisabah/Nutrition-Mays-sub000/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	UserID uint
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks live connections per user. A user may hold several connections
// (phone and desktop); Push fans out to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint][]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint][]*Client)}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.UserID] = append(h.clients[client.UserID], client)
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	connections := h.clients[client.UserID]
	for i, c := range connections {
		if c == client {
			h.clients[client.UserID] = append(connections[:i], connections[i+1:]...)
			break
		}
	}
	if len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.send)
}

// Push delivers a message to every live connection of the user. A slow
// client's full buffer drops the message rather than blocking the caller.
func (h *Hub) Push(userID uint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[userID] {
		select {
		case client.send <- message:
		default:
			log.Printf("ws: dropping message for user %d, send buffer full", userID)
		}
	}
}

type WSHandler struct {
	hub *Hub
}

func NewWSHandler(hub *Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws", utils.AuthMiddleware(h.HandleWebSocket))
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, 256),
	}
	h.hub.register(client)

	go client.writePump()
	go h.readLoop(client)
}

func (c *Client) writePump() {
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readLoop discards inbound frames; the feed is one-way. Its job is noticing
// the peer going away.
func (h *WSHandler) readLoop(client *Client) {
	defer func() {
		h.hub.unregister(client)
		client.conn.Close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}
