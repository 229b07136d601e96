package services

import (
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub fans session events out to the websocket clients subscribed to
// each game code. The engine publishes through BroadcastToGame; the
// hub never mutates game state itself.
type Hub struct {
	clients     map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	mutex       sync.RWMutex
	gameService *GameService
}

type Client struct {
	hub        *Hub
	id         string
	socket     *websocket.Conn
	send       chan []byte
	code       string
	playerID   string
	playerName string
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewHub(gameService *GameService) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		gameService: gameService,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %s registered for session %s (player %s)", client.id, client.code, client.playerID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("Client %s unregistered from session %s (player %s)", client.id, client.code, client.playerID)
			}
			h.mutex.Unlock()
		}
	}
}

// BroadcastToGame sends an event to every client subscribed to a code.
func (h *Hub) BroadcastToGame(code string, messageType string, payload interface{}) {
	message := Message{Type: messageType, Payload: payload}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling %s message: %v", messageType, err)
		return
	}

	h.mutex.Lock()
	for client := range h.clients {
		if !strings.EqualFold(client.code, code) {
			continue
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.mutex.Unlock()
}

// GetConnectedPlayers lists the player IDs with a live socket for a
// session code.
func (h *Hub) GetConnectedPlayers(code string) []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	var playerIDs []string
	for client := range h.clients {
		if strings.EqualFold(client.code, code) {
			playerIDs = append(playerIDs, client.playerID)
		}
	}
	return playerIDs
}

// IsPlayerConnected reports whether a player has a live socket for a
// session code.
func (h *Hub) IsPlayerConnected(code, playerID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if strings.EqualFold(client.code, code) && client.playerID == playerID {
			return true
		}
	}
	return false
}

// RegisterClient attaches a websocket connection to a session code and
// starts its pumps.
func (h *Hub) RegisterClient(conn *websocket.Conn, code, playerID, playerName string) *Client {
	client := &Client{
		hub:        h,
		id:         uuid.NewString(),
		socket:     conn,
		send:       make(chan []byte, 256),
		code:       strings.ToLower(code),
		playerID:   playerID,
		playerName: playerName,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		w, err := c.socket.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		response := Message{Type: "pong", Payload: "pong"}
		data, _ := json.Marshal(response)
		c.send <- data

	case "request_session_state":
		c.sendSessionState()

	default:
		log.Printf("Unknown message type %q from player %s in session %s", msg.Type, c.playerID, c.code)
	}
}

// sendSessionState pushes the current aggregate to one client so a
// reconnecting player can resync.
func (c *Client) sendSessionState() {
	if c.hub.gameService == nil {
		return
	}
	sess, err := c.hub.gameService.GetSession(c.code)
	if err != nil {
		log.Printf("Error loading session %s for state sync: %v", c.code, err)
		return
	}

	message := Message{Type: "session_state", Payload: sess}
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling session state: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
	}
}
