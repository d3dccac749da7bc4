package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/thraizz/crowd-server-go/internal/config"
	"github.com/thraizz/crowd-server-go/internal/game"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512

	sendBufferSize = 64

	sourceWebSocket = "websocket"
)

// Message types on the WebSocket.
const (
	MessageGameState = "game_state"
	MessageGameEnded = "game_ended"
	MessageError     = "error"
	MessageAck       = "ack"

	MessagePlay    = "play"
	MessagePass    = "pass"
	MessageFocus   = "focus"
	MessageRefresh = "refresh"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the envelope for both directions.
type WSMessage struct {
	Type      string      `json:"type"`
	GameID    string      `json:"game_id,omitempty"`
	HandIndex *int        `json:"hand_index,omitempty"`
	Error     string      `json:"error,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Client is one WebSocket connection watching a game as the human side.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	gameID string
}

type outbound struct {
	gameID  string
	client  *Client // nil broadcasts to every client of gameID
	payload []byte
}

// Hub pushes game views to connected clients and forwards their intents
// to the engine.
type Hub struct {
	engine *game.Engine
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	outbound   chan outbound
	done       chan struct{}
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(engine *game.Engine, logger *zap.Logger) *Hub {
	return &Hub{
		engine:     engine,
		logger:     logger,
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan outbound, 256),
		done:       make(chan struct{}),
	}
}

// Run owns client registration and delivery until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for gameID, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, gameID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.gameID] == nil {
				h.clients[client.gameID] = make(map[*Client]bool)
			}
			h.clients[client.gameID][client] = true
			count := len(h.clients[client.gameID])
			h.mu.Unlock()
			h.logger.Debug("websocket client registered",
				zap.String("game_id", client.gameID),
				zap.Int("clients", count),
			)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.outbound:
			h.deliver(msg)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[client.gameID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.gameID)
	}
	h.logger.Debug("websocket client unregistered",
		zap.String("game_id", client.gameID),
		zap.Int("clients", len(clients)),
	)
}

func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.clients[msg.gameID] {
		if msg.client != nil && msg.client != client {
			continue
		}
		select {
		case client.send <- msg.payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("dropping slow websocket client", zap.String("game_id", client.gameID))
		h.removeClient(client)
	}
}

func (h *Hub) enqueue(msg outbound) {
	select {
	case h.outbound <- msg:
	case <-h.done:
	}
}

// ClientCount returns the number of clients watching a game.
func (h *Hub) ClientCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[gameID])
}

// HandleNotification is the engine's notification handler.
func (h *Hub) HandleNotification(n game.GameNotification) {
	switch n.Type {
	case game.NotificationGameEnded:
		payload, err := json.Marshal(WSMessage{Type: MessageGameEnded, GameID: n.GameID, Data: n.Data})
		if err != nil {
			return
		}
		h.enqueue(outbound{gameID: n.GameID, payload: payload})
	default:
		if h.ClientCount(n.GameID) == 0 {
			return
		}
		payload, err := h.viewPayload(n.GameID)
		if err != nil {
			return
		}
		h.enqueue(outbound{gameID: n.GameID, payload: payload})
	}
}

func (h *Hub) viewPayload(gameID string) ([]byte, error) {
	view, err := h.engine.GetGameView(gameID, side.Player)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{Type: MessageGameState, GameID: gameID, Data: view})
}

// ServeHTTP upgrades /ws?game_id=... requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		http.Error(w, "game_id is required", http.StatusBadRequest)
		return
	}
	initial, err := h.viewPayload(gameID)
	if err != nil {
		if errors.Is(err, game.ErrGameNotFound) {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to build view", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		gameID: gameID,
	}
	// Queue the first view before the client becomes visible to broadcasts.
	client.send <- initial

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) reply(msg WSMessage) {
	msg.GameID = c.gameID
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.enqueue(outbound{gameID: c.gameID, client: c, payload: payload})
}

func (c *Client) handleMessage(msg WSMessage) {
	engine := c.hub.engine
	switch msg.Type {
	case MessagePlay:
		if msg.HandIndex == nil {
			c.reply(WSMessage{Type: MessageError, Error: "hand_index is required"})
			return
		}
		if err := engine.PlayCard(c.gameID, side.Player, *msg.HandIndex, sourceWebSocket); err != nil {
			c.reply(WSMessage{Type: MessageError, Error: err.Error()})
			return
		}
		c.reply(WSMessage{Type: MessageAck, Data: MessagePlay})

	case MessagePass:
		if err := engine.Pass(c.gameID, side.Player, sourceWebSocket); err != nil {
			c.reply(WSMessage{Type: MessageError, Error: err.Error()})
			return
		}
		c.reply(WSMessage{Type: MessageAck, Data: MessagePass})

	case MessageFocus:
		// No hand_index clears the focus.
		index := -1
		if msg.HandIndex != nil {
			index = *msg.HandIndex
		}
		if err := engine.Focus(c.gameID, side.Player, index); err != nil {
			c.reply(WSMessage{Type: MessageError, Error: err.Error()})
			return
		}
		fallthrough

	case MessageRefresh:
		payload, err := c.hub.viewPayload(c.gameID)
		if err != nil {
			c.reply(WSMessage{Type: MessageError, Error: err.Error()})
			return
		}
		c.hub.enqueue(outbound{gameID: c.gameID, client: c, payload: payload})

	default:
		c.reply(WSMessage{Type: MessageError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.String("game_id", c.gameID), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(WSMessage{Type: MessageError, Error: "malformed message"})
			continue
		}
		c.handleMessage(msg)
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// StartWebSocketServer serves the hub on cfg.Address until ctx is done.
func StartWebSocketServer(ctx context.Context, cfg config.WebSocketConfig, hub *Hub, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:        cfg.Address,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting WebSocket server",
		zap.String("address", cfg.Address),
		zap.String("path", cfg.Path),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
