package game

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"instantwin/internal/logger"
)

const (
	HUB_BROADCAST_BUFFER = 100
	WS_WRITE_TIMEOUT     = 10 * time.Second

	WS_TYPE_SETTLEMENT    = "settlement"
	WS_TYPE_INITIAL_STATE = "initial_state"
)

// Conn is the part of a websocket connection the hub writes to.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one live feed subscriber. Every write to its connection, feed
// or reply, goes through Send so writes never overlap.
type Client struct {
	conn   Conn
	userID string
	mu     sync.Mutex
	closed bool
}

func (c *Client) UserID() string { return c.userID }

// Send marshals msg and writes it. Writes after the client left are dropped.
func (c *Client) Send(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Component("ws").Error("send marshal", "type", msg.Type, logger.Err(err))
		return
	}
	c.write(data)
}

func (c *Client) write(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.conn.SetWriteDeadline(time.Now().Add(WS_WRITE_TIMEOUT))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Component("ws").Warn("write failed", "player", c.userID, logger.Err(err))
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.conn.Close()
	}
}

// Hub fans settled rounds out to every connected websocket client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, HUB_BROADCAST_BUFFER),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		log:        logger.Component("ws"),
	}
}

// Run owns the client set until Stop. Connections still open at Stop are
// closed.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client connected", "player", client.userID, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.log.Debug("client disconnected", "player", client.userID, "total", len(h.clients))
			}
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				go client.write(data)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// PublishSettlement queues a settled round for every subscriber. It never
// blocks; the message is dropped when the buffer is full.
func (h *Hub) PublishSettlement(s SettlementMessage) {
	data, err := json.Marshal(WSMessage{Type: WS_TYPE_SETTLEMENT, Data: s})
	if err != nil {
		h.log.Error("marshal settlement", "round_id", s.RoundID, logger.Err(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("broadcast channel full, dropping settlement", "round_id", s.RoundID)
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RegisterClient adds conn to the feed and greets it with the player's open
// rounds, if any. It returns nil once the hub has stopped.
func (h *Hub) RegisterClient(conn Conn, userID string, open []RoundView) *Client {
	client := &Client{
		conn:   conn,
		userID: userID,
	}
	if len(open) > 0 {
		client.Send(WSMessage{Type: WS_TYPE_INITIAL_STATE, Data: open})
	}
	select {
	case h.register <- client:
		return client
	case <-h.stop:
		client.close()
		return nil
	}
}

func (h *Hub) UnregisterClient(client *Client) {
	if client == nil {
		return
	}
	select {
	case h.unregister <- client:
	case <-h.stop:
		client.close()
	}
}
