package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/shared/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// SendBufferSize is the outbound queue of every client, a client falling
	// this far behind is dropped.
	SendBufferSize = 64

	hubQueueSize = 256
)

// Hub keeps the client registry grouped by auction and broadcasts to each group.
// Only Run mutates the registry.
type Hub struct {
	mu sync.RWMutex
	// auction id -> clients watching it
	clients map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	// InboundMessages is consumed by the module handlers, e.g. the auction ws handler
	InboundMessages chan *ClientMessage
}

// Client represents a ws individual connection
type Client struct {
	Hub *Hub
	// The websocket connection.
	Conn *websocket.Conn
	// Buffered channel of outbound messages.
	Send chan []byte
	// The auction this client is watching.
	AuctionID string
	// Authenticated user, uuid.Nil for anonymous watchers.
	UserID uuid.UUID
	ID     string

	mu     sync.Mutex
	closed bool
}

// NewClient builds a client for conn with its outbound buffer.
func NewClient(hub *Hub, conn *websocket.Conn, auctionID string, userID uuid.UUID) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, SendBufferSize),
		AuctionID: auctionID,
		UserID:    userID,
		ID:        uuid.NewString(),
	}
}

type Message struct {
	AuctionID string
	Data      []byte
}

// ClientMessage wraps an inbound message with the client that sent it.
type ClientMessage struct {
	Client *Client
	Data   []byte
}

func NewHub() *Hub {
	return &Hub{
		broadcast:       make(chan *Message, hubQueueSize),
		register:        make(chan *Client, hubQueueSize),
		unregister:      make(chan *Client, hubQueueSize),
		clients:         make(map[string]map[*Client]bool),
		InboundMessages: make(chan *ClientMessage, hubQueueSize),
	}
}

// Run starts the hub listening in their channels, until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	log.Info("WebSocket Hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info("WebSocket Hub shutting down due to context cancellation")
			return
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	group, ok := h.clients[client.AuctionID]
	if !ok {
		group = make(map[*Client]bool)
		h.clients[client.AuctionID] = group
	}
	group[client] = true
	total := h.totalLocked()
	h.mu.Unlock()

	log.Info("Client registered",
		zap.String("clientID", client.ID),
		zap.String("auctionID", client.AuctionID),
		zap.String("userID", client.UserID.String()),
		zap.String("remote_addr", client.remoteAddr()),
		zap.Int("total_clients", total),
	)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.clients[client.AuctionID]
	if !ok || !group[client] {
		return
	}
	delete(group, client)
	client.closeSend()
	if len(group) == 0 {
		delete(h.clients, client.AuctionID)
	}
	log.Info("Client unregistered",
		zap.String("clientID", client.ID),
		zap.String("auctionID", client.AuctionID),
		zap.String("remote_addr", client.remoteAddr()),
		zap.Int("total_clients", h.totalLocked()),
	)
}

func (h *Hub) fanOut(message *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.clients[message.AuctionID]
	if !ok {
		return
	}
	log.Debug("Broadcasting message to auction", zap.String("auctionID", message.AuctionID), zap.Int("clients", len(group)))
	for client := range group {
		if !client.TrySend(message.Data) {
			// too slow, drop it so it can not hold the others back
			client.closeSend()
			delete(group, client)
			log.Warn("Failed to Send message to client, unregistering",
				zap.String("clientID", client.ID),
				zap.String("auctionID", client.AuctionID),
				zap.String("remote_addr", client.remoteAddr()),
			)
		}
	}
	if len(group) == 0 {
		delete(h.clients, message.AuctionID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, group := range h.clients {
		for client := range group {
			client.closeSend()
		}
		delete(h.clients, id)
	}
}

func (h *Hub) totalLocked() int {
	count := 0
	for _, group := range h.clients {
		count += len(group)
	}
	return count
}

// ClientCount is the number of clients watching auctionID.
func (h *Hub) ClientCount(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[auctionID])
}

// RegisterClient register a new client in the hub
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	default:
		log.Error("Register channel is full, client registration failed",
			zap.String("clientID", client.ID),
			zap.String("auctionID", client.AuctionID),
		)
		if client.Conn != nil {
			_ = client.Conn.Close()
		}
	}
}

// UnregisterClient delete a client from the hub, it is safe to call it twice.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	default:
		log.Error("Unregister channel is full, client unregistration failed",
			zap.String("clientID", client.ID),
			zap.String("auctionID", client.AuctionID),
		)
	}
}

// Broadcast sends data to every client watching auctionID. It never blocks,
// when the hub is saturated the message is dropped.
func (h *Hub) Broadcast(auctionID string, data []byte) bool {
	select {
	case h.broadcast <- &Message{AuctionID: auctionID, Data: data}:
		return true
	default:
		log.Error("Broadcast channel is full, message dropped", zap.String("auctionID", auctionID))
		return false
	}
}

// TrySend queues data for the client without blocking. It reports false when
// the buffer is full or the hub already dropped the client.
func (c *Client) TrySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) remoteAddr() string {
	if c.Conn == nil || c.Conn.Conn == nil {
		return ""
	}
	return c.Conn.RemoteAddr().String()
}

// ReadPump reads client messages and hands them to the hub InboundMessages channel.
// It must run in its own goroutine, one per client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
		log.Debug("ReadPump stopped for client",
			zap.String("clientID", c.ID),
			zap.String("auctionID", c.AuctionID),
		)
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if ctx.Err() != nil {
			return
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("WebSocket read error",
					zap.String("clientID", c.ID),
					zap.String("auctionID", c.AuctionID),
					zap.String("remote_addr", c.remoteAddr()),
					zap.Error(err),
				)
			}
			return
		}

		select {
		case c.Hub.InboundMessages <- &ClientMessage{Client: c, Data: message}:
		default:
			log.Error("Hub InboundMessages channel is full, dropping message",
				zap.String("clientID", c.ID),
				zap.String("auctionID", c.AuctionID),
				zap.ByteString("message", message),
			)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// Only this goroutine writes to the connection.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			err := c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			if err != nil {
				log.Debug("Failed to send close control message", zap.String("clientID", c.ID), zap.Error(err))
			}
			return

		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// one frame per message, clients parse each frame as a single json document
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("Failed to write message to client",
					zap.String("clientID", c.ID),
					zap.String("auctionID", c.AuctionID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error("Failed to write ping message to client",
					zap.String("clientID", c.ID),
					zap.String("auctionID", c.AuctionID),
					zap.Error(err),
				)
				return
			}
		}
	}
}
