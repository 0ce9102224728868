// Package realtime fans domain events out to websocket clients and handles
// the events they send back.
package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/talkincode/smartcart/internal/domain"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendQueueSize  = 64
)

// Frame is the wire format in both directions.
type Frame struct {
	Event string              `json:"event"`
	Data  jsoniter.RawMessage `json:"data,omitempty"`
}

type Hub struct {
	deps     Deps
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
}

func NewHub(deps Deps) *Hub {
	if deps.Timeout <= 0 {
		deps.Timeout = 5 * time.Second
	}
	return &Hub{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
}

// Broadcast queues event for every connected client. Clients whose queue
// is full miss the event.
func (h *Hub) Broadcast(event domain.Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		zap.L().Error("encode event failed", zap.String("namespace", "realtime"), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(msg)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket. A valid ?token= attaches
// the user identity to the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var identity *domain.Identity
	if token := r.URL.Query().Get("token"); token != "" && h.deps.Tokens != nil {
		id, err := h.deps.Tokens.Parse(token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		identity = &id
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.String("namespace", "realtime"), zap.Error(err))
		return
	}
	c := &Client{
		id:       uuid.NewString(),
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		identity: identity,
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	zap.L().Info("client connected", zap.String("namespace", "realtime"), zap.String("client", c.id))
	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	zap.L().Info("client disconnected", zap.String("namespace", "realtime"), zap.String("client", c.id))
	if device := c.DeviceID(); device != "" && h.deps.Devices != nil {
		h.deps.Devices.Gone(device)
	}
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
}

// Client is one websocket connection.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity *domain.Identity

	mu       sync.Mutex
	deviceID string
}

func (c *Client) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

func (c *Client) setDevice(id string) {
	c.mu.Lock()
	c.deviceID = id
	c.mu.Unlock()
}

// enqueue must be called with the hub read lock held so send is not closed
// underneath it.
func (c *Client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
		zap.L().Warn("client queue full, dropping frame", zap.String("namespace", "realtime"), zap.String("client", c.id))
	}
}

// reply sends a frame to this client only.
func (c *Client) reply(event string, data interface{}) {
	msg, err := json.Marshal(struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data"`
	}{event, data})
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; ok {
		c.enqueue(msg)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("websocket read failed", zap.String("namespace", "realtime"), zap.Error(err))
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			c.reply(ReplyError, domain.ErrorData{Message: "Malformed message"})
			continue
		}
		c.hub.dispatch(c, f)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
