package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wonny/phwatch/internal/metrics"
	"github.com/wonny/phwatch/pkg/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 90 * time.Second
	pingInterval = 45 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	id   string
	conn *websocket.Conn
	out  chan Message
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans out messages to every connected websocket client.
// The last overview is replayed to new clients on connect.
// ⭐ SSOT: websocket push of overview updates and alerts
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	last     *Message
	logger   *logger.Logger
	metrics  *metrics.Registry
	dropped  int
	shutdown bool
}

// NewHub creates an empty hub
func NewHub(reg *metrics.Registry, log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  log.WithComponent("ws_hub"),
		metrics: reg,
	}
}

// Broadcast queues msg for every client. Slow clients drop messages
// instead of blocking the publisher.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	if msg.Type == MessageOverview {
		cp := msg
		h.last = &cp
	}
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.out <- msg:
		default:
			h.mu.Lock()
			h.dropped++
			h.mu.Unlock()
			h.logger.WithField("client", c.id).Warn("websocket client too slow, message dropped")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were dropped for slow clients
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// ServeHTTP upgrades the request and streams messages until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan Message, sendBuffer),
		done: make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.shutdown = true
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.metrics.SetWSClients(0)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		return false
	}
	h.clients[c.id] = c
	n := len(h.clients)
	last := h.last
	h.mu.Unlock()

	h.metrics.SetWSClients(n)
	h.logger.WithField("client", c.id).WithField("clients", n).Info("websocket client connected")

	c.out <- NewMessage(MessageStatus, map[string]string{"client_id": c.id, "status": "connected"})
	if last != nil {
		c.out <- *last
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.metrics.SetWSClients(n)
	h.logger.WithField("client", c.id).WithField("clients", n).Info("websocket client disconnected")
}

func (h *Hub) writeLoop(c *client) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				h.logger.WithError(err).WithField("client", c.id).Debug("websocket write failed")
				c.close()
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// readLoop only services control frames; client messages are ignored
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
	}
}
