// Package events streams batch events and progress to websocket clients.
package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sells-group/lender-enrich/internal/model"
)

// Message types.
const (
	TypeConnected = "connected"
	TypeEvent     = "event"
	TypeProgress  = "progress"
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config tunes connection housekeeping.
type Config struct {
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	PingPeriod   time.Duration
	SendBuffer   int
}

// DefaultConfig returns the settings used by NewHub.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		PongTimeout:  60 * time.Second,
		PingPeriod:   54 * time.Second, // below PongTimeout
		SendBuffer:   256,
	}
}

// Hub fans published messages out to connected websocket clients. Clients
// that fall behind lose messages rather than stall the publisher.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	id    string
	runID string
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
}

// NewHub creates a hub with DefaultConfig.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultConfig())
}

// NewHubWithConfig creates a hub with cfg.
func NewHubWithConfig(cfg Config) *Hub {
	return &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API sits behind CORS; the stream carries no credentials.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and registers the connection. The optional
// "run" query parameter limits the stream to one batch run.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("events: websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:    uuid.NewString(),
		runID: r.URL.Query().Get("run"),
		conn:  conn,
		send:  make(chan []byte, h.cfg.SendBuffer),
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)

	h.sendTo(c, Message{Type: TypeConnected, RunID: c.runID, Data: map[string]string{"client_id": c.id}})
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends msg to every client subscribed to its run, or to all runs.
func (h *Hub) Publish(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("events: marshal message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.runID != "" && c.runID != msg.RunID {
			continue
		}
		h.enqueue(c, data)
	}
}

// Event publishes ev without a run id.
func (h *Hub) Event(ev model.Event) {
	h.Publish(Message{Type: TypeEvent, Data: ev})
}

// Progress publishes p without a run id.
func (h *Hub) Progress(p model.Progress) {
	h.Publish(Message{Type: TypeProgress, Data: p})
}

// ForRun returns a reporter that tags every message with runID.
func (h *Hub) ForRun(runID string) *RunReporter {
	return &RunReporter{hub: h, runID: runID}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// RunReporter publishes a single run's events to the hub.
type RunReporter struct {
	hub   *Hub
	runID string
}

// Event publishes ev tagged with the reporter's run id.
func (r *RunReporter) Event(ev model.Event) {
	r.hub.Publish(Message{Type: TypeEvent, RunID: r.runID, Data: ev})
}

// Progress publishes p tagged with the reporter's run id.
func (r *RunReporter) Progress(p model.Progress) {
	r.hub.Publish(Message{Type: TypeProgress, RunID: r.runID, Data: p})
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	zap.L().Debug("events: client connected", zap.String("client", c.id), zap.Int("clients", n))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if ok {
		c.close()
		zap.L().Debug("events: client disconnected", zap.String("client", c.id))
	}
}

func (h *Hub) sendTo(c *client, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.id]; ok {
		h.enqueue(c, data)
	}
}

// enqueue must be called with h.mu held so close cannot race the send.
func (h *Hub) enqueue(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		zap.L().Debug("events: dropping message for slow client", zap.String("client", c.id))
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// readPump discards client frames and keeps the read deadline fresh.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close() //nolint:errcheck
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("events: read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
