package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/fleetpulse/core/events"
	"github.com/kilianp07/fleetpulse/core/logger"
	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/internal/eventbus"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod  = (pongWait * 9) / 10
	sendBufSize = 16
)

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string `json:"event"` // "stage" or "run"
	Data  any    `json:"data"`
}

// StageData describes a state machine transition of a run.
type StageData struct {
	RunID     string      `json:"runId"`
	From      model.Stage `json:"from"`
	Stage     model.Stage `json:"stage"`
	ElapsedMS int64       `json:"elapsedMs"`
	Time      time.Time   `json:"time"`
}

// RunData describes a finished run.
type RunData struct {
	RunID      string              `json:"runId"`
	URL        string              `json:"url"`
	OK         bool                `json:"ok"`
	Error      string              `json:"error,omitempty"`
	DurationMS int64               `json:"durationMs"`
	Summary    *model.FleetSummary `json:"summary,omitempty"`
	Errors     []model.RecordError `json:"errors,omitempty"`
	Time       time.Time           `json:"time"`
}

// Hub pushes pipeline events to connected WebSocket clients. Browsers may
// only connect from the serving origin or one of the allowed origins.
type Hub struct {
	logger   logger.Logger
	origins  []string
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	lastRun []byte
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates an empty Hub. allowedOrigins lists extra browser origins, such
// as "https://dashboard.example.com", accepted besides the serving host.
func New(log logger.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{logger: log, origins: allowedOrigins, clients: make(map[*client]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts non-browser clients (no Origin header), same-origin
// pages and the configured origins.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host) || slices.Contains(h.origins, origin)
}

// Run forwards events from sub until the channel closes or ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context, sub <-chan eventbus.Event) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			h.Publish(ev)
		}
	}
}

// Publish converts a pipeline event and broadcasts it. Other events are
// ignored.
func (h *Hub) Publish(ev eventbus.Event) {
	msg, ok := toMessage(ev)
	if !ok {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("ws: marshal %s event: %v", msg.Event, err)
		return
	}
	if msg.Event == "run" {
		h.mu.Lock()
		h.lastRun = data
		h.mu.Unlock()
	}
	h.broadcast(data)
}

func toMessage(ev eventbus.Event) (Message, bool) {
	switch e := ev.(type) {
	case events.StageEvent:
		return Message{Event: "stage", Data: StageData{
			RunID:     e.RunID,
			From:      e.From,
			Stage:     e.Stage,
			ElapsedMS: e.Elapsed.Milliseconds(),
			Time:      e.Time,
		}}, true
	case events.RunCompletedEvent:
		d := RunData{
			RunID:      e.RunID,
			URL:        e.URL,
			OK:         e.Succeeded(),
			DurationMS: e.Duration.Milliseconds(),
			Time:       e.Time,
		}
		if e.Err != nil {
			d.Error = e.Err.Error()
		}
		if e.Result != nil {
			d.Summary = &e.Result.Summary
			d.Errors = e.Result.Errors
		}
		return Message{Event: "run", Data: d}, true
	default:
		return Message{}, false
	}
}

// ServeHTTP upgrades the connection and streams events to the client until it
// disconnects. The last run, if any, is sent right away. Once the hub has shut
// down new connections are refused.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBufSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.lastRun != nil {
		c.send <- h.lastRun
	}
	h.mu.Unlock()
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow client, drop it.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	defer func() { _ = c.conn.Close() }()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
