// Package ws pushes alerts to browser clients over websockets.
package ws

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/notify"
)

const (
	EventAlert     = "alert"
	EventDismissed = "dismissed"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second
	// sendBuffer is how many frames may wait for a client before it is
	// dropped as too slow.
	sendBuffer = 64
)

// Envelope is every frame the hub writes.
type Envelope struct {
	Event string          `json:"event"`
	Alert *notify.Message `json:"alert,omitempty"`
	Tag   string          `json:"tag,omitempty"`
}

// ClientMessage is what clients may send.
type ClientMessage struct {
	Dismiss string `json:"dismiss"`
}

// client owns one socket. Only its writer goroutine writes to conn.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is a notify.Channel that keeps the latest alert per tag and
// broadcasts it to every connected socket. New sockets get the active
// alerts replayed. Broadcasting never waits on a socket: each client has
// its own queue and a client whose queue is full is disconnected.
type Hub struct {
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	writeWait time.Duration

	mutex   sync.Mutex
	clients map[*client]bool
	active  map[string]notify.Message
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:    logger,
		upgrader:  websocket.Upgrader{CheckOrigin: checkLoopbackOrigin},
		writeWait: writeWait,
		clients:   make(map[*client]bool),
		active:    make(map[string]notify.Message),
	}
}

// checkLoopbackOrigin lets through clients without an Origin header and
// pages served from the local machine.
func checkLoopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (h *Hub) Name() string { return "websocket" }

// Send replaces the active alert for msg.Tag and broadcasts it. It never
// fails and never blocks on a client.
func (h *Hub) Send(_ context.Context, msg notify.Message) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.active[msg.Tag] = msg
	h.broadcast(Envelope{Event: EventAlert, Alert: &msg})
	return nil
}

// Dismiss drops the active alert for tag and tells every client.
func (h *Hub) Dismiss(tag string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.active[tag]; !ok {
		return false
	}
	delete(h.active, tag)
	h.broadcast(Envelope{Event: EventDismissed, Tag: tag})
	return true
}

// Active returns the active alerts, oldest first.
func (h *Hub) Active() []notify.Message {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.activeLocked()
}

func (h *Hub) activeLocked() []notify.Message {
	out := make([]notify.Message, 0, len(h.active))
	for _, m := range h.active {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Close disconnects every client. Active alerts are kept.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		h.dropLocked(c)
	}
}

// broadcast must be called with mutex held.
func (h *Hub) broadcast(env Envelope) {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to marshal alert frame", zap.Error(err))
		return
	}
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("websocket client too slow, disconnecting")
			h.dropLocked(c)
		}
	}
}

// dropLocked unregisters c and closes its queue, which makes its writer
// say goodbye and close the socket. Safe to call twice.
func (h *Hub) dropLocked(c *client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) drop(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.dropLocked(c)
}

// writePump drains c.send onto the socket until the queue is closed or a
// write fails or times out.
func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Warn("failed to send websocket frame", zap.Error(err))
			h.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
}

// ServeWS upgrades the request, replays active alerts and then reads
// dismiss requests until the client goes away.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mutex.Lock()
	active := h.activeLocked()
	cl := &client{conn: conn, send: make(chan []byte, sendBuffer+len(active))}
	for i := range active {
		frame, err := json.Marshal(Envelope{Event: EventAlert, Alert: &active[i]})
		if err != nil {
			continue
		}
		cl.send <- frame
	}
	h.clients[cl] = true
	h.mutex.Unlock()

	go h.writePump(cl)
	defer h.drop(cl)

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		if msg.Dismiss != "" {
			h.Dismiss(msg.Dismiss)
		}
	}
}

// ListActive serves the active alerts as JSON.
func (h *Hub) ListActive(c *gin.Context) {
	c.JSON(http.StatusOK, h.Active())
}

// DismissTag handles DELETE /alerts/:tag.
func (h *Hub) DismissTag(c *gin.Context) {
	if !h.Dismiss(c.Param("tag")) {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
