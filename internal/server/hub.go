package server

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ChangedMessage is the only frame the hub sends.
const ChangedMessage = "changed"

const writeWait = 10 * time.Second

// hub fans change signals out to every connected websocket client.
type hub struct {
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	origins  []string
	mu       sync.Mutex
	clients  map[*client]struct{}
	closed   bool
}

type client struct {
	conn *websocket.Conn
	// send holds at most one pending signal; further signals merge into it.
	send chan struct{}
	done chan struct{}
}

// newHub accepts sockets from the server's own origin plus the listed
// origins; "*" allows any.
func newHub(log logrus.FieldLogger, origins []string) *hub {
	h := &hub{log: log, origins: origins, clients: make(map[*client]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// Broadcast queues a change signal for every client.
func (h *hub) Broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of connected clients.
func (h *hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.conn.Close()
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan struct{}, 1), done: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.WithField("remote_addr", r.RemoteAddr).Debug("websocket client connected")

	go h.write(c)
	h.read(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.done)
	conn.Close()
	h.log.WithField("remote_addr", r.RemoteAddr).Debug("websocket client disconnected")
}

// read drains incoming frames so close and ping frames are handled; it
// returns when the connection breaks.
func (h *hub) read(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) write(c *client) {
	for {
		select {
		case <-c.done:
			return
		case <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(ChangedMessage)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
