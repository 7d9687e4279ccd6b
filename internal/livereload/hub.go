// Package livereload tells connected browsers to reload after a rebuild.
//
// Pages opt in by rendering kiln.LiveReloadScript, which connects to the
// hub's websocket path. The hub sends "reload" to every client after a
// successful build; a client whose connection drops reloads once the
// dev server is back.
package livereload

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/kiln/internal/logging"
	"github.com/conneroisu/kiln/pkg/kiln"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// ReloadMessage is the text frame that makes a client reload.
const ReloadMessage = "reload"

// Options configure a Hub.
type Options struct {
	// Path is the websocket path. Defaults to kiln.DefaultLiveReloadPath.
	Path string
	// OriginPatterns lists extra origins allowed to connect, in the
	// host patterns understood by websocket.AcceptOptions. Same-origin
	// connections are always allowed.
	OriginPatterns []string
	Logger         logging.Logger
}

// Hub tracks live reload clients.
type Hub struct {
	path    string
	origins []string
	log     logging.Logger

	clients    map[*websocket.Conn]*client
	register   chan *client
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	doneOnce   sync.Once
	mutex      sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// NewHub creates a hub. Run must be running for clients to register.
func NewHub(opts Options) *Hub {
	path := opts.Path
	if path == "" {
		path = kiln.DefaultLiveReloadPath
	}
	return &Hub{
		path:       path,
		origins:    opts.OriginPatterns,
		log:        logging.OrNop(opts.Logger).WithComponent("livereload"),
		clients:    make(map[*websocket.Conn]*client),
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
		broadcast:  make(chan []byte, 16),
		done:       make(chan struct{}),
	}
}

// Path returns the websocket path.
func (h *Hub) Path() string { return h.path }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Reload asks every client to reload.
func (h *Hub) Reload() {
	select {
	case h.broadcast <- []byte(ReloadMessage):
	default:
		// A reload is already queued.
	}
}

// ServeHTTP upgrades the request to a live reload connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{
		conn: conn,
		send: make(chan []byte, 8),
		hub:  h,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	go c.writePump()
	go c.readPump()
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.doneOnce.Do(func() { close(h.done) })
			h.closeAll()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.conn] = c
			count := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug(ctx, "client connected", "clients", count)

		case conn := <-h.unregister:
			h.mutex.Lock()
			if c, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				close(c.send)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug(ctx, "client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for conn, c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow client: drop it, it reloads on reconnect.
					delete(h.clients, conn)
					close(c.send)
				}
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.log.Info(ctx, "reload sent", "clients", count)
		}
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn, c := range h.clients {
		delete(h.clients, conn)
		close(c.send)
	}
}

// readPump drains the connection so pongs and closes are processed. It
// returns once writePump closes the connection or the peer goes away.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c.conn:
		case <-c.hub.done:
		}
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
