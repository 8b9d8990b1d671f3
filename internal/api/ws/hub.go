// Package ws streams capability events (notifications, menu commands,
// script logs, clipboard writes) to connected shell UIs.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/voyx/engine/internal/infrastructure/monitoring"
	"github.com/voyx/engine/internal/userscript/capability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The control plane binds locally; the shell UI is the only
		// expected origin.
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	clientBacklog  = 64
	welcomeMessage = "connected to voyx engine"
)

// Hub fans capability events out to every connected client. Publish
// never blocks; a client that cannot keep up is dropped.
type Hub struct {
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan capability.Event
}

// NewHub creates an event hub.
func NewHub(metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:  logger,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// Publish delivers an event to all clients. It is the capability Sink
// wired into the engine.
func (h *Hub) Publish(e capability.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- e:
			if h.metrics != nil {
				h.metrics.RecordWSMessage("out", e.Type)
			}
		default:
			// Slow consumer; closing send makes its write pump exit.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and streams events until the
// client disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan capability.Event, clientBacklog)}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}

	conn.WriteJSON(map[string]any{"type": "system", "message": welcomeMessage})

	go h.writePump(cl)
	h.readPump(cl)

	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
}

func (h *Hub) writePump(cl *client) {
	for e := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(e); err != nil {
			h.drop(cl)
			return
		}
	}
	cl.conn.Close()
}

// readPump consumes client messages. The only expected message is a
// ping; everything else is ignored. Exits on disconnect.
func (h *Hub) readPump(cl *client) {
	defer h.drop(cl)
	for {
		var msg struct {
			Type string `json:"type"`
		}
		if err := cl.conn.ReadJSON(&msg); err != nil {
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}
		if msg.Type == "ping" {
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			cl.conn.WriteJSON(map[string]any{"type": "pong"})
		}
	}
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()

	cl.conn.Close()
}
