package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/podscrub/podscrub/internal/models"
)

const (
	wsWriteTimeout = 5 * time.Second
	// Slow consumers are disconnected rather than buffered without bound.
	wsSendBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// hub fans job events out to connected websocket clients.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	logger  *slog.Logger
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		clients: make(map[*wsClient]struct{}),
		logger:  logger,
	}
}

// Broadcast queues an event for every connected client.
func (h *hub) Broadcast(event models.JobEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Warn("marshal job event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client is not draining; drop it.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// handleWS serves GET /api/jobs/ws: upgrades the connection and streams job
// events until the client disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}

	s.hub.mu.Lock()
	s.hub.clients[client] = struct{}{}
	s.hub.mu.Unlock()

	go s.hub.writeLoop(client)
	s.hub.readLoop(client)
}

// writeLoop drains the client's send queue.
func (h *hub) writeLoop(c *wsClient) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
	c.conn.Close()
}

// readLoop consumes inbound frames (only the hello and pings are expected)
// and unregisters the client on disconnect.
func (h *hub) readLoop(c *wsClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
