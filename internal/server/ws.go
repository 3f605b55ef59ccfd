package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// wsClient pairs a connection with its write lock. gorilla/websocket
// allows at most one concurrent writer per connection, and the three
// synchronizers publish from independent goroutines.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Hub pushes every successfully published snapshot to connected UI
// subscribers. It implements syncer.Publisher.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]*wsClient
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The daemon serves the local wallet UI only.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "ws"),
		conns:  make(map[*websocket.Conn]*wsClient),
	}
}

// Serve upgrades the connection and keeps it registered until the
// client goes away.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = &wsClient{conn: conn}
	count := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("Subscriber connected", "subscribers", count)

	// Drain the read side to notice close frames.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish broadcasts a snapshot update frame to all subscribers.
// Safe to call from multiple synchronizers concurrently.
func (h *Hub) Publish(kind string, payload any) {
	frame, err := json.Marshal(map[string]any{
		"type": kind,
		"data": payload,
		"ts":   time.Now().UnixMilli(),
	})
	if err != nil {
		h.logger.Error("Failed to encode update frame", "kind", kind, "error", err)
		return
	}

	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.conns))
	for _, client := range h.conns {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.write(frame); err != nil {
			h.logger.Debug("Dropping slow subscriber", "error", err)
			h.drop(client.conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}

func (h *Hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
