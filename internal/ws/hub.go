package ws

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"medical-scheduler-api/internal/presence"
)

var ErrConnGone = errors.New("connection gone")

// Hub owns every live websocket connection and satisfies the
// dispatcher's Sender: it can push raw bytes to a connection by ID.
// Presence bookkeeping is delegated to the injected registry.
type Hub struct {
	registry *presence.Registry
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewHub(registry *presence.Registry, allowedOrigin string, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		log:   log.With().Str("component", "ws-hub").Logger(),
		conns: make(map[string]*Conn),
	}
}

// ServeConnection upgrades the request and runs the connection's pumps.
// recipientID comes from the authenticated request, never from the
// client payload.
func (h *Hub) ServeConnection(w http.ResponseWriter, r *http.Request, recipientID string) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConn(h, sock, recipientID)

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.log.Info().Str("conn_id", c.id).Str("recipient_id", recipientID).Int("total", h.count()).Msg("websocket connected")
	c.start()
}

// Send pushes raw bytes to one connection. A full send buffer counts as
// a delivery failure; the connection is torn down rather than blocking
// the caller.
func (h *Hub) Send(connID string, data []byte) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnGone
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnGone
	default:
		h.log.Warn().Str("conn_id", connID).Msg("send buffer full, dropping connection")
		h.drop(c)
		return ErrConnGone
	}
}

// drop removes the connection from the hub and from every presence set.
// Safe to call more than once; the send channel is never closed, the
// done signal stops the write pump instead.
func (h *Hub) drop(c *Conn) {
	h.mu.Lock()
	_, ok := h.conns[c.id]
	if ok {
		delete(h.conns, c.id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.registry.OnConnectionClosed(c.id)
	c.close()
	h.log.Info().Str("conn_id", c.id).Int("total", h.count()).Msg("websocket disconnected")
}

func (h *Hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
