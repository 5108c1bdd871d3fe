package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"fintrack/internal/log"
	"fintrack/internal/session"
)

// Handler upgrades authenticated requests and registers the resulting
// connection for the lifetime of the socket.
type Handler struct {
	registry *session.Registry
	identify func(*http.Request) (string, bool)
	buffer   int
	upgrader websocket.Upgrader
	base     context.Context
	logger   *log.Logger
}

// NewHandler builds a websocket endpoint. identify returns the user id
// of the request. base is cancelled on server shutdown and closes every
// socket.
func NewHandler(base context.Context, registry *session.Registry, identify func(*http.Request) (string, bool), buffer int) *Handler {
	return &Handler{
		registry: registry,
		identify: identify,
		buffer:   buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		base:   base,
		logger: log.ForComponent(log.ComponentWebSocket),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identify(r)
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.WarnContext(r.Context(), "Websocket upgrade failed", log.FieldUserID, userID, log.FieldError, err)
		return
	}

	conn := newConn(ws, userID, h.buffer)
	h.registry.Register(conn)
	users, conns := h.registry.Stats()
	h.logger.InfoContext(r.Context(), "Session opened",
		log.FieldUserID, userID, log.FieldConnID, conn.ID(),
		"online_users", users, "connections", conns)

	go conn.writeLoop(h.base)
	conn.readLoop()

	h.registry.Unregister(conn)
	conn.Close()
	h.logger.InfoContext(r.Context(), "Session closed", log.FieldUserID, userID, log.FieldConnID, conn.ID())
}
