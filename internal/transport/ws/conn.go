// Package ws serves live notification sessions over websockets.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fintrack/internal/log"
	"fintrack/internal/session"
)

var (
	ErrClosed       = errors.New("connection closed")
	ErrSlowConsumer = errors.New("connection outbox full")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Conn is a session.Conn backed by a websocket. Events are queued in a
// bounded outbox drained by a single writer goroutine.
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	outbox chan session.Event

	closeOnce sync.Once
	done      chan struct{}
	logger    *log.Logger
}

var _ session.Conn = (*Conn)(nil)

func newConn(ws *websocket.Conn, userID string, buffer int) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	id := uuid.NewString()
	return &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		outbox: make(chan session.Event, buffer),
		done:   make(chan struct{}),
		logger: log.ForComponent(log.ComponentWebSocket).With(log.FieldConnID, id, log.FieldUserID, userID),
	}
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// Send queues ev without blocking.
func (c *Conn) Send(ev session.Event) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outbox <- ev:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSlowConsumer
	}
}

// Close stops the writer and closes the socket. Safe to call repeatedly.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Conn) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case ev := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				c.logger.DebugContext(ctx, "Websocket write failed", log.FieldError, err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client frames and returns when the peer goes away.
func (c *Conn) readLoop() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("Websocket closed unexpectedly", log.FieldError, err)
			}
			return
		}
	}
}
