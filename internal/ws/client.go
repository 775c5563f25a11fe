package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// ErrSendBufferFull is returned when a client's outbound buffer is full.
var ErrSendBufferFull = errors.New("send buffer full")

// socket abstracts the underlying WebSocket connection so liveness and
// fan-out can be tested without a network.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is one live connection owned by the Registry for its lifetime.
type Client struct {
	UserID    uuid.UUID
	CreatedAt time.Time

	sock      socket
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(userID uuid.UUID, sock socket) *Client {
	return &Client{
		UserID:    userID,
		CreatedAt: time.Now(),
		sock:      sock,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
	}
}

// Send enqueues data for the write pump. It never blocks: a full buffer or a
// closed connection returns an error for the caller to swallow (delivery is
// best-effort).
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Ping sends a liveness probe using the transport's control frame.
func (c *Client) Ping() error {
	return c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close tears down the transport. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// closeWith sends a close frame with the given status code before closing.
func (c *Client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.sock.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.Close()
}
