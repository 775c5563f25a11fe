package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// fakeSocket records frames instead of touching a network.
type fakeSocket struct {
	mu        sync.Mutex
	pings     int
	writes    [][]byte
	closed    bool
	pingErr   error
	writeErr  error
	pongFunc  func(string) error
	closeCode int
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("no inbound data")
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeSocket) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch messageType {
	case websocket.PingMessage:
		if f.pingErr != nil {
			return f.pingErr
		}
		f.pings++
	case websocket.CloseMessage:
		if len(data) >= 2 {
			f.closeCode = int(data[0])<<8 | int(data[1])
		}
	}
	return nil
}

func (f *fakeSocket) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeSocket) SetPongHandler(h func(string) error) { f.pongFunc = h }

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSocket) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func testClient(userID uuid.UUID) (*Client, *fakeSocket) {
	sock := &fakeSocket{}
	return newClient(userID, sock), sock
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
