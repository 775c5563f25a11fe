package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestStatusWriterStaysHijackable(t *testing.T) {
	req := require.New(t)

	upgrader := websocket.Upgrader{}
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		req.NoError(err)
		defer conn.Close()
		req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("hi")))
	}))

	srv := httptest.NewServer(handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.NoError(err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	req.NoError(err)
	req.Equal("hi", string(data))
}

func TestNormalizePathCollapsesIdentifiers(t *testing.T) {
	req := require.New(t)
	req.Equal("/conversations/{id}/messages",
		normalizePath("/conversations/7f0f2c7e-9b63-4a7e-8d47-3a2f0c9d1b22/messages"))
	req.Equal("/conversations/{id}/messages/{id}",
		normalizePath("/conversations/7f0f2c7e-9b63-4a7e-8d47-3a2f0c9d1b22/messages/01J9ZK2M7V8Q4R5T6Y7W8X9Z0A"))
	req.Equal("/health", normalizePath("/health"))
}
