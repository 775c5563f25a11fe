package voiceapp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Event is a live notification pushed over the WebSocket connection.
type Event struct {
	Type           string `json:"type"` // "new_message" or "message_updated"
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// EventStream is a live WebSocket subscription to the account's events.
type EventStream struct {
	conn *websocket.Conn
}

// Events opens the WebSocket connection and subscribes to live events for
// the authenticated account. Close the stream when done.
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1) + "/ws"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.Token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		resp.Body.Close()
	}
	return &EventStream{conn: conn}, nil
}

// Next blocks until the next event arrives. Pings from the server are
// answered automatically by the underlying connection.
func (s *EventStream) Next() (*Event, error) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	}
}

// Close terminates the subscription.
func (s *EventStream) Close() error {
	return s.conn.Close()
}
