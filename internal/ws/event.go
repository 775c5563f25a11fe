package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventType discriminates the wire envelope.
type EventType string

const (
	// TypeNewMessage signals a message was created; content may still be
	// incomplete (conversion pending).
	TypeNewMessage EventType = "new_message"
	// TypeMessageUpdated signals a message changed (conversion finished,
	// successfully or not). Clients re-fetch by ID.
	TypeMessageUpdated EventType = "message_updated"
)

// Event is the immutable envelope sent to live connections. It carries only
// identities; receivers re-fetch full state. There are exactly two variants,
// built with NewMessage and MessageUpdated.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      string    `json:"messageId"`
}

// NewMessage builds a new_message event.
func NewMessage(conversationID uuid.UUID, messageID string) Event {
	return Event{Type: TypeNewMessage, ConversationID: conversationID, MessageID: messageID}
}

// MessageUpdated builds a message_updated event.
func MessageUpdated(conversationID uuid.UUID, messageID string) Event {
	return Event{Type: TypeMessageUpdated, ConversationID: conversationID, MessageID: messageID}
}

// Encode serializes the event to its wire representation. Encoding happens
// once per fan-out, at the boundary; business logic only handles Event values.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
