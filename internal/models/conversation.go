package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a two-party message container. Participants are stored
// separately (exactly two rows per conversation).
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"` // touched whenever a message is added
}

// ConversationSummary is a conversation as presented in listings: the other
// participant and the most recent message, if any.
type ConversationSummary struct {
	Conversation
	OtherUser   *PublicUser `json:"other_user"`
	LastMessage *Message    `json:"last_message"`
}
