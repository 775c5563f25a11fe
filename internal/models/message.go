package models

import (
	"time"

	"github.com/google/uuid"
)

// OriginKind indicates how a message was originally submitted.
// It never changes after the message is created.
type OriginKind string

const (
	OriginText  OriginKind = "text"
	OriginVoice OriginKind = "voice"
)

// ProcessingStatus tracks the asynchronous conversion of a message
// (transcription for voice, speech synthesis for text).
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether no further status transition may occur.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Message represents one message in a two-party conversation.
//
// A text-origin message has Text from the start and gains AudioURL when
// synthesis completes. A voice-origin message has AudioURL from the start
// and gains Text when transcription completes. A failed conversion leaves
// the counterpart field unset.
type Message struct {
	ID             string           `json:"id"` // ULID
	ConversationID uuid.UUID        `json:"conversation_id"`
	SenderID       uuid.UUID        `json:"sender_id"`
	Text           *string          `json:"text"`
	AudioURL       *string          `json:"audio_url"`
	Origin         OriginKind       `json:"origin"`
	Status         ProcessingStatus `json:"processing_status"`
	CreatedAt      time.Time        `json:"created_at"`
}
