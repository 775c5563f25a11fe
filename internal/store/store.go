package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/devspinn/voiceapp/internal/models"
)

// DataStore defines the interface for persistent storage of users,
// conversations and messages. Both PostgresStore and SQLiteStore implement
// this interface. Lookup methods return (nil, nil) when the row is absent.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SearchUsers(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]models.PublicUser, error)

	// Conversation operations
	CreateConversation(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindConversationBetween(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	TouchConversation(ctx context.Context, id uuid.UUID) error
	GetParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID, before string, limit int) ([]models.Message, error)
	SetMessageStatus(ctx context.Context, id string, status models.ProcessingStatus) error
	SetMessageText(ctx context.Context, id, text string, status models.ProcessingStatus) error
	SetMessageAudio(ctx context.Context, id, audioURL string, status models.ProcessingStatus) error
}
