package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devspinn/voiceapp/internal/models"
)

// postgresSchema creates the tables on first start. Statements are idempotent
// so running them on every boot is safe.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	email TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conversations (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS conversation_participants (
	conversation_id UUID NOT NULL REFERENCES conversations(id),
	user_id UUID NOT NULL REFERENCES users(id),
	PRIMARY KEY (conversation_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id UUID NOT NULL REFERENCES conversations(id),
	sender_id UUID NOT NULL REFERENCES users(id),
	text TEXT,
	audio_url TEXT,
	origin TEXT NOT NULL,
	processing_status TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
`

// RunMigrations applies the schema to the database at databaseURL.
func RunMigrations(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, postgresSchema)
	return err
}

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, name, password_hash, created_at, updated_at
	`, uuid.New(), email, name, passwordHash).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`, email).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// SearchUsers finds users whose name or email contains the query, excluding
// the searching user.
func (s *PostgresStore) SearchUsers(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]models.PublicUser, error) {
	pattern := "%" + query + "%"
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email
		FROM users
		WHERE id != $1 AND (name ILIKE $2 OR email ILIKE $2)
		ORDER BY name
		LIMIT $3
	`, exclude, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.PublicUser
	for rows.Next() {
		var u models.PublicUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateConversation creates a two-party conversation between a and b.
func (s *PostgresStore) CreateConversation(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	conv := &models.Conversation{}
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations (id)
		VALUES ($1)
		RETURNING id, created_at, updated_at
	`, uuid.New()).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2), ($1, $3)
	`, conv.ID, a, b)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// FindConversationBetween finds the existing conversation shared by a and b.
func (s *PostgresStore) FindConversationBetween(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT c.id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants pa ON pa.conversation_id = c.id AND pa.user_id = $1
		JOIN conversation_participants pb ON pb.conversation_id = c.id AND pb.user_id = $2
		LIMIT 1
	`, a, b).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return conv, nil
}

// ListConversations lists the user's conversations, most recently active
// first, each with the other participant and the latest message.
func (s *PostgresStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = $1
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var sum models.ConversationSummary
		if err := rows.Scan(&sum.ID, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		other := &models.PublicUser{}
		err := s.pool.QueryRow(ctx, `
			SELECT u.id, u.name, u.email
			FROM conversation_participants p
			JOIN users u ON u.id = p.user_id
			WHERE p.conversation_id = $1 AND p.user_id != $2
			LIMIT 1
		`, summaries[i].ID, userID).Scan(&other.ID, &other.Name, &other.Email)
		if err == nil {
			summaries[i].OtherUser = other
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		last, err := s.latestMessage(ctx, summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].LastMessage = last
	}

	return summaries, nil
}

func (s *PostgresStore) latestMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, text, audio_url, origin, processing_status, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, conversationID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Text,
		&msg.AudioURL,
		&msg.Origin,
		&msg.Status,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// TouchConversation updates the updated_at timestamp.
func (s *PostgresStore) TouchConversation(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET updated_at = NOW() WHERE id = $1
	`, id)
	return err
}

// GetParticipantIDs returns the user IDs participating in a conversation.
func (s *PostgresStore) GetParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM conversation_participants WHERE conversation_id = $1
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsParticipant reports whether the user participates in the conversation.
func (s *PostgresStore) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&exists)
	return exists, err
}

// CreateMessage inserts a new message row.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, text, audio_url, origin, processing_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.AudioURL, msg.Origin, msg.Status).
		Scan(&msg.CreatedAt)
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, conversation_id, sender_id, text, audio_url, origin, processing_status, created_at
		FROM messages WHERE id = $1
	`, id).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Text,
		&msg.AudioURL,
		&msg.Origin,
		&msg.Status,
		&msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves up to limit messages, newest first. Message IDs are
// ULIDs, so lexicographic order matches creation order; before is an
// exclusive ID cursor ("" for the newest page).
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID, before string, limit int) ([]models.Message, error) {
	var rows pgx.Rows
	var err error
	if before != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, conversation_id, sender_id, text, audio_url, origin, processing_status, created_at
			FROM messages
			WHERE conversation_id = $1 AND id < $2
			ORDER BY id DESC
			LIMIT $3
		`, conversationID, before, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, conversation_id, sender_id, text, audio_url, origin, processing_status, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY id DESC
			LIMIT $2
		`, conversationID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.Text,
			&msg.AudioURL,
			&msg.Origin,
			&msg.Status,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SetMessageStatus updates a message's processing status. Terminal statuses
// are never overwritten.
func (s *PostgresStore) SetMessageStatus(ctx context.Context, id string, status models.ProcessingStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE messages SET processing_status = $2
		WHERE id = $1 AND processing_status NOT IN ('completed', 'failed')
	`, id, status)
	return err
}

// SetMessageText persists derived text together with the new status as a
// single update.
func (s *PostgresStore) SetMessageText(ctx context.Context, id, text string, status models.ProcessingStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE messages SET text = $2, processing_status = $3
		WHERE id = $1 AND processing_status NOT IN ('completed', 'failed')
	`, id, text, status)
	return err
}

// SetMessageAudio persists a derived audio reference together with the new
// status as a single update.
func (s *PostgresStore) SetMessageAudio(ctx context.Context, id, audioURL string, status models.ProcessingStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE messages SET audio_url = $2, processing_status = $3
		WHERE id = $1 AND processing_status NOT IN ('completed', 'failed')
	`, id, audioURL, status)
	return err
}
