package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/devspinn/voiceapp/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development and
// test fallback when DATABASE_URL is not configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/voiceapp.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/voiceapp.db"
	}

	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conversation_participants (
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (conversation_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		sender_id TEXT NOT NULL REFERENCES users(id),
		text TEXT,
		audio_url TEXT,
		origin TEXT NOT NULL,
		processing_status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id.String(), email, name, passwordHash, now, now)
	if err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, id)
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = uuid.MustParse(idStr)
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE id = ?
	`, id.String()))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`, email))
}

// SearchUsers finds users whose name or email contains the query, excluding
// the searching user.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]models.PublicUser, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email
		FROM users
		WHERE id != ? AND (name LIKE ? OR email LIKE ?)
		ORDER BY name
		LIMIT ?
	`, exclude.String(), pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.PublicUser
	for rows.Next() {
		var u models.PublicUser
		var idStr string
		if err := rows.Scan(&idStr, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		u.ID = uuid.MustParse(idStr)
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateConversation creates a two-party conversation between a and b.
func (s *SQLiteStore) CreateConversation(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	id := uuid.New()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at)
		VALUES (?, ?, ?)
	`, id.String(), now, now)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES (?, ?), (?, ?)
	`, id.String(), a.String(), id.String(), b.String())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetConversation(ctx, id)
}

func scanConversation(row *sql.Row) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var idStr string
	err := row.Scan(&idStr, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	conv.ID = uuid.MustParse(idStr)
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return scanConversation(s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id.String()))
}

// FindConversationBetween finds the existing conversation shared by a and b.
func (s *SQLiteStore) FindConversationBetween(ctx context.Context, a, b uuid.UUID) (*models.Conversation, error) {
	return scanConversation(s.db.QueryRowContext(ctx, `
		SELECT c.id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants pa ON pa.conversation_id = c.id AND pa.user_id = ?
		JOIN conversation_participants pb ON pb.conversation_id = c.id AND pb.user_id = ?
		LIMIT 1
	`, a.String(), b.String()))
}

// ListConversations lists the user's conversations, most recently active
// first, each with the other participant and the latest message.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY c.updated_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var sum models.ConversationSummary
		var idStr string
		if err := rows.Scan(&idStr, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		sum.ID = uuid.MustParse(idStr)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		other := &models.PublicUser{}
		var otherIDStr string
		err := s.db.QueryRowContext(ctx, `
			SELECT u.id, u.name, u.email
			FROM conversation_participants p
			JOIN users u ON u.id = p.user_id
			WHERE p.conversation_id = ? AND p.user_id != ?
			LIMIT 1
		`, summaries[i].ID.String(), userID.String()).Scan(&otherIDStr, &other.Name, &other.Email)
		if err == nil {
			other.ID = uuid.MustParse(otherIDStr)
			summaries[i].OtherUser = other
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		msgs, err := s.ListMessages(ctx, summaries[i].ID, "", 1)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			last := msgs[0]
			summaries[i].LastMessage = &last
		}
	}

	return summaries, nil
}

// TouchConversation updates the updated_at timestamp.
func (s *SQLiteStore) TouchConversation(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, time.Now().UTC(), id.String())
	return err
}

// GetParticipantIDs returns the user IDs participating in a conversation.
func (s *SQLiteStore) GetParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants WHERE conversation_id = ?
	`, conversationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		ids = append(ids, uuid.MustParse(idStr))
	}
	return ids, rows.Err()
}

// IsParticipant reports whether the user participates in the conversation.
func (s *SQLiteStore) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversation_participants
		WHERE conversation_id = ? AND user_id = ?
	`, conversationID.String(), userID.String()).Scan(&count)
	return count > 0, err
}

// CreateMessage inserts a new message row.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, text, audio_url, origin, processing_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID.String(), msg.SenderID.String(), msg.Text, msg.AudioURL, msg.Origin, msg.Status, msg.CreatedAt)
	return err
}

func scanMessage(scan func(dest ...any) error) (*models.Message, error) {
	msg := &models.Message{}
	var convIDStr, senderIDStr string
	err := scan(
		&msg.ID,
		&convIDStr,
		&senderIDStr,
		&msg.Text,
		&msg.AudioURL,
		&msg.Origin,
		&msg.Status,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.ConversationID = uuid.MustParse(convIDStr)
	msg.SenderID = uuid.MustParse(senderIDStr)
	return msg, nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, text, audio_url, origin, processing_status, created_at
		FROM messages WHERE id = ?
	`, id)
	msg, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListMessages retrieves up to limit messages, newest first. Message IDs are
// ULIDs, so lexicographic order matches creation order; before is an
// exclusive ID cursor ("" for the newest page).
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID uuid.UUID, before string, limit int) ([]models.Message, error) {
	var rows *sql.Rows
	var err error
	if before != "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, conversation_id, sender_id, text, audio_url, origin, processing_status, created_at
			FROM messages
			WHERE conversation_id = ? AND id < ?
			ORDER BY id DESC
			LIMIT ?
		`, conversationID.String(), before, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, conversation_id, sender_id, text, audio_url, origin, processing_status, created_at
			FROM messages
			WHERE conversation_id = ?
			ORDER BY id DESC
			LIMIT ?
		`, conversationID.String(), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// SetMessageStatus updates a message's processing status. Terminal statuses
// are never overwritten.
func (s *SQLiteStore) SetMessageStatus(ctx context.Context, id string, status models.ProcessingStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET processing_status = ?
		WHERE id = ? AND processing_status NOT IN ('completed', 'failed')
	`, status, id)
	return err
}

// SetMessageText persists derived text together with the new status as a
// single update.
func (s *SQLiteStore) SetMessageText(ctx context.Context, id, text string, status models.ProcessingStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET text = ?, processing_status = ?
		WHERE id = ? AND processing_status NOT IN ('completed', 'failed')
	`, text, status, id)
	return err
}

// SetMessageAudio persists a derived audio reference together with the new
// status as a single update.
func (s *SQLiteStore) SetMessageAudio(ctx context.Context, id, audioURL string, status models.ProcessingStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET audio_url = ?, processing_status = ?
		WHERE id = ? AND processing_status NOT IN ('completed', 'failed')
	`, audioURL, status, id)
	return err
}
