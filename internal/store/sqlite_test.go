package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/devspinn/voiceapp/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, email string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "Test User", "hash")
	require.NoError(t, err)
	return u
}

func seedMessage(t *testing.T, s *SQLiteStore, convID, senderID uuid.UUID, text string) *models.Message {
	t.Helper()
	msg := &models.Message{
		ID:             ulid.Make().String(),
		ConversationID: convID,
		SenderID:       senderID,
		Text:           &text,
		Origin:         models.OriginText,
		Status:         models.StatusPending,
	}
	require.NoError(t, s.CreateMessage(context.Background(), msg))
	return msg
}

func TestUserLifecycle(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice@example.com")
	req.NotEqual(uuid.Nil, u.ID)
	req.Equal("alice@example.com", u.Email)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	req.NoError(err)
	req.Equal(u.ID, byEmail.ID)

	missing, err := s.GetUserByID(ctx, uuid.New())
	req.NoError(err)
	req.Nil(missing)
}

func TestSearchUsersExcludesSelf(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")

	results, err := s.SearchUsers(ctx, "example", alice.ID, 10)
	req.NoError(err)
	req.Len(results, 1)
	req.Equal(bob.ID, results[0].ID)
}

func TestConversationFindOrCreate(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")

	none, err := s.FindConversationBetween(ctx, alice.ID, bob.ID)
	req.NoError(err)
	req.Nil(none)

	conv, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	req.NoError(err)

	// Found regardless of argument order.
	found, err := s.FindConversationBetween(ctx, bob.ID, alice.ID)
	req.NoError(err)
	req.Equal(conv.ID, found.ID)

	ids, err := s.GetParticipantIDs(ctx, conv.ID)
	req.NoError(err)
	req.ElementsMatch([]uuid.UUID{alice.ID, bob.ID}, ids)

	ok, err := s.IsParticipant(ctx, conv.ID, alice.ID)
	req.NoError(err)
	req.True(ok)

	outsider := seedUser(t, s, "carol@example.com")
	ok, err = s.IsParticipant(ctx, conv.ID, outsider.ID)
	req.NoError(err)
	req.False(ok)
}

func TestListConversationsCarriesOtherUserAndLastMessage(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")
	conv, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	req.NoError(err)

	seedMessage(t, s, conv.ID, alice.ID, "first")
	last := seedMessage(t, s, conv.ID, bob.ID, "second")

	summaries, err := s.ListConversations(ctx, alice.ID)
	req.NoError(err)
	req.Len(summaries, 1)
	req.Equal(bob.ID, summaries[0].OtherUser.ID)
	req.Equal(last.ID, summaries[0].LastMessage.ID)
}

func TestListMessagesCursorPagination(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")
	conv, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	req.NoError(err)

	var ids []string
	for i := 0; i < 5; i++ {
		m := seedMessage(t, s, conv.ID, alice.ID, "msg")
		ids = append(ids, m.ID)
		time.Sleep(2 * time.Millisecond) // distinct ULID timestamps
	}

	// Newest first.
	page, err := s.ListMessages(ctx, conv.ID, "", 2)
	req.NoError(err)
	req.Len(page, 2)
	req.Equal(ids[4], page[0].ID)
	req.Equal(ids[3], page[1].ID)

	// Cursor is exclusive.
	page, err = s.ListMessages(ctx, conv.ID, page[1].ID, 10)
	req.NoError(err)
	req.Len(page, 3)
	req.Equal(ids[2], page[0].ID)
	req.Equal(ids[0], page[2].ID)
}

func TestTerminalStatusIsNeverOverwritten(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")
	conv, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	req.NoError(err)
	msg := seedMessage(t, s, conv.ID, alice.ID, "hello")

	req.NoError(s.SetMessageStatus(ctx, msg.ID, models.StatusProcessing))
	req.NoError(s.SetMessageAudio(ctx, msg.ID, "/uploads/x.mp3", models.StatusCompleted))

	// A late failure must not demote the completed message.
	req.NoError(s.SetMessageStatus(ctx, msg.ID, models.StatusFailed))

	got, err := s.GetMessage(ctx, msg.ID)
	req.NoError(err)
	req.Equal(models.StatusCompleted, got.Status)
	req.Equal("/uploads/x.mp3", *got.AudioURL)

	// Same guard on the combined text update.
	req.NoError(s.SetMessageText(ctx, msg.ID, "overwritten", models.StatusProcessing))
	got, err = s.GetMessage(ctx, msg.ID)
	req.NoError(err)
	req.Equal("hello", *got.Text)
}

func TestTouchConversationBumpsUpdatedAt(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")
	conv, err := s.CreateConversation(ctx, alice.ID, bob.ID)
	req.NoError(err)

	time.Sleep(2 * time.Millisecond)
	req.NoError(s.TouchConversation(ctx, conv.ID))

	after, err := s.GetConversation(ctx, conv.ID)
	req.NoError(err)
	req.True(after.UpdatedAt.After(conv.UpdatedAt))
}
