package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/devspinn/voiceapp/internal/store"
)

// staticValidator accepts exactly one token.
type staticValidator struct {
	token  string
	userID uuid.UUID
}

func (v staticValidator) Validate(token string) (uuid.UUID, error) {
	if token != v.token {
		return uuid.Nil, errors.New("invalid session")
	}
	return v.userID, nil
}

type serverFixture struct {
	registry   *Registry
	supervisor *Supervisor
	userID     uuid.UUID
	url        string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	st, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(st.Close)

	user, err := st.CreateUser(context.Background(), "alice@example.com", "Alice", "hash")
	require.NoError(t, err)

	registry := NewRegistry(testLogger())
	supervisor := NewSupervisor(registry, time.Minute, testLogger())
	srv := NewServer(registry, supervisor, staticValidator{token: "good", userID: user.ID}, st, testLogger())

	hs := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	t.Cleanup(hs.Close)

	return &serverFixture{
		registry:   registry,
		supervisor: supervisor,
		userID:     user.ID,
		url:        "ws" + strings.TrimPrefix(hs.URL, "http"),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAdmissionRejectsInvalidSession(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url+"?token=bad", nil)
	req.NoError(err) // the upgrade itself succeeds
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	req.ErrorAs(err, &closeErr)
	req.Equal(websocket.ClosePolicyViolation, closeErr.Code)
	req.Equal("invalid session", closeErr.Text)
	req.Empty(f.registry.All())
}

func TestAdmissionAndDelivery(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url+"?token=good", nil)
	req.NoError(err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	waitFor(t, func() bool { return len(f.registry.ConnectionsFor(f.userID)) == 1 })

	convID := uuid.New()
	f.registry.Notify(f.userID, NewMessage(convID, "msg-1"))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	req.NoError(conn.ReadJSON(&ev))
	req.Equal(TypeNewMessage, ev.Type)
	req.Equal(convID, ev.ConversationID)
	req.Equal("msg-1", ev.MessageID)
}

func TestDisconnectUnregisters(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url+"?token=good", nil)
	req.NoError(err)
	if resp != nil {
		resp.Body.Close()
	}

	waitFor(t, func() bool { return len(f.registry.ConnectionsFor(f.userID)) == 1 })

	conn.Close()
	waitFor(t, func() bool { return f.registry.ConnectionsFor(f.userID) == nil })
}

// A connection that answers pings must survive liveness checks from the
// moment it is registered, so the pong handler has to be installed before
// registration makes the client visible to the supervisor.
func TestResponsiveConnectionSurvivesLivenessChecks(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.url+"?token=good", nil)
	req.NoError(err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The default ping handler replies with a pong as long as a read is
	// in flight.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	waitFor(t, func() bool { return len(f.registry.ConnectionsFor(f.userID)) == 1 })

	// First tick pings, second tick evicts anyone whose pong never made
	// it to the supervisor.
	f.supervisor.tick()
	time.Sleep(100 * time.Millisecond)
	f.supervisor.tick()
	time.Sleep(100 * time.Millisecond)

	req.Len(f.registry.ConnectionsFor(f.userID), 1)
}

func TestBearerHeaderAdmits(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer good")
	conn, resp, err := websocket.DefaultDialer.Dial(f.url, header)
	req.NoError(err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	waitFor(t, func() bool { return len(f.registry.ConnectionsFor(f.userID)) == 1 })
}
