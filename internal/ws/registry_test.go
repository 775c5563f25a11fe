package ws

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndUnregister(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(testLogger())
	userID := uuid.New()

	c1, _ := testClient(userID)
	c2, _ := testClient(userID)

	r.Register(userID, c1)
	r.Register(userID, c2)
	req.Len(r.ConnectionsFor(userID), 2)

	r.Unregister(userID, c1)
	req.Len(r.ConnectionsFor(userID), 1)

	// Last connection gone: the user entry disappears entirely.
	r.Unregister(userID, c2)
	req.Nil(r.ConnectionsFor(userID))
	req.Empty(r.All())
}

func TestRegisterDuplicateIsNoOp(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(testLogger())
	userID := uuid.New()
	c, _ := testClient(userID)

	r.Register(userID, c)
	r.Register(userID, c)
	req.Len(r.ConnectionsFor(userID), 1)

	r.Unregister(userID, c)
	req.Nil(r.ConnectionsFor(userID))
}

func TestUnregisterUnknownIsNoOp(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(testLogger())
	userID := uuid.New()
	c, _ := testClient(userID)

	r.Unregister(userID, c) // never registered
	req.Empty(r.All())

	other, _ := testClient(userID)
	r.Register(userID, c)
	r.Unregister(userID, other) // registered user, unknown connection
	req.Len(r.ConnectionsFor(userID), 1)
}

func TestNotifyDeliversToAllUserConnections(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(testLogger())
	userID := uuid.New()
	convID := uuid.New()

	c1, _ := testClient(userID)
	c2, _ := testClient(userID)
	r.Register(userID, c1)
	r.Register(userID, c2)

	r.Notify(userID, NewMessage(convID, "msg-1"))

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var ev Event
			req.NoError(json.Unmarshal(data, &ev))
			req.Equal(TypeNewMessage, ev.Type)
			req.Equal(convID, ev.ConversationID)
			req.Equal("msg-1", ev.MessageID)
		default:
			t.Fatal("expected a queued event")
		}
	}
}

func TestNotifyWithoutConnectionsIsNoOp(t *testing.T) {
	r := NewRegistry(testLogger())
	// Must not panic or block when the user has no live connections.
	r.Notify(uuid.New(), NewMessage(uuid.New(), "msg-1"))
}

func TestNotifyFullBufferDoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(testLogger())
	userID := uuid.New()
	convID := uuid.New()

	stuck, _ := testClient(userID)
	healthy, _ := testClient(userID)
	r.Register(userID, stuck)
	r.Register(userID, healthy)

	for i := 0; i < sendBufferSize; i++ {
		req.NoError(stuck.Send([]byte("x")))
	}

	r.Notify(userID, NewMessage(convID, "msg-1"))

	select {
	case <-healthy.send:
	default:
		t.Fatal("healthy connection should still receive the event")
	}
}

func TestNotifyManyCoversEveryUser(t *testing.T) {
	req := require.New(t)
	r := NewRegistry(testLogger())
	convID := uuid.New()

	alice := uuid.New()
	bob := uuid.New()
	ca, _ := testClient(alice)
	cb, _ := testClient(bob)
	r.Register(alice, ca)
	r.Register(bob, cb)

	r.NotifyMany([]uuid.UUID{alice, bob}, MessageUpdated(convID, "msg-2"))

	req.Len(ca.send, 1)
	req.Len(cb.send, 1)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(testLogger())
	convID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			userID := uuid.New()
			c, _ := testClient(userID)
			r.Register(userID, c)
			r.Notify(userID, NewMessage(convID, "msg"))
			r.ConnectionsFor(userID)
			r.All()
			r.Unregister(userID, c)
		}()
	}
	wg.Wait()

	require.Empty(t, r.All())
}
