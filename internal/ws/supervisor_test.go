package ws

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestSupervisor() (*Supervisor, *Registry) {
	r := NewRegistry(testLogger())
	return NewSupervisor(r, time.Minute, testLogger()), r
}

func TestTwoMissedProbesEvict(t *testing.T) {
	req := require.New(t)
	s, r := newTestSupervisor()
	userID := uuid.New()
	c, sock := testClient(userID)
	r.Register(userID, c)

	// First sweep: marked awaiting and pinged, still registered.
	s.tick()
	req.Equal(1, sock.pingCount())
	req.Len(r.ConnectionsFor(userID), 1)
	req.False(sock.isClosed())

	// Second sweep without a pong: evicted and closed.
	s.tick()
	req.Nil(r.ConnectionsFor(userID))
	req.True(sock.isClosed())
}

func TestPongBetweenTicksPreventsEviction(t *testing.T) {
	req := require.New(t)
	s, r := newTestSupervisor()
	userID := uuid.New()
	c, sock := testClient(userID)
	r.Register(userID, c)

	for i := 0; i < 5; i++ {
		s.tick()
		s.Beat(c)
	}

	req.Equal(5, sock.pingCount())
	req.Len(r.ConnectionsFor(userID), 1)
	req.False(sock.isClosed())
}

func TestPingSendFailureEvictsImmediately(t *testing.T) {
	req := require.New(t)
	s, r := newTestSupervisor()
	userID := uuid.New()
	c, sock := testClient(userID)
	sock.pingErr = errors.New("broken pipe")
	r.Register(userID, c)

	s.tick()

	req.Nil(r.ConnectionsFor(userID))
	req.True(sock.isClosed())
}

func TestOneDeadConnectionDoesNotStopSweep(t *testing.T) {
	req := require.New(t)
	s, r := newTestSupervisor()

	deadUser := uuid.New()
	dead, deadSock := testClient(deadUser)
	deadSock.pingErr = errors.New("broken pipe")
	r.Register(deadUser, dead)

	liveUser := uuid.New()
	live, liveSock := testClient(liveUser)
	r.Register(liveUser, live)

	s.tick()

	req.Nil(r.ConnectionsFor(deadUser))
	req.Len(r.ConnectionsFor(liveUser), 1)
	req.Equal(1, liveSock.pingCount())
}

func TestForgetClearsAwaitingState(t *testing.T) {
	req := require.New(t)
	s, r := newTestSupervisor()
	userID := uuid.New()
	c, _ := testClient(userID)
	r.Register(userID, c)

	s.tick()
	req.True(s.isAwaiting(c))

	s.Forget(c)
	req.False(s.isAwaiting(c))
}

func TestStartStop(t *testing.T) {
	r := NewRegistry(testLogger())
	s := NewSupervisor(r, 5*time.Millisecond, testLogger())

	userID := uuid.New()
	c, sock := testClient(userID)
	r.Register(userID, c)

	s.Start()
	deadline := time.After(time.Second)
	for sock.pingCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected at least one probe")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	s.Stop()
	// Stop must be idempotent.
	s.Stop()
}
