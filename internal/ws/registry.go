// Package ws manages live WebSocket connections: the per-user connection
// registry, event fan-out, liveness supervision and connection admission.
package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/devspinn/voiceapp/internal/metrics"
)

// Registry maps authenticated users to their live connections. A user may
// hold several connections (multiple devices or tabs); a user with none is
// absent from the map. It is the only shared mutable structure in this
// subsystem and is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]map[*Client]struct{}
	total  int
	logger zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]map[*Client]struct{}),
		logger: logger,
	}
}

// Register adds a connection to the user's set. Registering the same
// connection twice is a tolerated no-op.
func (r *Registry) Register(userID uuid.UUID, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.conns[userID] = set
	}
	if _, dup := set[c]; dup {
		return
	}
	set[c] = struct{}{}
	r.total++
	metrics.ConnectionsActive.Set(float64(r.total))

	r.logger.Info().
		Str("user_id", userID.String()).
		Int("user_connections", len(set)).
		Int("total_connections", r.total).
		Msg("connection registered")
}

// Unregister removes a connection from the user's set, dropping the user
// entry entirely when the set becomes empty. No-op if either is absent.
func (r *Registry) Unregister(userID uuid.UUID, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
	r.total--
	metrics.ConnectionsActive.Set(float64(r.total))

	r.logger.Info().
		Str("user_id", userID.String()).
		Int("total_connections", r.total).
		Msg("connection unregistered")
}

// ConnectionsFor returns a snapshot of the user's live connections. The
// returned slice is owned by the caller.
func (r *Registry) ConnectionsFor(userID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, r.total)
	for _, set := range r.conns {
		for c := range set {
			out = append(out, c)
		}
	}
	return out
}

// Notify delivers the event to every live connection of the user. Missing
// connections and individual send failures are not errors: the triggering
// state change already succeeded, live delivery is best-effort.
func (r *Registry) Notify(userID uuid.UUID, event Event) {
	clients := r.ConnectionsFor(userID)
	if len(clients) == 0 {
		return
	}

	data, err := event.Encode()
	if err != nil {
		r.logger.Error().Err(err).Str("type", string(event.Type)).Msg("event encode failed")
		return
	}

	for _, c := range clients {
		if err := c.Send(data); err != nil {
			metrics.EventsDropped.Inc()
			r.logger.Debug().
				Err(err).
				Str("user_id", userID.String()).
				Str("type", string(event.Type)).
				Msg("event delivery dropped")
			continue
		}
		metrics.EventsSent.WithLabelValues(string(event.Type)).Inc()
	}
}

// NotifyMany applies Notify to each user. No ordering is guaranteed between
// different users' deliveries.
func (r *Registry) NotifyMany(userIDs []uuid.UUID, event Event) {
	for _, id := range userIDs {
		r.Notify(id, event)
	}
}
