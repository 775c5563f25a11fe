package ws

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/devspinn/voiceapp/internal/metrics"
)

// Supervisor periodically probes every registered connection and evicts the
// ones that stop responding. Eviction needs two ticks: the first marks the
// connection awaiting and sends a ping, the second closes it if no pong
// arrived in between. A single delayed pong therefore never evicts.
//
// The awaiting state is owned here, not by the connection, so transport and
// liveness logic stay decoupled.
type Supervisor struct {
	registry *Registry
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	awaiting map[*Client]struct{}

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSupervisor creates a supervisor over the registry's connections.
func NewSupervisor(registry *Registry, interval time.Duration, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		registry: registry,
		interval: interval,
		logger:   logger,
		awaiting: make(map[*Client]struct{}),
		stop:     make(chan struct{}),
	}
}

// Start runs the probe loop until Stop is called.
func (s *Supervisor) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the probe loop and waits for it to exit.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Beat records a pong from the connection, clearing its awaiting mark.
func (s *Supervisor) Beat(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.awaiting, c)
}

// Forget drops supervisor state for a connection torn down elsewhere.
func (s *Supervisor) Forget(c *Client) {
	s.Beat(c)
}

// tick probes every connection once. An error on one connection never stops
// the sweep over the others.
func (s *Supervisor) tick() {
	for _, c := range s.registry.All() {
		if s.isAwaiting(c) {
			s.evict(c, "missed liveness probe")
			continue
		}
		s.setAwaiting(c)
		if err := c.Ping(); err != nil {
			s.evict(c, "liveness probe send failed")
		}
	}
}

func (s *Supervisor) isAwaiting(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.awaiting[c]
	return ok
}

func (s *Supervisor) setAwaiting(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaiting[c] = struct{}{}
}

func (s *Supervisor) evict(c *Client, reason string) {
	s.Forget(c)
	c.Close()
	s.registry.Unregister(c.UserID, c)
	metrics.ConnectionsEvicted.Inc()
	s.logger.Info().
		Str("user_id", c.UserID.String()).
		Str("reason", reason).
		Msg("connection evicted")
}
