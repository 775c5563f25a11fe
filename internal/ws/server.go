package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/devspinn/voiceapp/internal/auth"
	"github.com/devspinn/voiceapp/internal/store"
)

// SessionValidator checks a session credential and returns the user it
// belongs to. Satisfied by *auth.Sessions.
type SessionValidator interface {
	Validate(token string) (uuid.UUID, error)
}

// Server upgrades HTTP requests to WebSocket connections and admits them to
// the registry after session validation.
type Server struct {
	registry   *Registry
	supervisor *Supervisor
	sessions   SessionValidator
	users      store.DataStore
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
}

// NewServer creates the WebSocket admission server.
func NewServer(registry *Registry, supervisor *Supervisor, sessions SessionValidator, users store.DataStore, logger zerolog.Logger) *Server {
	return &Server{
		registry:   registry,
		supervisor: supervisor,
		sessions:   sessions,
		users:      users,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The session credential is the access control; origin
				// checking adds nothing for token-bearing clients.
				return true
			},
		},
	}
}

// sessionToken extracts the session credential carried on the handshake:
// Authorization header, "token" query parameter, or session cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if c, err := r.Cookie("va_session"); err == nil {
		return c.Value
	}
	return ""
}

// HandleWebSocket upgrades the connection, validates the session and admits
// the connection to the registry. Authentication failures close the socket
// with a policy-violation status code so clients can tell them apart from
// transport errors; the connection never reaches the registry.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(uuid.Nil, sock)

	userID, err := s.sessions.Validate(token)
	if err == nil {
		// Confirm the account still exists before admitting.
		user, lookupErr := s.users.GetUserByID(r.Context(), userID)
		if lookupErr != nil {
			err = lookupErr
		} else if user == nil {
			err = auth.ErrInvalidSession
		}
	}
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket session rejected")
		client.closeWith(websocket.ClosePolicyViolation, "invalid session")
		return
	}

	client.UserID = userID

	// The pong handler must be live before the registry exposes the
	// connection, or a ping sent in between would lose its pong.
	sock.SetPongHandler(func(string) error {
		s.supervisor.Beat(client)
		return nil
	})
	s.registry.Register(userID, client)

	go s.writePump(client)
	go s.readPump(client)
}

// readPump drains inbound frames until the connection closes. This protocol
// is server-to-client only: inbound payloads, malformed or not, are ignored
// rather than treated as errors. Teardown unregisters the connection.
func (s *Server) readPump(c *Client) {
	defer func() {
		s.registry.Unregister(c.UserID, c)
		s.supervisor.Forget(c)
		c.Close()
	}()

	for {
		if _, _, err := c.sock.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Str("user_id", c.UserID.String()).Msg("websocket read error")
			}
			return
		}
	}
}

// writePump forwards the send buffer to the socket in order.
func (s *Server) writePump(c *Client) {
	defer c.Close()

	for {
		select {
		case data := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debug().Err(err).Str("user_id", c.UserID.String()).Msg("websocket write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}
