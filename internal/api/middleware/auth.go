package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/devspinn/voiceapp/internal/auth"
	"github.com/devspinn/voiceapp/internal/models"
	"github.com/devspinn/voiceapp/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware validates session tokens on authenticated endpoints.
type AuthMiddleware struct {
	sessions *auth.Sessions
	users    store.DataStore
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(sessions *auth.Sessions, users store.DataStore) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions, users: users}
}

// RequireAuth verifies the bearer session token and loads the user into the
// request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		userID, err := m.sessions.Validate(token)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		user, err := m.users.GetUserByID(r.Context(), userID)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "database error")
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the session token from the Authorization header or
// the session cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("va_session"); err == nil {
		return c.Value
	}
	return ""
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
