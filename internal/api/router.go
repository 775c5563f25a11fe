// Package api wires the HTTP surface: routing, middleware order and the
// static audio mount.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/devspinn/voiceapp/internal/api/middleware"
	"github.com/devspinn/voiceapp/internal/auth"
	"github.com/devspinn/voiceapp/internal/config"
	"github.com/devspinn/voiceapp/internal/handlers"
	"github.com/devspinn/voiceapp/internal/storage"
	"github.com/devspinn/voiceapp/internal/store"
	"github.com/devspinn/voiceapp/internal/ws"
)

// Deps carries everything the router needs; main assembles it once.
type Deps struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.DataStore
	Redis    *store.RedisStore // nil when not configured
	Sessions *auth.Sessions
	Handler  *handlers.Handler
	WS       *ws.Server
	Audio    *storage.LocalStorage
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimw.Recoverer)

	// Rate limiting requires Redis; without it the deployment runs open.
	if d.Redis != nil {
		limiter := middleware.NewRateLimiter(d.Redis.Client(), d.Logger, middleware.RateLimiterConfig{
			Whitelist:        d.Config.RateLimitWhitelist,
			AutoBlockEnabled: d.Config.AutoBlockEnabled,
		})
		r.Use(limiter.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h := d.Handler
	authmw := middleware.NewAuthMiddleware(d.Sessions, d.Store)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodySize(64 * 1024))

		r.Get("/health", h.Health)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
	})

	// WebSocket upgrade authenticates inside the handler so a bad session
	// can be refused with a close frame instead of an HTTP error.
	r.Get("/ws", d.WS.HandleWebSocket)

	// Stored audio (voice uploads and synthesized speech)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.Audio.Dir()))))

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(64 * 1024))

			r.Get("/users/me", h.Me)
			r.Get("/users/search", h.SearchUsers)

			r.Post("/conversations", h.CreateConversation)
			r.Get("/conversations", h.ListConversations)
			r.Get("/conversations/{id}", h.GetConversation)
			r.Get("/conversations/{id}/messages", h.ListMessages)
			r.Get("/conversations/{id}/messages/{messageID}", h.GetMessage)
			r.Post("/conversations/{id}/messages/text", h.SendText)
		})

		// Voice uploads are base64 JSON bodies, so the cap is well above
		// the 10MB decoded audio limit.
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(16 * 1024 * 1024))

			r.Post("/conversations/{id}/messages/voice", h.SendVoice)
		})
	})

	return r
}
