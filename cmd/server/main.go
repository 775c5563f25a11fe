package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/devspinn/voiceapp/internal/api"
	"github.com/devspinn/voiceapp/internal/auth"
	"github.com/devspinn/voiceapp/internal/config"
	"github.com/devspinn/voiceapp/internal/handlers"
	"github.com/devspinn/voiceapp/internal/pipeline"
	"github.com/devspinn/voiceapp/internal/speech"
	"github.com/devspinn/voiceapp/internal/storage"
	"github.com/devspinn/voiceapp/internal/store"
	"github.com/devspinn/voiceapp/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize the record store: PostgreSQL when configured, SQLite
	// otherwise for single-node deployments.
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite")
	}
	defer dataStore.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	sessions := auth.NewSessions([]byte(cfg.SessionSecret), cfg.SessionTTL)
	audio := storage.NewLocalStorage(cfg.UploadsDir)
	converter := speech.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.SpeechTimeout)

	// Live connection plumbing
	registry := ws.NewRegistry(logger)
	supervisor := ws.NewSupervisor(registry, cfg.PingInterval, logger)
	supervisor.Start()

	// Conversion worker pool
	pl := pipeline.New(dataStore, audio, converter, registry, logger, pipeline.Config{
		Workers:     cfg.PipelineJobs,
		QueueDepth:  cfg.PipelineQueue,
		CallTimeout: cfg.SpeechTimeout,
	})

	wsServer := ws.NewServer(registry, supervisor, sessions, dataStore, logger)
	handler := handlers.NewHandler(dataStore, redisStore, sessions, registry, pl, audio, logger)

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Logger:   logger,
		Store:    dataStore,
		Redis:    redisStore,
		Sessions: sessions,
		Handler:  handler,
		WS:       wsServer,
		Audio:    audio,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting voiceapp server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop probing, then drop every live connection before the conversion
	// pool drains so late update events are simply undeliverable, not lost
	// mid-write.
	supervisor.Stop()
	for _, c := range registry.All() {
		c.Close()
	}
	pl.Close()

	logger.Info().Msg("server stopped")
}
