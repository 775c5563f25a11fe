package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // PostgreSQL; when empty, SQLite at SQLitePath is used
	SQLitePath  string
	RedisURL    string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Speech services (OpenAI-compatible API)
	OpenAIAPIKey  string
	OpenAIBaseURL string
	SpeechTimeout time.Duration

	// Audio storage
	UploadsDir string

	// Live connections
	PingInterval  time.Duration
	PipelineJobs  int // worker pool size
	PipelineQueue int // job queue depth

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     // Enable auto-blocking after repeated violations
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       getEnv("SQLITE_PATH", "./data/voiceapp.db"),
		RedisURL:         os.Getenv("REDIS_URL"),
		SessionSecret:    getEnv("SESSION_SECRET", "dev-secret-do-not-use"),
		SessionTTL:       getDuration("SESSION_TTL", 7*24*time.Hour),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		SpeechTimeout:    getDuration("SPEECH_TIMEOUT", 2*time.Minute),
		UploadsDir:       getEnv("UPLOADS_DIR", "./uploads"),
		PingInterval:     getDuration("PING_INTERVAL", 30*time.Second),
		PipelineJobs:     getInt("PIPELINE_WORKERS", 4),
		PipelineQueue:    getInt("PIPELINE_QUEUE", 64),
		AutoBlockEnabled: getEnv("AUTO_BLOCK_ENABLED", "false") == "true",
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				cfg.RateLimitWhitelist = append(cfg.RateLimitWhitelist, entry)
			}
		}
	}

	// In production, refuse to start without real credentials
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
		if cfg.SessionSecret == "dev-secret-do-not-use" {
			panic("SESSION_SECRET is required in production")
		}
		if cfg.OpenAIAPIKey == "" {
			panic("OPENAI_API_KEY is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
