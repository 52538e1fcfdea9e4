package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Service auth
	APIKey string

	// Page interpreter (OpenAI-compatible vision endpoint)
	InterpURL    string
	InterpAPIKey string
	InterpModel  string

	// Render service
	RenderURL    string
	RenderAPIKey string

	// Persistence
	DBPath string

	// Worker pool
	WorkerCount            int
	MaxQueueSize           int
	MaxConcurrentInterpret int

	// Upload limits
	MaxUploadBytes int64

	// Run state
	RunTTL time.Duration

	// Diagnostics
	VerboseDiagnostics bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("QBANK_API_KEY"),

		InterpURL:    envOr("INTERP_URL", "https://api.studio.nebius.com/v1"),
		InterpAPIKey: os.Getenv("INTERP_API_KEY"),
		InterpModel:  envOr("INTERP_MODEL", "google/gemma-3-27b-it"),

		RenderURL:    envOr("RENDER_URL", "http://localhost:8091"),
		RenderAPIKey: os.Getenv("RENDER_API_KEY"),

		DBPath: envOr("DB_PATH", "qbank.db"),

		WorkerCount:            envInt("WORKER_COUNT", 2),
		MaxQueueSize:           envInt("MAX_QUEUE_SIZE", 50),
		MaxConcurrentInterpret: envInt("MAX_CONCURRENT_INTERPRET", 5),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		RunTTL: envDuration("RUN_TTL", 1*time.Hour),

		VerboseDiagnostics: envBool("VERBOSE_DIAGNOSTICS", false),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxConcurrentInterpret <= 0 {
		cfg.MaxConcurrentInterpret = 5
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("QBANK_API_KEY is required")
	}
	if c.InterpAPIKey == "" {
		return fmt.Errorf("INTERP_API_KEY is required")
	}
	if c.RenderURL == "" {
		return fmt.Errorf("RENDER_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
