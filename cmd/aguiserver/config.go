package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spetersoncode/bridge/runner"
)

// Config holds the server configuration loaded from environment variables.
type Config struct {
	// Server
	Port     string
	LogLevel string // debug, info, warn, error
	AppName  string

	// Sessions
	SessionTimeout time.Duration
	SweepInterval  time.Duration
	EvictPending   bool
	MaxPerUser     int

	// Storage: memory, sqlite or redis
	Store         string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Backend: echo or gemini
	Backend    string
	GoogleKey  string
	Model      string
	System     string
	RunTimeout time.Duration
	MaxRuns    int64
	MarkPolicy string // after or before
}

// LoadConfig loads configuration from environment variables.
// It loads a .env file if present (silent fail if not found).
func LoadConfig() (*Config, error) {
	godotenv.Load() // Load .env file if present

	cfg := &Config{
		Port:           getEnvOrDefault("AGUI_PORT", "8000"),
		LogLevel:       getEnvOrDefault("AGUI_LOG_LEVEL", "info"),
		AppName:        getEnvOrDefault("AGUI_APP_NAME", runner.DefaultAppName),
		SessionTimeout: getEnvDurationOrDefault("AGUI_SESSION_TIMEOUT", 20*time.Minute),
		SweepInterval:  getEnvDurationOrDefault("AGUI_SWEEP_INTERVAL", time.Minute),
		EvictPending:   getEnvBoolOrDefault("AGUI_EVICT_PENDING", false),
		MaxPerUser:     getEnvIntOrDefault("AGUI_MAX_SESSIONS_PER_USER", 0),
		Store:          getEnvOrDefault("AGUI_STORE", "memory"),
		SQLitePath:     getEnvOrDefault("AGUI_SQLITE_PATH", "data/sessions.db"),
		RedisAddr:      getEnvOrDefault("AGUI_REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("AGUI_REDIS_PASSWORD"),
		RedisDB:        getEnvIntOrDefault("AGUI_REDIS_DB", 0),
		Backend:        getEnvOrDefault("AGUI_BACKEND", "echo"),
		GoogleKey:      os.Getenv("GOOGLE_API_KEY"),
		Model:          os.Getenv("AGUI_MODEL"),
		System:         os.Getenv("AGUI_SYSTEM_PROMPT"),
		RunTimeout:     getEnvDurationOrDefault("AGUI_RUN_TIMEOUT", 2*time.Minute),
		MaxRuns:        int64(getEnvIntOrDefault("AGUI_MAX_CONCURRENT_RUNS", 0)),
		MarkPolicy:     getEnvOrDefault("AGUI_MARK_POLICY", "after"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("AGUI_PORT must be a number, got %q", c.Port)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("AGUI_SESSION_TIMEOUT must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("AGUI_SWEEP_INTERVAL must be positive")
	}
	if c.MaxRuns < 0 {
		return fmt.Errorf("AGUI_MAX_CONCURRENT_RUNS must not be negative")
	}

	switch c.Store {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("AGUI_SQLITE_PATH is required for sqlite store")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("AGUI_REDIS_ADDR is required for redis store")
		}
	default:
		return fmt.Errorf("unknown store: %s (must be memory, sqlite, or redis)", c.Store)
	}

	switch c.Backend {
	case "echo":
	case "gemini":
		if c.GoogleKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for gemini backend")
		}
	default:
		return fmt.Errorf("unknown backend: %s (must be echo or gemini)", c.Backend)
	}

	if _, ok := runner.ParseMarkPolicy(c.MarkPolicy); !ok {
		return fmt.Errorf("unknown mark policy: %s (must be after or before)", c.MarkPolicy)
	}

	return nil
}

// SlogLevel parses the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
