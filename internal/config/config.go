// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Generation backends.
const (
	BackendOpenAI = "openai"
	BackendGRPC   = "grpc"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// ScriptPath optionally points to a YAML interview script. Empty uses the built-in one.
	ScriptPath string
	Generation GenerationConfig
	Confluence ConfluenceConfig
	RateLimit  RateLimitConfig
	ChatLog    ChatLogConfig
}

// GenerationConfig selects and configures the model backend.
type GenerationConfig struct {
	Backend  string
	BaseURL  string
	APIKey   string
	Model    string
	GRPCAddr string
	Timeout  time.Duration
}

// ConfluenceConfig holds wiki export settings. Export is disabled when incomplete.
type ConfluenceConfig struct {
	BaseURL      string
	SpaceKey     string
	ParentPageID string
	Email        string
	APIToken     string
}

// Enabled reports whether every required Confluence setting is present.
func (c ConfluenceConfig) Enabled() bool {
	return c.BaseURL != "" && c.SpaceKey != "" && c.Email != "" && c.APIToken != ""
}

// RateLimitConfig bounds generation actions per user.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ChatLogConfig controls the NDJSON chat activity log.
type ChatLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/analystai.db"),
		ScriptPath:  getEnv("SCRIPT_PATH", ""),
		Generation: GenerationConfig{
			Backend:  strings.ToLower(getEnv("GENERATION_BACKEND", BackendOpenAI)),
			BaseURL:  getEnv("GENERATION_BASE_URL", ""),
			APIKey:   getEnv("GENERATION_API_KEY", ""),
			Model:    getEnv("GENERATION_MODEL", "gpt-4o-mini"),
			GRPCAddr: getEnv("GENERATION_GRPC_ADDR", "localhost:50051"),
			Timeout:  getEnvDuration("GENERATION_TIMEOUT", 90*time.Second),
		},
		Confluence: ConfluenceConfig{
			BaseURL:      getEnv("CONFLUENCE_BASE_URL", ""),
			SpaceKey:     getEnv("CONFLUENCE_SPACE_KEY", ""),
			ParentPageID: getEnv("CONFLUENCE_PARENT_PAGE_ID", ""),
			Email:        getEnv("CONFLUENCE_EMAIL", ""),
			APIToken:     getEnv("CONFLUENCE_API_TOKEN", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 0.2),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
		},
		ChatLog: ChatLogConfig{
			Enabled:   getEnvBool("CHAT_LOG_ENABLED", true),
			Dir:       getEnv("CHAT_LOG_DIR", "./data/logs/chats"),
			QueueSize: getEnvInt("CHAT_LOG_QUEUE_SIZE", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Generation.Backend {
	case BackendOpenAI:
		if c.Generation.Model == "" {
			return fmt.Errorf("GENERATION_MODEL cannot be empty")
		}
	case BackendGRPC:
		if c.Generation.GRPCAddr == "" {
			return fmt.Errorf("GENERATION_GRPC_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("GENERATION_BACKEND must be %q or %q, got %q", BackendOpenAI, BackendGRPC, c.Generation.Backend)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be > 0")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0")
	}
	if c.ChatLog.Enabled {
		if c.ChatLog.Dir == "" {
			return fmt.Errorf("CHAT_LOG_DIR cannot be empty")
		}
		if c.ChatLog.QueueSize <= 0 {
			return fmt.Errorf("CHAT_LOG_QUEUE_SIZE must be > 0")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the configured frontend.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimSuffix(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
