// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/memecoinsphinx/sphinx/internal/messenger"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	ImageDir        string
	Telegram        TelegramConfig
	Game            GameConfig
	Responder       ResponderConfig
	Catalog         CatalogConfig
	Reward          RewardConfig
	Events          EventsConfig
	WebChat         WebChatConfig
	ConversationLog ConversationLogConfig
}

// TelegramConfig controls the Telegram transport.
type TelegramConfig struct {
	Enabled bool
	Token   string
}

// GameConfig holds the game limits.
type GameConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
	// SessionTTL evicts sessions idle between games for longer than this.
	// Zero keeps sessions for the lifetime of the process.
	SessionTTL  time.Duration
}

// ResponderConfig selects and configures the reply generator.
type ResponderConfig struct {
	Kind        string // scripted, gemini or grpc
	APIKey      string
	ModelName   string
	Temperature float32
	AgentAddr   string
	Timeout     time.Duration
}

// CatalogConfig selects where the riddle catalog comes from.
type CatalogConfig struct {
	Source        string // builtin, file or supabase
	Path          string
	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string
}

// RewardConfig selects and configures the payout backend.
type RewardConfig struct {
	Mode           string // dryrun, chain or http
	RPCURL         string
	PrivateKey     string
	ManagerAddress string
	ServerURL      string
	Amount         string
	ReceiptTimeout time.Duration
}

// EventsConfig controls outcome event publishing.
type EventsConfig struct {
	RabbitMQURL string
	Exchange    string
}

// WebChatConfig controls the browser chat transport.
type WebChatConfig struct {
	Enabled           bool
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		ImageDir:    getEnv("IMAGE_DIR", "./image"),
		Telegram: TelegramConfig{
			Enabled: getEnvBool("TELEGRAM_ENABLED", true),
			Token:   getEnv("TELEGRAM_TOKEN", ""),
		},
		Game: GameConfig{
			MaxAttempts: getEnvInt("MAX_ATTEMPTS", 3),
			Cooldown:    time.Duration(getEnvInt("COOLDOWN_SECONDS", 30)) * time.Second,
			SessionTTL:  getEnvDuration("SESSION_TTL", 0),
		},
		Responder: ResponderConfig{
			Kind:        strings.ToLower(getEnv("RESPONDER", "scripted")),
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			ModelName:   getEnv("MODEL_NAME", "gemini-1.5-flash"),
			Temperature: getEnvFloat32("TEMPERATURE", 0.7),
			AgentAddr:   getEnv("AGENT_ADDR", ""),
			Timeout:     getEnvDuration("RESPONDER_TIMEOUT", 15*time.Second),
		},
		Catalog: CatalogConfig{
			Source:        strings.ToLower(getEnv("CATALOG_SOURCE", "builtin")),
			Path:          getEnv("CATALOG_PATH", ""),
			SupabaseURL:   getEnv("SUPABASE_URL", ""),
			SupabaseKey:   getEnv("SUPABASE_KEY", ""),
			SupabaseTable: getEnv("SUPABASE_TABLE", "meme_coins"),
		},
		Reward: RewardConfig{
			Mode:           strings.ToLower(getEnv("REWARD_MODE", "dryrun")),
			RPCURL:         getEnv("RPC_URL", ""),
			PrivateKey:     getEnv("PRIVATE_KEY", ""),
			ManagerAddress: getEnv("TOKEN_MANAGER_ADDRESS", ""),
			ServerURL:      getEnv("REWARD_SERVER_URL", ""),
			Amount:         getEnv("REWARD_AMOUNT", "1"),
			ReceiptTimeout: getEnvDuration("RECEIPT_TIMEOUT", 2*time.Minute),
		},
		Events: EventsConfig{
			RabbitMQURL: getEnv("RABBITMQ_URL", ""),
			Exchange:    getEnv("EVENTS_EXCHANGE", "sphinx.outcomes"),
		},
		WebChat: WebChatConfig{
			Enabled:           getEnvBool("WEBCHAT_ENABLED", true),
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set, including
// the image assets on disk. Every problem is reported, not just the first.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Port == "" {
		fail("PORT cannot be empty")
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		fail("TELEGRAM_TOKEN is required unless TELEGRAM_ENABLED=false")
	}
	if !c.Telegram.Enabled && !c.WebChat.Enabled {
		fail("at least one of TELEGRAM_ENABLED or WEBCHAT_ENABLED must be true")
	}
	if c.Game.MaxAttempts <= 0 {
		fail("MAX_ATTEMPTS must be > 0")
	}
	if c.Game.Cooldown <= 0 {
		fail("COOLDOWN_SECONDS must be > 0")
	}
	if c.Game.SessionTTL < 0 {
		fail("SESSION_TTL cannot be negative")
	}
	if err := (messenger.ImageSet{Dir: c.ImageDir}).Validate(); err != nil {
		fail("IMAGE_DIR: %w", err)
	}

	switch c.Responder.Kind {
	case "scripted":
	case "gemini":
		if c.Responder.APIKey == "" {
			fail("GEMINI_API_KEY is required when RESPONDER=gemini")
		}
		if c.Responder.ModelName == "" {
			fail("MODEL_NAME cannot be empty")
		}
	case "grpc":
		if c.Responder.AgentAddr == "" {
			fail("AGENT_ADDR is required when RESPONDER=grpc")
		}
	default:
		fail("RESPONDER must be one of scripted, gemini, grpc (got %q)", c.Responder.Kind)
	}
	if c.Responder.Timeout <= 0 {
		fail("RESPONDER_TIMEOUT must be > 0")
	}

	switch c.Catalog.Source {
	case "builtin":
	case "file":
		if c.Catalog.Path == "" {
			fail("CATALOG_PATH is required when CATALOG_SOURCE=file")
		}
	case "supabase":
		if c.Catalog.SupabaseURL == "" || c.Catalog.SupabaseKey == "" {
			fail("SUPABASE_URL and SUPABASE_KEY are required when CATALOG_SOURCE=supabase")
		}
		if c.Catalog.SupabaseTable == "" {
			fail("SUPABASE_TABLE cannot be empty")
		}
	default:
		fail("CATALOG_SOURCE must be one of builtin, file, supabase (got %q)", c.Catalog.Source)
	}

	switch c.Reward.Mode {
	case "dryrun":
	case "chain":
		if c.Reward.RPCURL == "" || c.Reward.PrivateKey == "" || c.Reward.ManagerAddress == "" {
			fail("RPC_URL, PRIVATE_KEY and TOKEN_MANAGER_ADDRESS are required when REWARD_MODE=chain")
		}
	case "http":
		if c.Reward.ServerURL == "" {
			fail("REWARD_SERVER_URL is required when REWARD_MODE=http")
		}
		if _, err := strconv.ParseFloat(c.Reward.Amount, 64); err != nil {
			fail("REWARD_AMOUNT must be a number (got %q)", c.Reward.Amount)
		}
	default:
		fail("REWARD_MODE must be one of dryrun, chain, http (got %q)", c.Reward.Mode)
	}

	if c.Events.RabbitMQURL != "" && c.Events.Exchange == "" {
		fail("EVENTS_EXCHANGE cannot be empty when RABBITMQ_URL is set")
	}
	if c.WebChat.Enabled && (c.WebChat.RequestsPerWindow <= 0 || c.WebChat.WindowDuration <= 0) {
		fail("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		fail("CONVERSATION_LOG_DIR cannot be empty")
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
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

func getEnvFloat32(key string, fallback float32) float32 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
