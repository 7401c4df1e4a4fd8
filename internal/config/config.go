package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Persistence. DATABASE_URL selects the remote (Postgres) engine; otherwise
	// a SQLite file is created under DATA_DIR.
	DBDriver       string `envconfig:"DB_DRIVER"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DataDir        string `envconfig:"DATA_DIR" default:"data"`
	SeedSampleData bool   `envconfig:"SEED_SAMPLE_DATA" default:"true"`

	// Todoist (optional, sync and fetch-through are disabled without a token)
	TodoistAPIToken     string        `envconfig:"TODOIST_API_TOKEN"`
	TodoistAPIURL       string        `envconfig:"TODOIST_API_URL" default:"https://api.todoist.com/api/v1"`
	TodoistClientSecret string        `envconfig:"TODOIST_CLIENT_SECRET"` // webhook HMAC key
	TodoistTimeout      time.Duration `envconfig:"TODOIST_TIMEOUT" default:"30s"`

	// Calendar CLI
	CalendarBin     string        `envconfig:"CALENDAR_BIN" default:"gog"`
	CalendarTimeout time.Duration `envconfig:"CALENDAR_TIMEOUT" default:"20s"`

	// Escalation notifications
	SlackWebhookURL string `envconfig:"SLACK_WEBHOOK_URL"`
	SlackBotToken   string `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannel    string `envconfig:"SLACK_CHANNEL"`
	TelegramToken   string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID  int64  `envconfig:"TELEGRAM_CHAT_ID"`

	// HTTP API
	AuthMode          string `envconfig:"AUTH_MODE" default:"none"` // "none", "api-key", "jwt"
	APIKey            string `envconfig:"API_KEY"`
	JWTSecret         string `envconfig:"JWT_SECRET"`
	CORSOrigins       string `envconfig:"CORS_ORIGINS"`
	BotLogInlineLimit int    `envconfig:"BOT_LOG_INLINE_LIMIT" default:"10"`
}

// TodoistEnabled returns true if a Todoist API token is configured.
func (c *Config) TodoistEnabled() bool {
	return c.TodoistAPIToken != ""
}

// SlackEnabled returns true if escalations should be posted to Slack.
func (c *Config) SlackEnabled() bool {
	return c.SlackWebhookURL != "" || (c.SlackBotToken != "" && c.SlackChannel != "")
}

// Driver resolves the database engine name. An explicit DB_DRIVER wins,
// then a DATABASE_URL implies postgres, else sqlite.
func (c *Config) Driver() string {
	if c.DBDriver != "" {
		return strings.ToLower(strings.TrimSpace(c.DBDriver))
	}
	if c.DatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}

// PostgresEnabled reports whether the remote engine is selected.
func (c *Config) PostgresEnabled() bool {
	switch c.Driver() {
	case "postgres", "postgresql", "pg", "pgx":
		return true
	}
	return false
}

// Validate checks option combinations envconfig cannot express.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case "none":
	case "api-key":
		if c.APIKey == "" {
			return fmt.Errorf("AUTH_MODE=api-key requires API_KEY")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("AUTH_MODE=jwt requires JWT_SECRET")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.BotLogInlineLimit < 0 {
		return fmt.Errorf("BOT_LOG_INLINE_LIMIT must not be negative")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
