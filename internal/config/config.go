package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "REMINDER_"

// Notification backends.
const (
	BackendConsole  = "console"
	BackendTelegram = "telegram"
)

// Log formats.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

type Config struct {
	Database     DatabaseConfig     `koanf:"database"`
	Log          LogConfig          `koanf:"log"`
	Scheduler    SchedulerConfig    `koanf:"scheduler"`
	Action       ActionConfig       `koanf:"action"`
	Notification NotificationConfig `koanf:"notification"`
	Telegram     TelegramConfig     `koanf:"telegram"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // pretty, json, text
}

type SchedulerConfig struct {
	ExactAlarms bool `koanf:"exact_alarms"` // false rejects every registration, like a revoked permission
}

type ActionConfig struct {
	MaxInFlight int `koanf:"max_in_flight"`
}

type NotificationConfig struct {
	Backend       string `koanf:"backend"` // console or telegram
	TitleFallback string `koanf:"title_fallback"`
	Body          string `koanf:"body"`
	OpenLabel     string `koanf:"open_label"`
	CompleteLabel string `koanf:"complete_label"`
	Colored       bool   `koanf:"colored"`
}

type TelegramConfig struct {
	BotToken    string `koanf:"bot_token"`
	ChatID      string `koanf:"chat_id"`
	PollTimeout int    `koanf:"poll_timeout"` // seconds, 1-50
	APIURL      string `koanf:"api_url"`
}

// Load layers defaults, the optional YAML file at configPath and
// REMINDER_* environment variables, in that order. Nested keys use a double
// underscore: REMINDER_TELEGRAM__CHAT_ID sets telegram.chat_id.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Variables understood by the standalone reminder and Telegram servers
	if dbPath := os.Getenv("REMINDER_DB_PATH"); dbPath != "" {
		k.Set("database.path", dbPath)
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" && k.String("telegram.bot_token") == "" {
		k.Set("telegram.bot_token", token)
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" && k.String("telegram.chat_id") == "" {
		k.Set("telegram.chat_id", chatID)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)

	return &cfg, nil
}

// envKey maps REMINDER_TELEGRAM__CHAT_ID to telegram.chat_id.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}

	switch c.Notification.Backend {
	case BackendConsole:
	case BackendTelegram:
		if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
			return ErrMissingTelegram
		}
		if c.Telegram.PollTimeout < 1 || c.Telegram.PollTimeout > 50 {
			return fmt.Errorf("%w: telegram.poll_timeout must be between 1 and 50", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %s (supported: %s, %s)",
			ErrUnknownBackend, c.Notification.Backend, BackendConsole, BackendTelegram)
	}

	switch c.Log.Format {
	case FormatPretty, FormatJSON, FormatText:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownLogFormat, c.Log.Format)
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	if c.Action.MaxInFlight <= 0 {
		return fmt.Errorf("%w: action.max_in_flight must be positive", ErrInvalidConfig)
	}

	return nil
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	return level, nil
}

// EnsureDatabaseDir creates the directory holding the database file.
func (c *Config) EnsureDatabaseDir() error {
	dir := filepath.Dir(c.Database.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
