package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	envConfigPath = "MSGGATE_CONFIG"

	envTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	envChatWhiteList    = "CHAT_WHITE_LIST"
	envGroupWhiteList   = "CHAT_GROUP_WHITE_LIST"
	envAllowAll         = "I_AM_A_GENEROUS_PERSON"
	envSafeMode         = "SAFE_MODE"
	envDebugMode        = "DEBUG_MODE"
	envGroupChatEnable  = "GROUP_CHAT_BOT_ENABLE"
	envStorageDriver    = "STORAGE_DRIVER"
	envRedisAddr        = "REDIS_ADDR"
	envRedisPassword    = "REDIS_PASSWORD"
	envSQLitePath       = "SQLITE_PATH"
)

// Storage drivers understood by store.Open.
const (
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverNone   = "none"
)

// Config is the root runtime configuration loaded from config.json.
type Config struct {
	Channels ChannelsConfig `json:"channels"`
	Storage  StorageConfig  `json:"storage"`
	Guard    GuardConfig    `json:"guard"`
	Gateway  GatewayConfig  `json:"gateway"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `json:"format,omitempty"`
	Level     string `json:"level,omitempty"`
	AddSource bool   `json:"add_source,omitempty"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig configures Telegram channel integration.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

// StorageConfig selects and configures the key-value backend.
type StorageConfig struct {
	Driver string       `json:"driver"`
	Redis  RedisConfig  `json:"redis"`
	SQLite SQLiteConfig `json:"sqlite"`
}

// RedisConfig configures the Redis key-value backend.
type RedisConfig struct {
	Addr      string `json:"addr"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// SQLiteConfig configures the embedded SQLite key-value backend.
type SQLiteConfig struct {
	Path string `json:"path"`
}

// GuardConfig is the gatekeeping configuration surface. It is read once per
// process; whitelist entries are chat identifiers in their decimal string form.
type GuardConfig struct {
	AllowAll         bool     `json:"allow_all"`
	SafeMode         bool     `json:"safe_mode"`
	GroupChatEnabled bool     `json:"group_chat_enabled"`
	DebugMode        bool     `json:"debug_mode"`
	ChatWhiteList    []string `json:"chat_white_list"`
	GroupWhiteList   []string `json:"group_white_list"`
	SerializePerChat bool     `json:"serialize_per_chat"`
}

// GatewayConfig configures HTTP status server bind settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Channels: ChannelsConfig{Telegram: TelegramConfig{Enabled: true}},
		Storage: StorageConfig{
			Driver: DriverRedis,
			Redis:  RedisConfig{Addr: "localhost:6379"},
			SQLite: SQLiteConfig{Path: filepath.Join("data", "msggate.db")},
		},
		Guard: GuardConfig{SafeMode: true},
	}
}

// LoadConfig resolves config.json, unmarshals it, and applies environment overrides.
func LoadConfig() (*Config, error) {
	cfg := Default()

	configPath, err := findConfigPath()
	switch {
	case errors.Is(err, errConfigNotFound):
		// Environment-only deployment.
	case err != nil:
		return nil, err
	default:
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports configuration that cannot run.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case DriverRedis, DriverSQLite, DriverMemory, DriverNone:
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}

	if c.Channels.Telegram.Enabled && strings.TrimSpace(c.Channels.Telegram.Token) == "" {
		return errors.New("channels.telegram.token is required")
	}

	return nil
}

// applyEnvOverrides injects selected env-driven settings on top of file config.
func applyEnvOverrides(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if raw := strings.TrimSpace(os.Getenv(envChatWhiteList)); raw != "" {
		cfg.Guard.ChatWhiteList = parseCSV(raw)
	}
	if raw := strings.TrimSpace(os.Getenv(envGroupWhiteList)); raw != "" {
		cfg.Guard.GroupWhiteList = parseCSV(raw)
	}
	if value := strings.TrimSpace(os.Getenv(envStorageDriver)); value != "" {
		cfg.Storage.Driver = strings.ToLower(value)
	}
	if value := strings.TrimSpace(os.Getenv(envRedisAddr)); value != "" {
		cfg.Storage.Redis.Addr = value
	}
	if value := os.Getenv(envRedisPassword); value != "" {
		cfg.Storage.Redis.Password = value
	}
	if value := strings.TrimSpace(os.Getenv(envSQLitePath)); value != "" {
		cfg.Storage.SQLite.Path = value
	}

	toggles := []struct {
		env    string
		target *bool
	}{
		{envAllowAll, &cfg.Guard.AllowAll},
		{envSafeMode, &cfg.Guard.SafeMode},
		{envDebugMode, &cfg.Guard.DebugMode},
		{envGroupChatEnable, &cfg.Guard.GroupChatEnabled},
	}
	for _, toggle := range toggles {
		raw := strings.TrimSpace(os.Getenv(toggle.env))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", toggle.env, err)
		}
		*toggle.target = value
	}

	return nil
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

var errConfigNotFound = errors.New("config file not found")

// findConfigPath resolves the active config file location.
//
// Precedence is MSGGATE_CONFIG first, then cwd-local fallback paths.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	candidates := []string{
		filepath.Join(cwd, "config.json"),
		filepath.Join(cwd, "config", "config.json"),
	}

	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", errConfigNotFound
}
