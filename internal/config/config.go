package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for fellowship-portal
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Forwarder ForwarderConfig
	Table     TableConfig
	Program   ProgramConfig
	Sweeper   SweeperConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host               string
	Port               int
	CORSAllowedOrigins []string
	AdminAPIKey        string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level slog.Level
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN disables the
// submission ledger.
type DatabaseConfig struct {
	DSN           string
	MigrationsDir string
	MaxConns      int
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.DSN != ""
}

// RedisConfig holds Redis configuration for draft storage
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	DraftTTL time.Duration
}

// ForwarderConfig holds the submission relay configuration
type ForwarderConfig struct {
	ScriptURL       string
	OptimisticAfter time.Duration
	HardTimeout     time.Duration
}

// TableConfig holds the table service mirror configuration
type TableConfig struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AppToken  string
	TableID   string
}

// Enabled reports whether the mirror is configured
func (t TableConfig) Enabled() bool {
	return t.AppID != "" || t.AppSecret != "" || t.AppToken != "" || t.TableID != ""
}

// ProgramConfig holds the program definition location
type ProgramConfig struct {
	File string
}

// SweeperConfig holds maintenance job configuration
type SweeperConfig struct {
	SessionIdle time.Duration
	Retention   time.Duration
}

// Load loads configuration from environment variables. Variables from the
// given dotenv files are applied first without overriding the environment;
// missing files are skipped.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		},
		Log: LogConfig{
			Level: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MigrationsDir: getEnv("DATABASE_MIGRATIONS_DIR", "./migrations"),
			MaxConns:      getEnvAsInt("DATABASE_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			DraftTTL: getEnvAsDuration("DRAFT_TTL", 30*24*time.Hour),
		},
		Forwarder: ForwarderConfig{
			ScriptURL:       getEnv("FORWARDER_SCRIPT_URL", ""),
			OptimisticAfter: getEnvAsDuration("FORWARDER_OPTIMISTIC_AFTER", 12*time.Second),
			HardTimeout:     getEnvAsDuration("FORWARDER_HARD_TIMEOUT", 60*time.Second),
		},
		Table: TableConfig{
			BaseURL:   getEnv("TABLE_BASE_URL", "https://open.larksuite.com"),
			AppID:     getEnv("TABLE_APP_ID", ""),
			AppSecret: getEnv("TABLE_APP_SECRET", ""),
			AppToken:  getEnv("TABLE_APP_TOKEN", ""),
			TableID:   getEnv("TABLE_ID", ""),
		},
		Program: ProgramConfig{
			File: getEnv("PROGRAM_FILE", ""),
		},
		Sweeper: SweeperConfig{
			SessionIdle: getEnvAsDuration("SWEEPER_SESSION_IDLE", 2*time.Hour),
			Retention:   getEnvAsDuration("SWEEPER_RETENTION", 180*24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Forwarder.ScriptURL != "" {
		u, err := url.Parse(c.Forwarder.ScriptURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid forwarder script URL: %q", c.Forwarder.ScriptURL)
		}
	}

	if c.Forwarder.OptimisticAfter <= 0 || c.Forwarder.HardTimeout <= 0 {
		return fmt.Errorf("forwarder timeouts must be positive")
	}
	if c.Forwarder.OptimisticAfter >= c.Forwarder.HardTimeout {
		return fmt.Errorf("forwarder optimistic delay (%s) must be shorter than the hard timeout (%s)",
			c.Forwarder.OptimisticAfter, c.Forwarder.HardTimeout)
	}

	if c.Table.Enabled() {
		if c.Table.AppID == "" || c.Table.AppSecret == "" || c.Table.AppToken == "" || c.Table.TableID == "" {
			return fmt.Errorf("table mirror needs TABLE_APP_ID, TABLE_APP_SECRET, TABLE_APP_TOKEN and TABLE_ID")
		}
	}

	if c.Sweeper.SessionIdle <= 0 || c.Sweeper.Retention <= 0 {
		return fmt.Errorf("sweeper windows must be positive")
	}

	return nil
}

// RequireForwarder checks the settings needed to accept submissions
func (c *Config) RequireForwarder() error {
	if c.Forwarder.ScriptURL == "" {
		return fmt.Errorf("FORWARDER_SCRIPT_URL is required")
	}
	return nil
}

// Address returns the HTTP listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value, exists := os.LookupEnv(key); exists {
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err == nil {
			return level
		}
	}
	return defaultValue
}
