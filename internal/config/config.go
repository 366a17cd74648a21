// Package config loads server settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config holds all server configuration
type Config struct {
	Env      string `env:"ULTRATIC_ENV" envDefault:"development"`
	Host     string `env:"ULTRATIC_HOST"`
	Port     int    `env:"ULTRATIC_PORT" envDefault:"8080"`
	LogLevel string `env:"ULTRATIC_LOG_LEVEL" envDefault:"info"`

	Storage     string `env:"ULTRATIC_STORAGE" envDefault:"memory"`
	RedisURL    string `env:"ULTRATIC_REDIS_URL" envDefault:"redis://localhost:6379"`
	SQLitePath  string `env:"ULTRATIC_SQLITE_PATH" envDefault:"ultratic.db"`
	DatabaseURL string `env:"ULTRATIC_DATABASE_URL"`

	SessionSecret string `env:"ULTRATIC_SESSION_SECRET"`
	SessionCodec  string `env:"ULTRATIC_SESSION_CODEC" envDefault:"sealed"`

	StatsPageSize int `env:"ULTRATIC_STATS_PAGE_SIZE" envDefault:"10"`

	OTelEndpoint string `env:"ULTRATIC_OTEL_ENDPOINT"`
}

// Load reads the given .env files (default ".env") when present, then parses
// the environment. Variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}
	return parse(env.Options{})
}

// LoadFrom parses configuration from an explicit variable map
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return errors.New("ULTRATIC_REDIS_URL is required when ULTRATIC_STORAGE=redis")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return errors.New("ULTRATIC_SQLITE_PATH is required when ULTRATIC_STORAGE=sqlite")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("ULTRATIC_DATABASE_URL is required when ULTRATIC_STORAGE=postgres")
		}
	default:
		return fmt.Errorf("invalid ULTRATIC_STORAGE %q: must be memory, redis, sqlite or postgres", c.Storage)
	}

	switch c.SessionCodec {
	case "sealed", "signed":
	default:
		return fmt.Errorf("invalid ULTRATIC_SESSION_CODEC %q: must be sealed or signed", c.SessionCodec)
	}

	if c.IsProduction() && c.SessionSecret == "" {
		return errors.New("ULTRATIC_SESSION_SECRET is required in production")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid ULTRATIC_PORT %d", c.Port)
	}
	return nil
}

// IsProduction reports whether the server runs behind HTTPS in production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// String returns a loggable summary with secrets masked
func (c *Config) String() string {
	secret := ""
	if c.SessionSecret != "" {
		secret = "****"
	}
	dbURL := ""
	if c.DatabaseURL != "" {
		dbURL = "****"
	}
	return fmt.Sprintf(
		"Config{Env: %s, Addr: %s:%d, Storage: %s, SQLitePath: %s, DatabaseURL: %s, SessionCodec: %s, SessionSecret: %s}",
		c.Env, c.Host, c.Port, c.Storage, c.SQLitePath, dbURL, c.SessionCodec, secret,
	)
}
