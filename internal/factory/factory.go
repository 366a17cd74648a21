package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/ultratic/internal/config"
	"github.com/mcoot/ultratic/internal/dependencies/clock"
	"github.com/mcoot/ultratic/internal/services/lifecycle"
	"github.com/mcoot/ultratic/internal/services/stats"
	"github.com/mcoot/ultratic/internal/session"
	"github.com/mcoot/ultratic/internal/storage"
	"github.com/mcoot/ultratic/internal/storage/memory"
	redisstorage "github.com/mcoot/ultratic/internal/storage/redis"
	"github.com/mcoot/ultratic/internal/storage/sqlstore"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageMemory
	StorageTypeRedis    = config.StorageRedis
	StorageTypeSQLite   = config.StorageSQLite
	StorageTypePostgres = config.StoragePostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Ledger storage.Ledger

	// External dependencies
	Clock clock.Clock

	// Session cookie store
	Sessions *session.Store

	// Services
	LifecycleService *lifecycle.Service
	StatsService     *stats.Service
}

// Close releases the ledger
func (a *App) Close() error {
	return a.Ledger.Close()
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the ledger backend
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// PostgresDSN is the connection string (required if StorageType is "postgres")
	PostgresDSN string
	// Session holds cookie settings
	// Unset fields take the session.DefaultConfig() values
	Session session.Config
	// Lifecycle holds username limits
	// If zero value, defaults to lifecycle.DefaultConfig()
	Lifecycle lifecycle.Config
	// StatsPageSize is the number of rows per stats page
	StatsPageSize int
}

// ConfigFrom maps loaded server configuration onto factory settings
func ConfigFrom(cfg *config.Config, logger *slog.Logger) Config {
	sess := session.DefaultConfig()
	sess.Secure = cfg.IsProduction()
	sess.Codec = session.CodecKind(cfg.SessionCodec)
	if cfg.SessionSecret != "" {
		sess.Secret = []byte(cfg.SessionSecret)
	}

	redisCfg := redisstorage.DefaultConfig()
	redisCfg.URL = cfg.RedisURL

	return Config{
		Logger:        logger,
		StorageType:   cfg.Storage,
		RedisConfig:   &redisCfg,
		SQLitePath:    cfg.SQLitePath,
		PostgresDSN:   cfg.DatabaseURL,
		Session:       sess,
		StatsPageSize: cfg.StatsPageSize,
	}
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		return nil, err
	}

	app, err := newWithDependencies(ledger, clock.New(), cfg.Session, cfg.Lifecycle, cfg.StatsPageSize, logger)
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}
	logger.Info("application wired", "storage", storageName(cfg.StorageType))
	return app, nil
}

func openLedger(cfg Config) (storage.Ledger, error) {
	switch storageName(cfg.StorageType) {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		return sqlstore.OpenSQLite(cfg.SQLitePath)
	case StorageTypePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("PostgresDSN required when StorageType is postgres")
		}
		return sqlstore.OpenPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, sqlite or postgres", cfg.StorageType)
	}
}

func storageName(s string) string {
	if s == "" {
		return StorageTypeMemory
	}
	return s
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	ledger storage.Ledger,
	clk clock.Clock,
	sessCfg session.Config,
	lcCfg lifecycle.Config,
	pageSize int,
	logger *slog.Logger,
) (*App, error) {
	if lcCfg.MaxUsernameLength == 0 {
		lcCfg = lifecycle.DefaultConfig()
	}
	sessions, err := session.New(sessCfg, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	return &App{
		Ledger:           ledger,
		Clock:            clk,
		Sessions:         sessions,
		LifecycleService: lifecycle.New(ledger, clk, logger, lcCfg),
		StatsService:     stats.New(ledger, pageSize),
	}, nil
}
