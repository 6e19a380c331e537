package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
	"github.com/tendant/simple-urlalias/pkg/urlalias/cache"
	"github.com/tendant/simple-urlalias/pkg/urlalias/events"
	"github.com/tendant/simple-urlalias/pkg/urlalias/store/badgerstore"
	"github.com/tendant/simple-urlalias/pkg/urlalias/store/memory"
	"github.com/tendant/simple-urlalias/pkg/urlalias/store/postgres"
	"github.com/tendant/simple-urlalias/pkg/urlalias/store/postgres/migrations"
	"github.com/tendant/simple-urlalias/pkg/urlalias/store/redisstore"
)

// Store kinds selected by StoreURL.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreBadger   = "badger"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		StoreURL:          StoreMemory,
		DBSchema:          "urlalias",
		AutoMigrate:       true,
		RedisPrefix:       "urlalias:",
		RootLocationID:    2,
		DefaultLanguage:   urlalias.DefaultLanguage,
		MaxSuffixAttempts: urlalias.DefaultMaxSuffixAttempts,
		CacheMaxCost:      cache.DefaultConfig().MaxCost,
		CacheTTL:          cache.DefaultConfig().TTL,
		EventsSource:      "/simple-urlalias",
		LogLevel:          "info",
	}
}

// Config represents configuration for the url alias service
type Config struct {
	// Store connection string: "memory", "postgres://...", "redis://...",
	// "badger:///path/to/dir" or "badger://memory"
	StoreURL    string `env:"URLALIAS_STORE_URL" env-description:"alias store connection string"`
	DBSchema    string `env:"URLALIAS_DB_SCHEMA" env-description:"postgres schema (search_path)"`
	AutoMigrate bool   `env:"URLALIAS_AUTO_MIGRATE" env-description:"apply postgres migrations on startup"`
	RedisPrefix string `env:"URLALIAS_REDIS_PREFIX" env-description:"redis key prefix"`

	RootLocationID    int64  `env:"URLALIAS_ROOT_LOCATION_ID" env-description:"location id of the tree root"`
	DefaultLanguage   string `env:"URLALIAS_DEFAULT_LANGUAGE" env-description:"language of custom aliases created without one"`
	MaxSuffixAttempts int    `env:"URLALIAS_MAX_SUFFIX_ATTEMPTS" env-description:"bound of name<N> probing"`

	CacheEnabled bool          `env:"URLALIAS_CACHE_ENABLED" env-description:"memoize lookups"`
	CacheMaxCost int64         `env:"URLALIAS_CACHE_MAX_COST" env-description:"max cached lookups"`
	CacheTTL     time.Duration `env:"URLALIAS_CACHE_TTL" env-description:"cached lookup lifetime"`

	// EventsURL enables CloudEvents delivery; events are only logged when empty
	EventsURL    string `env:"URLALIAS_EVENTS_URL" env-description:"CloudEvents HTTP target"`
	EventsSource string `env:"URLALIAS_EVENTS_SOURCE" env-description:"CloudEvents source attribute"`

	LogLevel string `env:"URLALIAS_LOG_LEVEL" env-description:"debug, info, warn or error"`
}

// StoreKind derives the store backend from StoreURL.
func (c *Config) StoreKind() (string, error) {
	u := strings.TrimSpace(c.StoreURL)
	switch {
	case u == "" || u == "memory" || u == "memory://":
		return StoreMemory, nil
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return StorePostgres, nil
	case strings.HasPrefix(u, "redis://"), strings.HasPrefix(u, "rediss://"):
		return StoreRedis, nil
	case strings.HasPrefix(u, "badger://"):
		return StoreBadger, nil
	}
	return "", fmt.Errorf("unsupported store url %q (use 'memory', 'postgres://...', 'redis://...' or 'badger://...')", c.StoreURL)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	kind, err := c.StoreKind()
	if err != nil {
		return err
	}
	if kind == StoreBadger && strings.TrimPrefix(c.StoreURL, "badger://") == "" {
		return errors.New("badger store url needs a directory or 'memory'")
	}
	if c.RootLocationID <= 0 {
		return errors.New("root_location_id must be positive")
	}
	if c.DefaultLanguage == "" {
		return errors.New("default_language is required")
	}
	if c.MaxSuffixAttempts < 1 {
		return errors.New("max_suffix_attempts must be at least 1")
	}
	if c.CacheEnabled && c.CacheMaxCost <= 0 {
		return errors.New("cache_max_cost must be positive when the cache is enabled")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// BuildService creates a Service from the configuration. The returned close
// function releases the store, cache and event client.
func (c *Config) BuildService(ctx context.Context, logger *slog.Logger) (urlalias.Service, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	store, closeStore, err := c.buildStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build store: %w", err)
	}
	closers = append(closers, closeStore)

	options := []urlalias.Option{
		urlalias.WithStore(store),
		urlalias.WithLogger(logger),
		urlalias.WithDefaultLanguage(c.DefaultLanguage),
		urlalias.WithMaxSuffixAttempts(c.MaxSuffixAttempts),
	}

	if c.CacheEnabled {
		lookups, err := cache.New(cache.Config{MaxCost: c.CacheMaxCost, TTL: c.CacheTTL})
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("failed to build lookup cache: %w", err)
		}
		closers = append(closers, func() error { lookups.Close(); return nil })
		options = append(options, urlalias.WithLookupCache(lookups))
	}

	sink, err := c.buildEventSink(logger)
	if err != nil {
		_ = closeAll()
		return nil, nil, fmt.Errorf("failed to build event sink: %w", err)
	}
	options = append(options, urlalias.WithEventSink(sink))

	svc, err := urlalias.New(options...)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	return svc, closeAll, nil
}

func (c *Config) buildEventSink(logger *slog.Logger) (urlalias.EventSink, error) {
	logSink := events.NewLogSink(logger)
	if c.EventsURL == "" {
		return logSink, nil
	}
	ce, err := events.NewCloudEventsSink(c.EventsURL, c.EventsSource)
	if err != nil {
		return nil, err
	}
	return events.Multi{logSink, ce}, nil
}

// buildStore creates the Store selected by StoreURL
func (c *Config) buildStore(ctx context.Context) (urlalias.Store, func() error, error) {
	kind, err := c.StoreKind()
	if err != nil {
		return nil, nil, err
	}
	noop := func() error { return nil }

	switch kind {
	case StoreMemory:
		return memory.New(), noop, nil
	case StorePostgres:
		pool, err := newPool(ctx, c.StoreURL, c.DBSchema)
		if err != nil {
			return nil, nil, err
		}
		if c.AutoMigrate {
			if err := c.migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return postgres.NewWithPool(pool), func() error { pool.Close(); return nil }, nil
	case StoreRedis:
		store, err := redisstore.Connect(ctx, c.StoreURL, c.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case StoreBadger:
		path := strings.TrimPrefix(c.StoreURL, "badger://")
		var store *badgerstore.Store
		if path == "memory" {
			store, err = badgerstore.OpenInMemory()
		} else {
			store, err = badgerstore.Open(path)
		}
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store kind: %s", kind)
	}
}

func newPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse store url: %w", err)
	}
	// Optionally set search_path for the connection
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if schema == "" {
			return nil
		}
		_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// migrate creates DBSchema when missing and applies the embedded migrations to it.
func (c *Config) migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if c.DBSchema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{c.DBSchema}.Sanitize()); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", c.DBSchema, err)
		}
	}
	migrateURL, err := withSearchPath(c.StoreURL, c.DBSchema)
	if err != nil {
		return err
	}
	if err := migrations.Up(migrateURL); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// withSearchPath adds search_path to a postgres url so migrations land in the
// schema the pool reads from.
func withSearchPath(databaseURL, schema string) (string, error) {
	if schema == "" {
		return databaseURL, nil
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse store url: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
