package config

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreURL)
	assert.Equal(t, urlalias.DefaultLanguage, cfg.DefaultLanguage)
	assert.Equal(t, urlalias.DefaultMaxSuffixAttempts, cfg.MaxSuffixAttempts)
	assert.Equal(t, int64(2), cfg.RootLocationID)
	assert.True(t, cfg.AutoMigrate)
	assert.False(t, cfg.CacheEnabled)
}

func TestWithEnv(t *testing.T) {
	t.Setenv("URLALIAS_STORE_URL", "redis://localhost:6379/0")
	t.Setenv("URLALIAS_DEFAULT_LANGUAGE", "ger-DE")
	t.Setenv("URLALIAS_MAX_SUFFIX_ATTEMPTS", "25")
	t.Setenv("URLALIAS_CACHE_ENABLED", "true")
	t.Setenv("URLALIAS_CACHE_TTL", "30s")
	t.Setenv("URLALIAS_AUTO_MIGRATE", "false")

	cfg, err := Load(WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "redis://localhost:6379/0", cfg.StoreURL)
	assert.Equal(t, "ger-DE", cfg.DefaultLanguage)
	assert.Equal(t, 25, cfg.MaxSuffixAttempts)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, "urlalias:", cfg.RedisPrefix, "unset variables keep defaults")
}

func TestWithEnvInvalidValue(t *testing.T) {
	t.Setenv("URLALIAS_MAX_SUFFIX_ATTEMPTS", "many")

	_, err := Load(WithEnv())
	assert.Error(t, err)
}

func TestStoreKind(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "", want: StoreMemory},
		{url: "memory", want: StoreMemory},
		{url: "memory://", want: StoreMemory},
		{url: "postgres://u:p@localhost/db", want: StorePostgres},
		{url: "postgresql://u:p@localhost/db", want: StorePostgres},
		{url: "redis://localhost:6379", want: StoreRedis},
		{url: "rediss://localhost:6379", want: StoreRedis},
		{url: "badger:///var/lib/urlalias", want: StoreBadger},
		{url: "mysql://localhost/db", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := Config{StoreURL: tt.url}
			got, err := cfg.StoreKind()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unsupported store", func(c *Config) { c.StoreURL = "ftp://example.com" }},
		{"badger without path", func(c *Config) { c.StoreURL = "badger://" }},
		{"root location", func(c *Config) { c.RootLocationID = 0 }},
		{"default language", func(c *Config) { c.DefaultLanguage = "" }},
		{"suffix attempts", func(c *Config) { c.MaxSuffixAttempts = 0 }},
		{"cache size", func(c *Config) { c.CacheEnabled = true; c.CacheMaxCost = 0 }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestWithSearchPath(t *testing.T) {
	got, err := withSearchPath("postgres://u:p@localhost:5432/db?sslmode=disable", "aliases")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/db?search_path=aliases&sslmode=disable", got)

	got, err = withSearchPath("postgres://localhost/db", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/db", got)
}

func exercise(t *testing.T, cfg *Config) {
	t.Helper()
	svc, closeFn, err := cfg.BuildService(context.Background(), slog.Default())
	require.NoError(t, err)
	defer func() { assert.NoError(t, closeFn()) }()

	ctx := context.Background()
	_, err = svc.InitializeRoot(ctx, cfg.RootLocationID)
	require.NoError(t, err)
	require.NoError(t, svc.PublishURLAliasForLocation(ctx, urlalias.PublishRequest{
		LocationID: 10, ParentLocationID: cfg.RootLocationID, Name: "news", LanguageCode: cfg.DefaultLanguage,
	}))
	alias, err := svc.Lookup(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "10", alias.Destination)
}

func TestBuildService(t *testing.T) {
	t.Run("memory with cache", func(t *testing.T) {
		cfg, err := Load(func(c *Config) error {
			c.CacheEnabled = true
			return nil
		})
		require.NoError(t, err)
		exercise(t, cfg)
	})

	t.Run("badger in memory", func(t *testing.T) {
		cfg, err := Load(func(c *Config) error {
			c.StoreURL = "badger://memory"
			return nil
		})
		require.NoError(t, err)
		exercise(t, cfg)
	})

	t.Run("badger directory", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(func(c *Config) error {
			c.StoreURL = "badger://" + dir
			return nil
		})
		require.NoError(t, err)
		exercise(t, cfg)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg, err := Load(func(c *Config) error {
			c.StoreURL = "redis://" + mr.Addr()
			return nil
		})
		require.NoError(t, err)
		exercise(t, cfg)
		assert.NotEmpty(t, mr.Keys())
	})

	t.Run("unreachable events target does not fail operations", func(t *testing.T) {
		cfg, err := Load(func(c *Config) error {
			c.EventsURL = "http://127.0.0.1:1/events"
			return nil
		})
		require.NoError(t, err)
		exercise(t, cfg)
	})
}
