package config

import (
	"fmt"
	"time"
)

// WithStoreURL selects the alias store
func WithStoreURL(storeURL string) Option {
	return func(c *Config) error {
		c.StoreURL = storeURL
		if _, err := c.StoreKind(); err != nil {
			return err
		}
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *Config) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate toggles applying the embedded Postgres migrations
func WithAutoMigrate(enabled bool) Option {
	return func(c *Config) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithRedisPrefix sets the key prefix of the Redis store
func WithRedisPrefix(prefix string) Option {
	return func(c *Config) error {
		if prefix == "" {
			return fmt.Errorf("redis prefix cannot be empty")
		}
		c.RedisPrefix = prefix
		return nil
	}
}

// WithRootLocation sets the location id of the tree root
func WithRootLocation(locationID int64) Option {
	return func(c *Config) error {
		if locationID <= 0 {
			return fmt.Errorf("root location id must be positive, got: %d", locationID)
		}
		c.RootLocationID = locationID
		return nil
	}
}

// WithDefaultLanguage sets the language of custom aliases created without one
func WithDefaultLanguage(languageCode string) Option {
	return func(c *Config) error {
		if languageCode == "" {
			return fmt.Errorf("default language cannot be empty")
		}
		c.DefaultLanguage = languageCode
		return nil
	}
}

// WithMaxSuffixAttempts bounds name<N> probing
func WithMaxSuffixAttempts(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("max suffix attempts must be at least 1, got: %d", n)
		}
		c.MaxSuffixAttempts = n
		return nil
	}
}

// WithLookupCache enables the lookup cache
func WithLookupCache(maxCost int64, ttl time.Duration) Option {
	return func(c *Config) error {
		if maxCost <= 0 {
			return fmt.Errorf("cache max cost must be positive, got: %d", maxCost)
		}
		c.CacheEnabled = true
		c.CacheMaxCost = maxCost
		c.CacheTTL = ttl
		return nil
	}
}

// WithCloudEvents delivers alias events to an HTTP CloudEvents receiver
func WithCloudEvents(target, source string) Option {
	return func(c *Config) error {
		if target == "" {
			return fmt.Errorf("cloudevents target cannot be empty")
		}
		c.EventsURL = target
		if source != "" {
			c.EventsSource = source
		}
		return nil
	}
}

// WithLogLevel sets the log level of the executables
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		if _, err := ParseLevel(level); err != nil {
			return err
		}
		c.LogLevel = level
		return nil
	}
}
