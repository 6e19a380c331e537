package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv applies environment variable overrides. Unset variables keep the
// value already configured.
//
// Environment variables:
//
//	URLALIAS_STORE_URL           - "memory" (default), "postgres://...", "redis://...",
//	                               "badger:///path/to/dir" or "badger://memory"
//	URLALIAS_DB_SCHEMA           - Postgres schema (default: "urlalias")
//	URLALIAS_AUTO_MIGRATE        - Apply embedded migrations (default: true)
//	URLALIAS_REDIS_PREFIX        - Redis key prefix (default: "urlalias:")
//	URLALIAS_ROOT_LOCATION_ID    - Root location id (default: 2)
//	URLALIAS_DEFAULT_LANGUAGE    - Default language (default: "eng-GB")
//	URLALIAS_MAX_SUFFIX_ATTEMPTS - Suffix probing bound (default: 1000)
//	URLALIAS_CACHE_ENABLED       - Memoize lookups (default: false)
//	URLALIAS_CACHE_MAX_COST      - Max cached lookups (default: 10000)
//	URLALIAS_CACHE_TTL           - Cached lookup lifetime (default: "5m")
//	URLALIAS_EVENTS_URL          - CloudEvents HTTP target; events are logged only when empty
//	URLALIAS_EVENTS_SOURCE       - CloudEvents source (default: "/simple-urlalias")
//	URLALIAS_LOG_LEVEL           - debug, info, warn or error (default: "info")
func WithEnv() Option {
	return func(c *Config) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		return nil
	}
}

// Usage describes the environment variables understood by WithEnv.
func Usage() (string, error) {
	return cleanenv.GetDescription(&Config{}, nil)
}
