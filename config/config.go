// Package config loads server settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	HasherArgon2 = "argon2id"
	HasherSHA256 = "sha256"
)

var (
	ErrParsingConfig = errors.New("failed to parse config")
	ErrInvalidConfig = errors.New("invalid config")
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	BasePath string `env:"AUTH_BASE_PATH" envDefault:"/api/auth"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"tether.db"`

	RedisURL     string        `env:"REDIS_URL"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CacheMaxSize int           `env:"CACHE_MAX_SIZE" envDefault:"500"`

	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"argon2id"`
	PasswordSalt   string `env:"PASSWORD_SALT" envDefault:"salt"`

	GoogleClientIDs     []string      `env:"GOOGLE_CLIENT_IDS" envSeparator:","`
	GoogleJWKSURL       string        `env:"GOOGLE_JWKS_URL"`
	AppleAudiences      []string      `env:"APPLE_AUDIENCES" envSeparator:","`
	AppleKeysURL        string        `env:"APPLE_KEYS_URL"`
	AppleKeysTTL        time.Duration `env:"APPLE_KEYS_TTL" envDefault:"1h"`
	AppleRedirectURL    string        `env:"APPLE_REDIRECT_URL" envDefault:"/auth/callback"`
	AppleErrorURL       string        `env:"APPLE_ERROR_URL" envDefault:"/login"`
	IdentityHTTPTimeout time.Duration `env:"IDENTITY_HTTP_TIMEOUT" envDefault:"5s"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
}

// Load reads files (default ".env") into the process environment, skipping
// missing ones, then parses and validates the result.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrParsingConfig, f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	return &cfg, cfg.Validate()
}

// Parse reads settings from environ instead of the process environment.
func Parse(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}
	return &cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the postgres driver", ErrInvalidConfig)
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%w: SQLITE_PATH is required for the sqlite driver", ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: unknown DATABASE_DRIVER %q", ErrInvalidConfig, c.DatabaseDriver)
	}

	switch c.PasswordHasher {
	case HasherArgon2, HasherSHA256:
	default:
		return fmt.Errorf("%w: unknown PASSWORD_HASHER %q", ErrInvalidConfig, c.PasswordHasher)
	}

	if c.IdentityHTTPTimeout <= 0 {
		return fmt.Errorf("%w: IDENTITY_HTTP_TIMEOUT must be positive", ErrInvalidConfig)
	}
	return nil
}
