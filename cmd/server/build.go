package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pgxadapter "github.com/lborres/tether/adapters/pgx"
	redisadapter "github.com/lborres/tether/adapters/redis"
	"github.com/lborres/tether/adapters/memory"
	"github.com/lborres/tether/adapters/sqlite"
	"github.com/lborres/tether/config"
	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/cache"
	"github.com/lborres/tether/pkg/crypto"
	"github.com/lborres/tether/pkg/identity"
	"github.com/lborres/tether/pkg/metrics"
)

const (
	connectAttempts = 5
	connectInterval = time.Second
)

// closer releases a resource opened during startup.
type closer func() error

func noopCloser() error { return nil }

// openStore opens the account store selected by DATABASE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (core.AuthStorage, closer, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		pool, err := pgxadapter.Connect(ctx, pgxadapter.ConnectConfig{
			URL:           cfg.DatabaseURL,
			RetryAttempts: connectAttempts,
			RetryInterval: connectInterval,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := pgxadapter.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pgxadapter.New(pool), func() error { pool.Close(); return nil }, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.DriverMemory:
		log.Warn("using the in-memory store; accounts are lost on restart")
		return memory.New(), noopCloser, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown DATABASE_DRIVER %q", config.ErrInvalidConfig, cfg.DatabaseDriver)
	}
}

// openCache prefers redis when REDIS_URL is set. Without redis a postgres
// store runs uncached (nil cache): a process-local cache would keep serving
// sessions revoked through another instance.
func openCache(ctx context.Context, cfg *config.Config) (core.Cache, closer, error) {
	if cfg.RedisURL == "" {
		if cfg.DatabaseDriver == config.DriverPostgres {
			return nil, noopCloser, nil
		}
		return cache.NewInMemoryCache(core.CacheConfig{TTL: cfg.CacheTTL, MaxSize: cfg.CacheMaxSize}), noopCloser, nil
	}
	client, err := redisadapter.Connect(ctx, cfg.RedisURL, connectAttempts, connectInterval)
	if err != nil {
		return nil, nil, err
	}
	return redisadapter.New(client, cfg.CacheTTL), client.Close, nil
}

func newHasher(cfg *config.Config) crypto.PasswordHandler {
	legacy := crypto.NewSaltedSHA256(cfg.PasswordSalt)
	if cfg.PasswordHasher == config.HasherSHA256 {
		return legacy
	}
	return &crypto.Chain{
		Primary: crypto.NewArgon2(),
		Legacy:  []crypto.PasswordHandler{legacy},
	}
}

// newVerifiers registers a provider only when its accepted audiences are
// configured. Sign-in with an unregistered provider is rejected as unsupported.
func newVerifiers(cfg *config.Config, rec metrics.Recorder) []core.IdentityVerifier {
	var vs []core.IdentityVerifier
	if len(cfg.GoogleClientIDs) > 0 {
		vs = append(vs, identity.NewGoogleVerifier(identity.GoogleConfig{
			ClientIDs: cfg.GoogleClientIDs,
			JWKSURL:   cfg.GoogleJWKSURL,
			Timeout:   cfg.IdentityHTTPTimeout,
		}))
	}
	if len(cfg.AppleAudiences) > 0 {
		vs = append(vs, identity.NewAppleVerifier(identity.AppleConfig{
			Audiences: cfg.AppleAudiences,
			KeysURL:   cfg.AppleKeysURL,
			KeysTTL:   cfg.AppleKeysTTL,
			Timeout:   cfg.IdentityHTTPTimeout,
			Metrics:   rec,
		}))
	}
	return vs
}

// newMetrics returns the recorder and, when enabled, the registry to expose.
func newMetrics(cfg *config.Config) (metrics.Recorder, *prometheus.Registry) {
	if !cfg.MetricsEnabled {
		return metrics.Nop{}, nil
	}
	reg := prometheus.NewRegistry()
	return metrics.NewCollector(reg), reg
}
