// Package tether wires the auth core together: storage, session cache,
// password hashing, identity verifiers and an HTTP adapter.
package tether

import (
	"log/slog"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/cache"
	"github.com/lborres/tether/pkg/crypto"
	"github.com/lborres/tether/pkg/identity"
	"github.com/lborres/tether/pkg/logger"
	"github.com/lborres/tether/pkg/metrics"
	"github.com/lborres/tether/services"
)

// interfaces
type (
	AuthStorage      = core.AuthStorage
	Cache            = core.Cache
	HTTPAdapter      = core.HTTPAdapter
	AuthHandler      = core.AuthHandler
	IdentityVerifier = core.IdentityVerifier

	PasswordHandler = crypto.PasswordHandler
)

type (
	User        = core.User
	Session     = core.Session
	Profile     = core.Profile
	AuthResult  = core.AuthResult
	CacheConfig = core.CacheConfig
	CacheStats  = core.CacheStats
	Provider    = core.Provider
)

const (
	ProviderGoogle = core.ProviderGoogle
	ProviderApple  = core.ProviderApple
)

// Constructors & helpers (convenience re-exports)
var (
	NewInMemoryCache = cache.NewInMemoryCache
	NewArgon2        = crypto.NewArgon2
)

var (
	ErrAccountExists       = core.ErrAccountExists
	ErrInvalidCredentials  = core.ErrInvalidCredentials
	ErrWrongCredentialMode = core.ErrWrongCredentialMode
	ErrStorageUnavailable  = core.ErrStorageUnavailable
	ErrProviderUnavailable = core.ErrProviderUnavailable
)

var (
	ErrInvalidToken  = core.ErrInvalidToken
	ErrInvalidIssuer = core.ErrInvalidIssuer
	ErrTokenExpired  = core.ErrTokenExpired
	ErrKeyNotFound   = core.ErrKeyNotFound
)

var (
	ErrValidation       = core.ErrValidation
	ErrNameRequired     = core.ErrNameRequired
	ErrEmailRequired    = core.ErrEmailRequired
	ErrInvalidEmail     = core.ErrInvalidEmail
	ErrPasswordRequired = core.ErrPasswordRequired
	ErrPasswordTooLong  = core.ErrPasswordTooLong
	ErrTokenRequired    = core.ErrTokenRequired
)

var (
	ErrDBAdapterRequired   = core.ErrDBAdapterRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
)

type Config struct {
	Database AuthStorage
	HTTP     HTTPAdapter

	// CacheAdapter defaults to an in-memory cache unless DisableCache is set.
	// The in-memory cache is per process; set DisableCache or use a shared
	// cache when several processes write to the same Database.
	CacheAdapter Cache
	DisableCache bool

	// PasswordHasher defaults to argon2id.
	PasswordHasher PasswordHandler

	Verifiers []IdentityVerifier

	BasePath string
	Logger   *slog.Logger
	Metrics  metrics.Recorder
}

type Tether struct {
	Auth     *services.AuthService
	Sessions *services.SessionManager
	BasePath string
}

func New(config Config) (*Tether, error) {
	if config.Database == nil {
		return nil, ErrDBAdapterRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	log := config.Logger
	if log == nil {
		log = logger.Discard()
	}

	rec := config.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}

	cacheAdapter := config.CacheAdapter
	if cacheAdapter == nil && !config.DisableCache {
		cacheAdapter = NewInMemoryCache(CacheConfig{
			TTL:     cache.DefaultTTL,
			MaxSize: cache.DefaultMaxSize,
		})
	}
	if config.DisableCache {
		cacheAdapter = nil
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = crypto.NewArgon2()
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = core.DefaultBasePath
	}

	verifiers := identity.NewRegistry()
	for _, v := range config.Verifiers {
		verifiers.Register(identity.Instrument(v, rec))
	}

	sessionManager := services.NewSessionManager(
		config.Database,
		cacheAdapter,
		services.WithSessionLogger(log),
	)

	auth := services.NewAuthService(
		config.Database,
		passwordHasher,
		sessionManager,
		services.WithLogger(log),
		services.WithMetrics(rec),
		services.WithVerifiers(verifiers),
	)

	if err := config.HTTP.RegisterRoutes(auth, basePath); err != nil {
		return nil, err
	}

	return &Tether{
		Auth:     auth,
		Sessions: sessionManager,
		BasePath: basePath,
	}, nil
}
