package core

import (
	"context"
	"time"
)

// Ports define interfaces for external dependencies

// ============================================
// CACHE PORT
// ============================================

// Cache defines session caching operations
type Cache interface {
	Get(ctx context.Context, tokenHash string) (*Session, error)
	Set(ctx context.Context, tokenHash string, session *Session) error
	Delete(ctx context.Context, tokenHash string) error
	Clear(ctx context.Context) error
}

// CacheWithStats extends Cache with statistics tracking
type CacheWithStats interface {
	Cache
	Stats() CacheStats
}

// CacheConfig configures cache behavior
type CacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}

// ============================================
// IDENTITY PORT
// ============================================

// IdentityVerifier validates a third-party identity assertion.
// Implementations return facts only and never touch storage.
type IdentityVerifier interface {
	Provider() Provider
	Verify(ctx context.Context, assertion Assertion) (*Identity, error)
}

// ============================================
// AUTH HANDLER (for HTTP adapters)
// ============================================

// AuthHandler provides authentication operations for HTTP adapters
type AuthHandler interface {
	SignUp(ctx context.Context, input SignUpInput) (*AuthResult, error)
	SignIn(ctx context.Context, input SignInInput) (*AuthResult, error)
	SignInWithGoogle(ctx context.Context, idToken string) (*AuthResult, error)
	SignInWithApple(ctx context.Context, input AppleSignInInput) (*AuthResult, error)
	// Me returns nil without error when the token does not resolve to a live session.
	Me(ctx context.Context, token string) (*Profile, error)
	SignOut(ctx context.Context, token string) error
}

// ============================================
// HTTP PORT
// ============================================

type HTTPAdapter interface {
	RegisterRoutes(handler AuthHandler, basePath string) error
}
