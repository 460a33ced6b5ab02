package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/crypto"
	"github.com/lborres/tether/pkg/logger"
)

type SessionManager struct {
	storage core.SessionStorage
	cache   core.Cache // optional, can be nil if caching is disabled
	maxAge  time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

type SessionOption func(*SessionManager)

// WithSessionClock replaces time.Now for expiry decisions.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(sm *SessionManager) {
		if now != nil {
			sm.now = now
		}
	}
}

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(sm *SessionManager) {
		if l != nil {
			sm.logger = l
		}
	}
}

// CreateSessionResult carries the stored session and the raw token. The raw
// token exists only here and is never persisted.
type CreateSessionResult struct {
	Session *core.Session
	Token   string
}

func NewSessionManager(storage core.SessionStorage, cache core.Cache, opts ...SessionOption) *SessionManager {
	sm := &SessionManager{
		storage: storage,
		cache:   cache,
		maxAge:  core.SessionMaxAge,
		now:     time.Now,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

func (sm *SessionManager) Create(ctx context.Context, userID string) (*CreateSessionResult, error) {
	token, err := crypto.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	tokenHash := crypto.HashToken(token)

	now := sm.now()
	session := &core.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.maxAge),
	}

	if err := sm.storage.CreateSession(ctx, session); err != nil {
		return nil, storageErr(err)
	}

	if sm.cache != nil {
		// We don't fail the request if caching fails
		if err := sm.cache.Set(ctx, tokenHash, session); err != nil {
			sm.logger.DebugContext(ctx, "session cache set failed", logger.Error(err))
		}
	}

	return &CreateSessionResult{Session: session, Token: token}, nil
}

// Verify resolves a raw token to its live session.
//
// Expired sessions are reported as ErrSessionExpired and left in storage.
func (sm *SessionManager) Verify(ctx context.Context, token string) (*core.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, core.ErrSessionNotFound
	}

	tokenHash := crypto.HashToken(token)
	now := sm.now()

	if sm.cache != nil {
		if session, err := sm.cache.Get(ctx, tokenHash); err == nil {
			if !session.Valid(now) {
				_ = sm.cache.Delete(ctx, tokenHash)
				return nil, core.ErrSessionExpired
			}
			return session, nil
		} else if !errors.Is(err, core.ErrCacheNotFound) {
			sm.logger.DebugContext(ctx, "session cache get failed", logger.Error(err))
		}
	}

	session, err := sm.storage.GetSessionByHash(ctx, tokenHash)
	if err != nil {
		return nil, storageErr(err)
	}
	if session == nil {
		return nil, core.ErrSessionNotFound
	}

	if !session.Valid(now) {
		return nil, core.ErrSessionExpired
	}

	if sm.cache != nil {
		_ = sm.cache.Set(ctx, tokenHash, session)
	}

	return session, nil
}

// Destroy deletes every session carrying the token's hash. Unknown and empty
// tokens are not an error.
func (sm *SessionManager) Destroy(ctx context.Context, token string) (int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, nil
	}

	tokenHash := crypto.HashToken(token)

	n, err := sm.storage.DeleteSessionsByHash(ctx, tokenHash)
	if err != nil {
		return 0, storageErr(err)
	}

	if sm.cache != nil {
		if err := sm.cache.Delete(ctx, tokenHash); err != nil {
			sm.logger.DebugContext(ctx, "session cache delete failed", logger.Error(err))
		}
	}

	return n, nil
}
