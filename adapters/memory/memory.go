// Package memory is an in-process account store. It enforces the same
// uniqueness rules as the SQL stores and is meant for tests and single-node
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lborres/tether/core"
)

type providerKey struct {
	provider core.Provider
	subject  string
}

type Adapter struct {
	mu sync.RWMutex

	users      map[string]*core.User
	byEmail    map[string]string
	byProvider map[providerKey]string

	sessions map[string]*core.Session // keyed by session ID

	now func() time.Time
}

var _ core.AuthStorage = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{
		users:      make(map[string]*core.User),
		byEmail:    make(map[string]string),
		byProvider: make(map[providerKey]string),
		sessions:   make(map[string]*core.Session),
		now:        time.Now,
	}
}

// CreateUser checks both unique keys and inserts under one lock.
func (a *Adapter) CreateUser(ctx context.Context, u *core.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, taken := a.byEmail[u.Email]; taken {
		return core.ErrUserExists
	}
	var key providerKey
	if u.IsProviderLinked() {
		key = providerKey{u.Provider, u.ProviderUserID}
		if _, taken := a.byProvider[key]; taken {
			return core.ErrUserExists
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = a.now().UTC()
	}

	cp := *u
	a.users[u.ID] = &cp
	a.byEmail[u.Email] = u.ID
	if u.IsProviderLinked() {
		a.byProvider[key] = u.ID
	}
	return nil
}

func (a *Adapter) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userLocked(id)
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.byEmail[email]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return a.userLocked(id)
}

func (a *Adapter) GetUserByProvider(ctx context.Context, provider core.Provider, providerUserID string) (*core.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.byProvider[providerKey{provider, providerUserID}]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return a.userLocked(id)
}

func (a *Adapter) userLocked(id string) (*core.User, error) {
	u, ok := a.users[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (a *Adapter) CreateSession(ctx context.Context, s *core.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = a.now().UTC()
	}
	cp := *s
	a.sessions[s.ID] = &cp
	return nil
}

func (a *Adapter) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.sessions {
		if s.TokenHash == tokenHash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, core.ErrSessionNotFound
}

func (a *Adapter) DeleteSessionsByHash(ctx context.Context, tokenHash string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for id, s := range a.sessions {
		if s.TokenHash == tokenHash {
			delete(a.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored users and sessions.
func (a *Adapter) Len() (users, sessions int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users), len(a.sessions)
}
