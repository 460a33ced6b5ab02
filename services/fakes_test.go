package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lborres/tether/core"
)

// FakeStorage is a test-only fake implementing core.AuthStorage.
// It enforces the same uniqueness rules as the real stores and exposes error
// fields for behavior injection.
type FakeStorage struct {
	mu       sync.RWMutex
	users    map[string]*core.User
	sessions map[string]*core.Session // keyed by session ID
	nextID   int

	createUserErr    error
	getUserErr       error
	createSessionErr error
	getSessionErr    error
	deleteErr        error

	// raceUser, when set, is inserted just before the next CreateUser call
	// to simulate a concurrent first login.
	raceUser *core.User
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		users:    make(map[string]*core.User),
		sessions: make(map[string]*core.Session),
	}
}

func (f *FakeStorage) CreateUser(ctx context.Context, u *core.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createUserErr != nil {
		return f.createUserErr
	}
	if f.raceUser != nil {
		f.insertLocked(f.raceUser)
		f.raceUser = nil
	}

	for _, existing := range f.users {
		if existing.Email == u.Email {
			return core.ErrUserExists
		}
		if u.Provider != "" && existing.Provider == u.Provider && existing.ProviderUserID == u.ProviderUserID {
			return core.ErrUserExists
		}
	}

	f.insertLocked(u)
	return nil
}

func (f *FakeStorage) insertLocked(u *core.User) {
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("user-%d", f.nextID)
	}
	cp := *u
	f.users[u.ID] = &cp
}

func (f *FakeStorage) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, core.ErrUserNotFound
}

func (f *FakeStorage) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (f *FakeStorage) GetUserByProvider(ctx context.Context, provider core.Provider, providerUserID string) (*core.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	for _, u := range f.users {
		if u.Provider == provider && u.ProviderUserID == providerUserID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, core.ErrUserNotFound
}

func (f *FakeStorage) CreateSession(ctx context.Context, s *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createSessionErr != nil {
		return f.createSessionErr
	}
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *FakeStorage) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getSessionErr != nil {
		return nil, f.getSessionErr
	}
	for _, s := range f.sessions {
		if s.TokenHash == tokenHash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, core.ErrSessionNotFound
}

func (f *FakeStorage) DeleteSessionsByHash(ctx context.Context, tokenHash string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	n := 0
	for id, s := range f.sessions {
		if s.TokenHash == tokenHash {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

// Test helper methods
func (f *FakeStorage) UserCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.users)
}

func (f *FakeStorage) SessionCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sessions)
}

// FakeCache is a test-only fake implementing core.Cache.
// It stores sessions in a map and exposes error fields for behavior injection.
type FakeCache struct {
	cache  map[string]*core.Session
	mu     sync.RWMutex
	getErr error
	setErr error
	delErr error
	hits   int
	misses int
}

func NewFakeCache() *FakeCache {
	return &FakeCache{
		cache: make(map[string]*core.Session),
	}
}

func (f *FakeCache) Get(ctx context.Context, tokenHash string) (*core.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	s, ok := f.cache[tokenHash]
	if !ok {
		f.misses++
		return nil, core.ErrCacheNotFound
	}

	f.hits++
	cp := *s
	return &cp, nil
}

func (f *FakeCache) Set(ctx context.Context, tokenHash string, session *core.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}

	cp := *session
	f.cache[tokenHash] = &cp
	return nil
}

func (f *FakeCache) Delete(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.delErr != nil {
		return f.delErr
	}

	delete(f.cache, tokenHash)
	return nil
}

func (f *FakeCache) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]*core.Session)
	return nil
}

func (f *FakeCache) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

// fakeFailingCache is a cache whose every operation fails.
type fakeFailingCache struct{}

func (fakeFailingCache) Get(context.Context, string) (*core.Session, error) {
	return nil, errors.New("cache get failed")
}
func (fakeFailingCache) Set(context.Context, string, *core.Session) error {
	return errors.New("cache set failed")
}
func (fakeFailingCache) Delete(context.Context, string) error {
	return errors.New("cache delete failed")
}
func (fakeFailingCache) Clear(context.Context) error {
	return errors.New("cache clear failed")
}

// FakeVerifier is a test-only identity verifier returning a canned identity.
type FakeVerifier struct {
	provider core.Provider
	identity *core.Identity
	err      error
	calls    int
}

func (f *FakeVerifier) Provider() core.Provider { return f.provider }

func (f *FakeVerifier) Verify(ctx context.Context, a core.Assertion) (*core.Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	id := *f.identity
	if id.Provider == "" {
		id.Provider = f.provider
	}
	if f.provider == core.ProviderApple && id.Name == "" {
		id.Name = a.Name
	}
	return &id, nil
}
