package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/crypto"
)

var sessionNow = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func newTestSessionManager(storage core.SessionStorage, cache core.Cache, now *time.Time) *SessionManager {
	return NewSessionManager(storage, cache, WithSessionClock(func() time.Time { return *now }))
}

// Requirement: Create issues a 64-character hex token, persists only its hash
// and sets a 30 day expiry.
func TestSessionManager_Create(t *testing.T) {
	// Arrange
	now := sessionNow
	storage := NewFakeStorage()
	manager := newTestSessionManager(storage, nil, &now)

	// Act
	result, err := manager.Create(context.Background(), "user123")

	// Assert
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(result.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(result.Token))
	}
	if result.Session.TokenHash != crypto.HashToken(result.Token) {
		t.Error("stored hash should be the SHA-256 of the token")
	}
	if result.Session.TokenHash == result.Token {
		t.Error("raw token must not be stored")
	}
	if !result.Session.ExpiresAt.Equal(now.Add(30 * 24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", result.Session.ExpiresAt, now.Add(30*24*time.Hour))
	}
	if result.Session.ID == "" || result.Session.UserID != "user123" {
		t.Errorf("unexpected session: %+v", result.Session)
	}
	stored, err := storage.GetSessionByHash(context.Background(), result.Session.TokenHash)
	if err != nil || stored.ID != result.Session.ID {
		t.Errorf("session not persisted: %v", err)
	}
}

// Requirement: Tokens issued across many sessions are pairwise distinct.
func TestSessionManager_Create_DistinctTokens(t *testing.T) {
	now := sessionNow
	manager := newTestSessionManager(NewFakeStorage(), nil, &now)
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		res, err := manager.Create(context.Background(), "u")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if seen[res.Token] {
			t.Fatalf("duplicate token after %d sessions", i)
		}
		seen[res.Token] = true
	}
}

// Requirement: TokenHash must never be exposed in JSON responses (security).
func TestSessionManager_Create_TokenHashNotExposed(t *testing.T) {
	// Arrange
	now := sessionNow
	manager := newTestSessionManager(NewFakeStorage(), nil, &now)
	result, _ := manager.Create(context.Background(), "user123")

	// Act
	data, err := json.Marshal(result.Session)

	// Assert
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), result.Session.TokenHash) {
		t.Error("TokenHash leaked into JSON")
	}
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	for _, key := range []string{"TokenHash", "tokenHash", "token_hash"} {
		if _, ok := m[key]; ok {
			t.Errorf("JSON contains %q", key)
		}
	}
}

func TestSessionManager_Create_StorageFailure(t *testing.T) {
	now := sessionNow
	storage := NewFakeStorage()
	storage.createSessionErr = errors.New("pool exhausted")
	manager := newTestSessionManager(storage, NewFakeCache(), &now)

	_, err := manager.Create(context.Background(), "u")

	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("Create() error = %v, want ErrStorageUnavailable", err)
	}
}

// Requirement: Verify resolves live sessions and rejects expired or unknown ones.
func TestSessionManager_Verify(t *testing.T) {
	tests := []struct {
		name      string
		withCache bool
		advance   time.Duration
		token     func(string) string
		wantErr   error
	}{
		{name: "live session", token: func(tok string) string { return tok }},
		{name: "live session cached", withCache: true, token: func(tok string) string { return tok }},
		{name: "padded token", token: func(tok string) string { return " " + tok + " " }},
		{name: "empty token", token: func(string) string { return "" }, wantErr: core.ErrSessionNotFound},
		{name: "unknown token", token: func(string) string { return strings.Repeat("0", 64) }, wantErr: core.ErrSessionNotFound},
		{name: "expired at boundary", advance: core.SessionMaxAge, token: func(tok string) string { return tok }, wantErr: core.ErrSessionExpired},
		{name: "expired at boundary cached", withCache: true, advance: core.SessionMaxAge, token: func(tok string) string { return tok }, wantErr: core.ErrSessionExpired},
		{name: "one second before expiry", advance: core.SessionMaxAge - time.Second, token: func(tok string) string { return tok }},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			now := sessionNow
			storage := NewFakeStorage()
			var cache core.Cache
			if test.withCache {
				cache = NewFakeCache()
			}
			manager := newTestSessionManager(storage, cache, &now)
			created, _ := manager.Create(context.Background(), "user123")
			now = now.Add(test.advance)

			// Act
			session, err := manager.Verify(context.Background(), test.token(created.Token))

			// Assert
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, test.wantErr)
				}
				if storage.SessionCount() != 1 {
					t.Error("Verify must not delete stored sessions")
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if session.UserID != "user123" {
				t.Errorf("UserID = %q, want user123", session.UserID)
			}
		})
	}
}

// Requirement: A storage hit populates the cache and later reads are served from it.
func TestSessionManager_Verify_PopulatesCache(t *testing.T) {
	// Arrange
	now := sessionNow
	storage := NewFakeStorage()
	cache := NewFakeCache()
	manager := newTestSessionManager(storage, cache, &now)
	created, _ := manager.Create(context.Background(), "user123")
	_ = cache.Clear(context.Background())

	// Act
	_, err1 := manager.Verify(context.Background(), created.Token)
	storage.getSessionErr = errors.New("storage should not be consulted")
	_, err2 := manager.Verify(context.Background(), created.Token)

	// Assert
	if err1 != nil || err2 != nil {
		t.Fatalf("Verify() errors = %v, %v", err1, err2)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}
}

// Requirement: A broken cache never fails the request.
func TestSessionManager_FailingCacheFallsBack(t *testing.T) {
	// Arrange
	now := sessionNow
	manager := newTestSessionManager(NewFakeStorage(), fakeFailingCache{}, &now)

	// Act
	created, err := manager.Create(context.Background(), "user123")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	session, verifyErr := manager.Verify(context.Background(), created.Token)
	_, destroyErr := manager.Destroy(context.Background(), created.Token)

	// Assert
	if verifyErr != nil || session == nil {
		t.Fatalf("Verify() = %v, %v", session, verifyErr)
	}
	if destroyErr != nil {
		t.Errorf("Destroy() error = %v", destroyErr)
	}
}

// Requirement: Destroy removes the stored session and its cache entry.
func TestSessionManager_Destroy(t *testing.T) {
	// Arrange
	now := sessionNow
	storage := NewFakeStorage()
	cache := NewFakeCache()
	manager := newTestSessionManager(storage, cache, &now)
	created, _ := manager.Create(context.Background(), "user123")

	// Act
	n, err := manager.Destroy(context.Background(), created.Token)

	// Assert
	if err != nil || n != 1 {
		t.Fatalf("Destroy() = %d, %v; want 1, nil", n, err)
	}
	if cache.Len() != 0 {
		t.Error("cache entry should be evicted")
	}
	if _, err := manager.Verify(context.Background(), created.Token); !errors.Is(err, core.ErrSessionNotFound) {
		t.Errorf("Verify() after Destroy error = %v, want ErrSessionNotFound", err)
	}
	if n, err := manager.Destroy(context.Background(), created.Token); n != 0 || err != nil {
		t.Errorf("second Destroy() = %d, %v; want 0, nil", n, err)
	}
}
