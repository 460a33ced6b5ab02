package services

import (
	"testing"
	"time"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/crypto"
	"github.com/lborres/tether/pkg/identity"
)

// fastArgon2 keeps tests quick; production uses crypto.NewArgon2().
func fastArgon2() *crypto.Argon2 {
	return &crypto.Argon2{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

type testEnv struct {
	store   *FakeStorage
	cache   *FakeCache
	clock   *time.Time
	google  *FakeVerifier
	apple   *FakeVerifier
	hasher  crypto.PasswordHandler
	manager *SessionManager
	service *AuthService
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	env := &testEnv{
		store:  NewFakeStorage(),
		cache:  NewFakeCache(),
		clock:  &now,
		hasher: fastArgon2(),
		google: &FakeVerifier{provider: core.ProviderGoogle, identity: &core.Identity{
			SubjectID: "g-123",
			Email:     "grace@example.com",
			Name:      "Grace Hopper",
		}},
		apple: &FakeVerifier{provider: core.ProviderApple, identity: &core.Identity{
			SubjectID: "001.apple",
			Email:     "relay@privaterelay.appleid.com",
		}},
	}
	env.manager = NewSessionManager(env.store, env.cache, WithSessionClock(func() time.Time { return *env.clock }))

	all := append([]Option{WithVerifiers(identity.NewRegistry(env.google, env.apple))}, opts...)
	env.service = NewAuthService(env.store, env.hasher, env.manager, all...)
	return env
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

// seedPasswordUser stores a password user directly, bypassing SignUp.
func (e *testEnv) seedPasswordUser(t *testing.T, name, email, password string) *core.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &core.User{Name: name, Email: email, PasswordHash: hash}
	if err := e.store.CreateUser(t.Context(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}
