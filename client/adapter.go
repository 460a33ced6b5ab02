// Package client is the UI-facing side of tether. An Adapter keeps the
// session token in a TokenStore, exposes the current user and a loading flag,
// and fires navigation callbacks. All business rules live in the Backend.
package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/logger"
)

// State is a snapshot of what the UI renders.
type State struct {
	User    *core.Profile
	Loading bool
}

type Adapter struct {
	backend Backend
	store   TokenStore
	logger  *slog.Logger

	onLogin  func(State)
	onLogout func()

	mu    sync.RWMutex
	state State
}

type Option func(*Adapter)

// OnLogin is called after every successful login or signup.
func OnLogin(fn func(State)) Option {
	return func(a *Adapter) { a.onLogin = fn }
}

// OnLogout is called after every logout.
func OnLogout(fn func()) Option {
	return func(a *Adapter) { a.onLogout = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an adapter in the loading state; call Restore to settle it.
func New(backend Backend, store TokenStore, opts ...Option) *Adapter {
	a := &Adapter{
		backend: backend,
		store:   store,
		logger:  logger.Discard(),
		state:   State{Loading: true},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (a *Adapter) setState(user *core.Profile, loading bool) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = State{User: user, Loading: loading}
	return a.state
}

func (a *Adapter) setLoading() {
	a.mu.Lock()
	a.state.Loading = true
	a.mu.Unlock()
}

func (a *Adapter) currentUser() *core.Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.User
}

// Restore resolves a previously stored token. A token the service no longer
// accepts is removed; a transport failure leaves it in place.
func (a *Adapter) Restore(ctx context.Context) error {
	a.setLoading()

	token, err := a.store.Get(ctx)
	if err != nil {
		a.setState(nil, false)
		return err
	}
	if token == "" {
		a.setState(nil, false)
		return nil
	}

	profile, err := a.backend.Me(ctx, token)
	if err != nil {
		a.setState(nil, false)
		return err
	}
	if profile == nil {
		if err := a.store.Remove(ctx); err != nil {
			a.logger.WarnContext(ctx, "removing stale token", logger.Error(err))
		}
	}
	a.setState(profile, false)
	return nil
}

func (a *Adapter) Login(ctx context.Context, email, password string) error {
	return a.authenticate(ctx, func() (*core.AuthResult, error) {
		return a.backend.SignIn(ctx, core.SignInInput{Email: email, Password: password})
	}, email)
}

func (a *Adapter) Signup(ctx context.Context, name, email, password string) error {
	return a.authenticate(ctx, func() (*core.AuthResult, error) {
		return a.backend.SignUp(ctx, core.SignUpInput{Name: name, Email: email, Password: password})
	}, email)
}

func (a *Adapter) LoginWithGoogle(ctx context.Context, idToken string) error {
	return a.authenticate(ctx, func() (*core.AuthResult, error) {
		return a.backend.SignInWithGoogle(ctx, idToken)
	}, "")
}

// LoginWithApple forwards the name and email Apple hands the client on first
// consent.
func (a *Adapter) LoginWithApple(ctx context.Context, identityToken, email, name string) error {
	return a.authenticate(ctx, func() (*core.AuthResult, error) {
		return a.backend.SignInWithApple(ctx, core.AppleSignInInput{
			IdentityToken: identityToken,
			Email:         email,
			Name:          name,
		})
	}, "")
}

// authenticate runs call, persists the token and publishes the user. When
// the caller does not know the email, the profile is fetched with Me.
func (a *Adapter) authenticate(ctx context.Context, call func() (*core.AuthResult, error), email string) error {
	previous := a.currentUser()
	a.setLoading()

	result, err := call()
	if err != nil {
		a.setState(previous, false)
		return err
	}

	if err := a.store.Set(ctx, result.Token); err != nil {
		a.setState(previous, false)
		return err
	}

	profile := &core.Profile{UserID: result.UserID, Name: result.Name, Email: email}
	if email == "" {
		if me, err := a.backend.Me(ctx, result.Token); err == nil && me != nil {
			profile = me
		} else if err != nil {
			a.logger.WarnContext(ctx, "fetching profile after login", logger.Error(err))
		}
	}

	state := a.setState(profile, false)
	if a.onLogin != nil {
		a.onLogin(state)
	}
	return nil
}

// Logout clears local state even when the service call fails; that failure
// is returned after the callback runs.
func (a *Adapter) Logout(ctx context.Context) error {
	a.setLoading()

	var errs []error
	token, err := a.store.Get(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	if token != "" {
		if err := a.backend.SignOut(ctx, token); err != nil {
			a.logger.WarnContext(ctx, "remote sign-out failed", logger.Error(err))
			errs = append(errs, err)
		}
	}
	if err := a.store.Remove(ctx); err != nil {
		errs = append(errs, err)
	}

	a.setState(nil, false)
	if a.onLogout != nil {
		a.onLogout()
	}
	return errors.Join(errs...)
}
