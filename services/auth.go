package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lborres/tether/core"
	"github.com/lborres/tether/pkg/crypto"
	"github.com/lborres/tether/pkg/identity"
	"github.com/lborres/tether/pkg/logger"
	"github.com/lborres/tether/pkg/metrics"
)

// placeholderEmailDomain is used for provider accounts whose token carries no
// email. The .invalid TLD never resolves.
const placeholderEmailDomain = "users.noreply.invalid"

type AuthService struct {
	store          core.AuthStorage
	passwordHasher crypto.PasswordHandler
	sessionManager *SessionManager
	verifiers      *identity.Registry
	logger         *slog.Logger
	metrics        metrics.Recorder
}

// Ensure AuthService implements AuthHandler
var _ core.AuthHandler = (*AuthService)(nil)

type Option func(*AuthService)

func WithLogger(l *slog.Logger) Option {
	return func(s *AuthService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *AuthService) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithVerifiers enables provider sign-in for every verifier in r.
func WithVerifiers(r *identity.Registry) Option {
	return func(s *AuthService) { s.verifiers = r }
}

func NewAuthService(store core.AuthStorage, passwordHasher crypto.PasswordHandler, sessionManager *SessionManager, opts ...Option) *AuthService {
	s := &AuthService{
		store:          store,
		passwordHasher: passwordHasher,
		sessionManager: sessionManager,
		verifiers:      identity.NewRegistry(),
		logger:         logger.Discard(),
		metrics:        metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignUp registers a new user with email and password
func (s *AuthService) SignUp(ctx context.Context, input core.SignUpInput) (res *core.AuthResult, err error) {
	defer func() { s.observe(ctx, core.OpSignUp, err, logger.Email(input.Email)) }()

	if err := input.Validate(); err != nil {
		return nil, err
	}

	// Step 1: Check if user already exists
	if _, err := s.store.GetUserByEmail(ctx, input.Email); err == nil {
		return nil, core.ErrAccountExists
	} else if !errors.Is(err, core.ErrUserNotFound) {
		return nil, storageErr(err)
	}

	// Step 2: Hash the password
	hashedPassword, err := s.passwordHasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// Step 3: Create the user. The store enforces email uniqueness.
	user := &core.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        input.Email,
		PasswordHash: hashedPassword,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, core.ErrUserExists) {
			return nil, core.ErrAccountExists
		}
		return nil, storageErr(err)
	}

	// Step 4: Create a session for the new user
	return s.issue(ctx, user)
}

// SignIn authenticates a user with email and password
func (s *AuthService) SignIn(ctx context.Context, input core.SignInInput) (res *core.AuthResult, err error) {
	defer func() { s.observe(ctx, core.OpSignIn, err, logger.Email(input.Email)) }()

	if err := input.Validate(); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, storageErr(err)
	}

	if !user.HasPassword() {
		if user.IsProviderLinked() {
			return nil, &core.WrongCredentialModeError{Provider: user.Provider}
		}
		return nil, core.ErrInvalidCredentials
	}

	valid, err := s.passwordHasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		s.logger.WarnContext(ctx, "stored password digest not recognised", logger.UserID(user.ID), logger.Error(err))
		return nil, core.ErrInvalidCredentials
	}
	if !valid {
		return nil, core.ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

func (s *AuthService) SignInWithGoogle(ctx context.Context, idToken string) (*core.AuthResult, error) {
	return s.SignInWithProvider(ctx, core.ProviderGoogle, core.Assertion{Token: idToken})
}

func (s *AuthService) SignInWithApple(ctx context.Context, input core.AppleSignInInput) (*core.AuthResult, error) {
	return s.SignInWithProvider(ctx, core.ProviderApple, input.Assertion())
}

// SignInWithProvider verifies an identity assertion and signs in the local
// user bound to (provider, subject), creating it on first use.
//
// A provider identity never attaches to an existing account with the same
// email; that is reported as ErrAccountExists.
func (s *AuthService) SignInWithProvider(ctx context.Context, provider core.Provider, assertion core.Assertion) (res *core.AuthResult, err error) {
	defer func() { s.observe(ctx, opForProvider(provider), err, logger.Provider(provider.String())) }()

	if strings.TrimSpace(assertion.Token) == "" {
		return nil, core.ErrTokenRequired
	}

	id, err := s.verifiers.Verify(ctx, provider, assertion)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByProvider(ctx, provider, id.SubjectID)
	if err == nil {
		return s.issue(ctx, user)
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return nil, storageErr(err)
	}

	if id.Email != "" {
		if _, err := s.store.GetUserByEmail(ctx, id.Email); err == nil {
			return nil, core.ErrAccountExists
		} else if !errors.Is(err, core.ErrUserNotFound) {
			return nil, storageErr(err)
		}
	}

	email := id.Email
	if email == "" {
		email = placeholderEmail(provider, id.SubjectID)
	}

	user = &core.User{
		Name:           displayName(id.Name, assertion.Name, email),
		Email:          email,
		Provider:       provider,
		ProviderUserID: id.SubjectID,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, core.ErrUserExists) {
			return nil, storageErr(err)
		}
		// A concurrent first login may have created the same binding.
		existing, lerr := s.store.GetUserByProvider(ctx, provider, id.SubjectID)
		if lerr != nil {
			if errors.Is(lerr, core.ErrUserNotFound) {
				return nil, core.ErrAccountExists
			}
			return nil, storageErr(lerr)
		}
		user = existing
	}

	return s.issue(ctx, user)
}

// Me returns the profile behind token, or nil when the token does not
// resolve to a live session.
func (s *AuthService) Me(ctx context.Context, token string) (profile *core.Profile, err error) {
	defer func() { s.observe(ctx, core.OpMe, err) }()

	session, err := s.sessionManager.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) || errors.Is(err, core.ErrSessionExpired) {
			return nil, nil
		}
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, nil
		}
		return nil, storageErr(err)
	}

	return user.Profile(), nil
}

// SignOut invalidates every session for token. It is idempotent.
func (s *AuthService) SignOut(ctx context.Context, token string) (err error) {
	defer func() { s.observe(ctx, core.OpSignOut, err) }()

	_, err = s.sessionManager.Destroy(ctx, token)
	return err
}

func (s *AuthService) issue(ctx context.Context, user *core.User) (*core.AuthResult, error) {
	created, err := s.sessionManager.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &core.AuthResult{
		UserID: user.ID,
		Token:  created.Token,
		Name:   user.Name,
	}, nil
}

func (s *AuthService) observe(ctx context.Context, op string, err error, attrs ...slog.Attr) {
	outcome := "ok"
	level := slog.LevelDebug
	if err != nil {
		outcome = core.ErrorKind(err)
		switch outcome {
		case core.KindStorageUnavailable, core.KindProviderUnavailable, core.KindInternal:
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
		attrs = append(attrs, logger.Kind(outcome), logger.Error(err))
	}
	s.metrics.RecordOperation(op, outcome)
	s.logger.LogAttrs(ctx, level, "auth operation", append([]slog.Attr{logger.Operation(op)}, attrs...)...)
}

func opForProvider(p core.Provider) string {
	switch p {
	case core.ProviderGoogle:
		return core.OpSignInWithGoogle
	case core.ProviderApple:
		return core.OpSignInWithApple
	default:
		return "signInWith" + p.DisplayName()
	}
}

func placeholderEmail(p core.Provider, subject string) string {
	return fmt.Sprintf("%s.%s@%s", p, subject, placeholderEmailDomain)
}

// displayName picks the first non-empty of the token name, the client hint
// and the local part of email.
func displayName(claim, hint, email string) string {
	if n := strings.TrimSpace(claim); n != "" {
		return n
	}
	if n := strings.TrimSpace(hint); n != "" {
		return n
	}
	if at := strings.LastIndex(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
