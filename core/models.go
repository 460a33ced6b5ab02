package core

import (
	"strings"
	"time"
)

// Provider identifies a third-party identity issuer.
//
// The set is closed: adding a provider means adding a constant here and a
// verifier implementation, never widening string comparisons elsewhere.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

// Providers lists every supported provider.
func Providers() []Provider {
	return []Provider{ProviderGoogle, ProviderApple}
}

// ParseProvider maps a wire value onto a Provider.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGoogle, ProviderApple:
		return p, nil
	default:
		return "", ErrUnsupportedProvider
	}
}

func (p Provider) String() string { return string(p) }

// DisplayName is the human-facing provider name used in error messages.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google"
	case ProviderApple:
		return "Apple"
	default:
		return string(p)
	}
}

// User represents a user account in the system
//
// A user holds exactly one credential mode: either a password hash, or a
// (Provider, ProviderUserID) pair.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // Never expose in JSON
	Provider       Provider  `json:"provider,omitempty"`
	ProviderUserID string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HasPassword reports whether the user signs in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsProviderLinked reports whether the user was created from an identity assertion.
func (u *User) IsProviderLinked() bool {
	return u.Provider != "" && u.ProviderUserID != ""
}

// Profile returns the public projection of the user.
func (u *User) Profile() *Profile {
	return &Profile{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
	}
}

// Session represents an active login session
//
// Only the SHA-256 digest of the bearer token is stored.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	TokenHash string    `json:"-"` // Never expose in JSON (security!)
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Valid reports whether the session is still usable at now.
// A session is invalid at or after ExpiresAt.
func (s *Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Profile is what "me" returns to clients.
type Profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// AuthResult is returned by every operation that issues a session.
type AuthResult struct {
	UserID string `json:"userId"`
	Token  string `json:"token"` // The raw token (not the hash)
	Name   string `json:"name"`
}

// Assertion is a client-obtained identity token plus optional profile hints.
// Apple only sends the user's name to the client, and only on first consent.
type Assertion struct {
	Token string
	Email string
	Name  string
}

// Identity is the verified result of an identity assertion.
type Identity struct {
	Provider  Provider
	SubjectID string
	Email     string
	Name      string
}
