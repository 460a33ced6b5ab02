package core

import "context"

// UserStorage persists users.
//
// CreateUser must enforce uniqueness of Email and of the (Provider,
// ProviderUserID) pair atomically and report a conflict as ErrUserExists.
// It assigns ID and CreatedAt when they are empty.
type UserStorage interface {
	CreateUser(ctx context.Context, u *User) error

	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByProvider(ctx context.Context, provider Provider, providerUserID string) (*User, error)
}

// SessionStorage persists sessions keyed by token hash.
type SessionStorage interface {
	CreateSession(ctx context.Context, session *Session) error

	GetSessionByHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteSessionsByHash removes every session carrying tokenHash and
	// reports how many rows were removed. Zero is not an error.
	DeleteSessionsByHash(ctx context.Context, tokenHash string) (int, error)
}

// AuthStorage is the full account store.
type AuthStorage interface {
	UserStorage
	SessionStorage
}
