package pgx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lborres/tether/core"
)

const userColumns = `id, name, email, password_hash, provider, provider_user_id, created_at`

// CreateUser relies on the unique constraints for email and provider binding,
// so concurrent inserts resolve in the database.
func (a *Adapter) CreateUser(ctx context.Context, user *core.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query := `INSERT INTO users (id, name, email, password_hash, provider, provider_user_id)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING created_at`

	var createdAt time.Time
	err := a.pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email,
		nullable(user.PasswordHash), nullable(string(user.Provider)), nullable(user.ProviderUserID),
	).Scan(&createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrUserExists
		}
		return err
	}

	user.CreatedAt = createdAt.UTC()
	return nil
}

func (a *Adapter) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	return a.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return a.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (a *Adapter) GetUserByProvider(ctx context.Context, provider core.Provider, providerUserID string) (*core.User, error) {
	return a.getUser(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_user_id = $2`,
		string(provider), providerUserID)
}

func (a *Adapter) getUser(ctx context.Context, query string, args ...any) (*core.User, error) {
	user, err := scanUser(a.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, core.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*core.User, error) {
	user := &core.User{}
	var passwordHash, provider, providerUserID *string
	err := row.Scan(&user.ID, &user.Name, &user.Email, &passwordHash, &provider, &providerUserID, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = deref(passwordHash)
	user.Provider = core.Provider(deref(provider))
	user.ProviderUserID = deref(providerUserID)
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
