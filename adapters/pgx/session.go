package pgx

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lborres/tether/core"
)

func (a *Adapter) CreateSession(ctx context.Context, session *core.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	query := `INSERT INTO sessions (id, user_id, token_hash, expires_at)
	          VALUES ($1, $2, $3, $4)
	          RETURNING created_at`

	var createdAt time.Time
	if err := a.pool.QueryRow(ctx, query,
		session.ID, session.UserID, session.TokenHash, session.ExpiresAt,
	).Scan(&createdAt); err != nil {
		return err
	}

	session.CreatedAt = createdAt.UTC()
	return nil
}

// GetSessionByHash returns the row regardless of expiry; callers decide validity.
func (a *Adapter) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	query := `SELECT id, user_id, token_hash, expires_at, created_at
	          FROM sessions WHERE token_hash = $1
	          ORDER BY created_at DESC LIMIT 1`

	s := &core.Session{}
	err := a.pool.QueryRow(ctx, query, tokenHash).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, core.ErrSessionNotFound
		}
		return nil, err
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

func (a *Adapter) DeleteSessionsByHash(ctx context.Context, tokenHash string) (int, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
