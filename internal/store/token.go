package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alumnijourney/apiserver/types"
	"github.com/jmoiron/sqlx"
)

// TokenRepository handles persistence for API tokens. A user holds at most one.
type TokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// GetOrCreate returns the user's existing token, storing token only if none exists yet.
func (r *TokenRepository) GetOrCreate(ctx context.Context, token types.Token) (types.Token, error) {
	const insert = `
		INSERT INTO tokens (key, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, token.Key, token.UserID, token.CreatedAt); err != nil {
		return types.Token{}, err
	}

	var existing types.Token
	const query = `SELECT key, user_id, created_at FROM tokens WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &existing, query, token.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Token{}, ErrNotFound
		}
		return types.Token{}, err
	}
	return existing, nil
}

func (r *TokenRepository) GetByKey(ctx context.Context, key string) (types.Token, error) {
	var token types.Token
	const query = `SELECT key, user_id, created_at FROM tokens WHERE key = $1`
	if err := r.db.GetContext(ctx, &token, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Token{}, ErrNotFound
		}
		return types.Token{}, err
	}
	return token, nil
}

// DeleteByUser revokes the user's token. Deleting a missing token is not an error.
func (r *TokenRepository) DeleteByUser(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID)
	return err
}
