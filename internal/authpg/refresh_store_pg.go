package authpg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mprlab/authgate/internal/authcore"
)

// PostgresRefreshTokenStore persists hashed refresh tokens in PostgreSQL.
type PostgresRefreshTokenStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRefreshTokenStore constructs a Postgres refresh token store.
func NewPostgresRefreshTokenStore(pool *pgxpool.Pool) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{pool: pool}
}

// Save inserts a new refresh token record.
func (store *PostgresRefreshTokenStore) Save(ctx context.Context, record authcore.RefreshTokenRecord) error {
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5)
`, record.ID, record.UserID, record.TokenHash, record.ExpiresAt, record.CreatedAt)
	if execErr != nil {
		return fmt.Errorf("refresh_store.save.pg: %w", execErr)
	}
	return nil
}

// FindByUserAndHash returns the record for the (user, hash) key.
func (store *PostgresRefreshTokenStore) FindByUserAndHash(ctx context.Context, userID string, tokenHash string) (authcore.RefreshTokenRecord, error) {
	var record authcore.RefreshTokenRecord
	row := store.pool.QueryRow(ctx, `
SELECT id, user_id, token_hash, expires_at, created_at
FROM refresh_tokens
WHERE user_id = $1 AND token_hash = $2
`, userID, tokenHash)
	scanErr := row.Scan(&record.ID, &record.UserID, &record.TokenHash, &record.ExpiresAt, &record.CreatedAt)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return authcore.RefreshTokenRecord{}, fmt.Errorf("refresh_store.find.pg: %w", authcore.ErrRefreshRecordNotFound)
		}
		return authcore.RefreshTokenRecord{}, fmt.Errorf("refresh_store.find.pg: %w", scanErr)
	}
	return record, nil
}

// Consume deletes the row for the (user, hash) key in one statement. The
// command tag decides the winner between concurrent exchanges of one token.
func (store *PostgresRefreshTokenStore) Consume(ctx context.Context, userID string, tokenHash string) (bool, error) {
	tag, execErr := store.pool.Exec(ctx, `
DELETE FROM refresh_tokens
WHERE user_id = $1 AND token_hash = $2
`, userID, tokenHash)
	if execErr != nil {
		return false, fmt.Errorf("refresh_store.consume.pg: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpiredBefore drops rows whose expiry precedes cutoff.
func (store *PostgresRefreshTokenStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, execErr := store.pool.Exec(ctx, `
DELETE FROM refresh_tokens
WHERE expires_at < $1
`, cutoff)
	if execErr != nil {
		return 0, fmt.Errorf("refresh_store.sweep.pg: %w", execErr)
	}
	return tag.RowsAffected(), nil
}
