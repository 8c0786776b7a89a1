package authpg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mprlab/authgate/internal/authcore"
)

const uniqueViolationCode = "23505"

// PostgresUserStore persists users in PostgreSQL through pgx.
type PostgresUserStore struct {
	pool *pgxpool.Pool
}

// NewPostgresUserStore constructs a Postgres user store.
func NewPostgresUserStore(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

// Create inserts a user row. The unique email constraint turns a duplicate
// into ErrDuplicateUser.
func (store *PostgresUserStore) Create(ctx context.Context, user authcore.User) error {
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO users (id, email, hashed_password, created_at)
VALUES ($1, $2, $3, $4)
`, user.ID, user.Email, user.HashedPassword, user.CreatedAt)
	if execErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(execErr, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("user_store.create.pg: %w", authcore.ErrDuplicateUser)
		}
		return fmt.Errorf("user_store.create.pg: %w", execErr)
	}
	return nil
}

// FindByEmail returns the user registered under email.
func (store *PostgresUserStore) FindByEmail(ctx context.Context, email string) (authcore.User, error) {
	return store.findOne(ctx, `
SELECT id, email, hashed_password, created_at
FROM users
WHERE email = $1
`, email)
}

// FindByID returns the user with the given id.
func (store *PostgresUserStore) FindByID(ctx context.Context, id string) (authcore.User, error) {
	return store.findOne(ctx, `
SELECT id, email, hashed_password, created_at
FROM users
WHERE id = $1
`, id)
}

func (store *PostgresUserStore) findOne(ctx context.Context, query string, argument any) (authcore.User, error) {
	var user authcore.User
	row := store.pool.QueryRow(ctx, query, argument)
	scanErr := row.Scan(&user.ID, &user.Email, &user.HashedPassword, &user.CreatedAt)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return authcore.User{}, fmt.Errorf("user_store.find.pg: %w", authcore.ErrUserNotFound)
		}
		return authcore.User{}, fmt.Errorf("user_store.find.pg: %w", scanErr)
	}
	return user, nil
}
