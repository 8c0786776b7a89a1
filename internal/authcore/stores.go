package authcore

import (
	"context"
	"time"
)

// UserStore persists registered users.
type UserStore interface {
	// Create inserts a new user. ErrDuplicateUser when the email is taken.
	Create(ctx context.Context, user User) error
	// FindByEmail returns the user for an email. ErrUserNotFound when absent.
	FindByEmail(ctx context.Context, email string) (User, error)
	// FindByID returns the user for an id. ErrUserNotFound when absent.
	FindByID(ctx context.Context, id string) (User, error)
}

// RefreshTokenStore persists hashed refresh tokens keyed by (user, hash).
// At most one live record exists per key.
type RefreshTokenStore interface {
	// Save inserts a new record.
	Save(ctx context.Context, record RefreshTokenRecord) error
	// FindByUserAndHash returns the record for the key.
	// ErrRefreshRecordNotFound when absent.
	FindByUserAndHash(ctx context.Context, userID string, tokenHash string) (RefreshTokenRecord, error)
	// Consume deletes the record for the key and reports whether a record
	// was present. The delete is atomic: of any number of concurrent callers
	// presenting the same key, exactly one observes true.
	Consume(ctx context.Context, userID string, tokenHash string) (bool, error)
	// DeleteExpiredBefore removes records whose expiry precedes cutoff and
	// returns how many were removed.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
