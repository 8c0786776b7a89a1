package authcore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryUserStore is an in-memory UserStore for tests and local runs.
type MemoryUserStore struct {
	mutex   sync.Mutex
	byID    map[string]User
	byEmail map[string]string
}

// NewMemoryUserStore constructs an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]User),
		byEmail: make(map[string]string),
	}
}

// Create inserts a user, enforcing email uniqueness.
func (store *MemoryUserStore) Create(ctx context.Context, user User) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, taken := store.byEmail[user.Email]; taken {
		return fmt.Errorf("user_store.create: %w", ErrDuplicateUser)
	}
	store.byID[user.ID] = user
	store.byEmail[user.Email] = user.ID
	return nil
}

// FindByEmail returns the user registered under email.
func (store *MemoryUserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	userID, ok := store.byEmail[email]
	if !ok {
		return User{}, fmt.Errorf("user_store.find_by_email: %w", ErrUserNotFound)
	}
	return store.byID[userID], nil
}

// FindByID returns the user with the given id.
func (store *MemoryUserStore) FindByID(ctx context.Context, id string) (User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	user, ok := store.byID[id]
	if !ok {
		return User{}, fmt.Errorf("user_store.find_by_id: %w", ErrUserNotFound)
	}
	return user, nil
}

type refreshKey struct {
	userID    string
	tokenHash string
}

// MemoryRefreshTokenStore is an in-memory RefreshTokenStore. The single
// mutex serializes Consume, so concurrent exchanges of one token see
// exactly one winner.
type MemoryRefreshTokenStore struct {
	mutex   sync.Mutex
	records map[refreshKey]RefreshTokenRecord
}

// NewMemoryRefreshTokenStore constructs an empty in-memory token store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{records: make(map[refreshKey]RefreshTokenRecord)}
}

// Save inserts a record keyed by (user, hash).
func (store *MemoryRefreshTokenStore) Save(ctx context.Context, record RefreshTokenRecord) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.records[refreshKey{userID: record.UserID, tokenHash: record.TokenHash}] = record
	return nil
}

// FindByUserAndHash returns the live record for the key.
func (store *MemoryRefreshTokenStore) FindByUserAndHash(ctx context.Context, userID string, tokenHash string) (RefreshTokenRecord, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, ok := store.records[refreshKey{userID: userID, tokenHash: tokenHash}]
	if !ok {
		return RefreshTokenRecord{}, fmt.Errorf("refresh_store.find: %w", ErrRefreshRecordNotFound)
	}
	return record, nil
}

// Consume deletes the record for the key and reports whether it existed.
func (store *MemoryRefreshTokenStore) Consume(ctx context.Context, userID string, tokenHash string) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	key := refreshKey{userID: userID, tokenHash: tokenHash}
	if _, ok := store.records[key]; !ok {
		return false, nil
	}
	delete(store.records, key)
	return true, nil
}

// DeleteExpiredBefore drops records whose expiry precedes cutoff.
func (store *MemoryRefreshTokenStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	var removed int64
	for key, record := range store.records {
		if record.ExpiresAt.Before(cutoff) {
			delete(store.records, key)
			removed++
		}
	}
	return removed, nil
}
