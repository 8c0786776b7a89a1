package authcore

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher produces and verifies salted bcrypt digests. Hashing is
// CPU-bound on purpose; the cost factor controls how expensive an offline
// brute-force attempt is.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher constructs a hasher with the given bcrypt cost. Costs
// outside the bcrypt range fall back to the library default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted one-way digest of raw. Two calls with the same
// input yield different digests. Inputs over bcrypt's 72-byte limit fail
// with ErrPasswordTooLong.
func (hasher *PasswordHasher) Hash(raw string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(raw), hasher.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("password.hash: %w", ErrPasswordTooLong)
		}
		return "", fmt.Errorf("password.hash: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether raw matches the stored digest. A malformed digest
// verifies as false rather than surfacing an error.
func (hasher *PasswordHasher) Verify(raw string, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(raw)) == nil
}
