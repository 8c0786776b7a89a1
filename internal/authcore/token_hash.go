package authcore

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashRefreshToken computes the storage digest of a raw refresh token.
// Refresh tokens are high-entropy signed strings, not passwords, so a fast
// digest is enough to keep the bearer secret out of the store without
// making rotation CPU-bound.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.StdEncoding.EncodeToString(sum[:])
}
