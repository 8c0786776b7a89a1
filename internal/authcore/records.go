package authcore

import "time"

// User is a registered credential holder. HashedPassword stays inside the
// auth core; responses carry only ID and Email.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
}

// RefreshTokenRecord mirrors one issued refresh token. Only the SHA-256
// digest of the raw token is persisted, so a store compromise does not hand
// out replayable bearer secrets.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// TokenPair carries one freshly issued access/refresh pair. It is transient
// and never persisted as a unit.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
