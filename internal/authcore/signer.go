package authcore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind tags a signed token as an access or a refresh credential.
type TokenKind string

const (
	// TokenKindAccess marks short-lived tokens presented on API calls.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh marks long-lived single-use rotation tokens.
	TokenKindRefresh TokenKind = "refresh"
)

// Default validity windows applied when the config leaves them zero.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

const bearerPrefix = "Bearer "

var (
	errSignerEmptyKey     = errors.New("token_signer.empty_signing_key")
	errSignerEmptyIssuer  = errors.New("token_signer.empty_issuer")
	errSignerInvalidTTL   = errors.New("token_signer.invalid_ttl")
	errSignerEmptySubject = errors.New("token_signer.empty_subject")
)

// TokenClaims is the payload carried by every token the signer mints.
type TokenClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// SignerConfig configures a TokenSigner.
type SignerConfig struct {
	SigningKey []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      Clock
}

// TokenSigner mints and verifies HS256 tokens with a process-wide symmetric
// key. The key is read-only after construction, so a single signer is safe
// for unsynchronized concurrent use.
type TokenSigner struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      Clock
}

// NewTokenSigner validates the configuration and constructs a signer.
func NewTokenSigner(configuration SignerConfig) (*TokenSigner, error) {
	if len(configuration.SigningKey) == 0 {
		return nil, fmt.Errorf("token_signer.new: %w", errSignerEmptyKey)
	}
	if strings.TrimSpace(configuration.Issuer) == "" {
		return nil, fmt.Errorf("token_signer.new: %w", errSignerEmptyIssuer)
	}
	accessTTL := configuration.AccessTTL
	if accessTTL == 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	refreshTTL := configuration.RefreshTTL
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	if accessTTL < 0 || refreshTTL < 0 {
		return nil, fmt.Errorf("token_signer.new: %w", errSignerInvalidTTL)
	}
	clock := configuration.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenSigner{
		signingKey: configuration.SigningKey,
		issuer:     configuration.Issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clock,
	}, nil
}

// TTL returns the validity window for the given kind. The service uses the
// refresh window to stamp record expiry.
func (signer *TokenSigner) TTL(kind TokenKind) time.Duration {
	if kind == TokenKindRefresh {
		return signer.refreshTTL
	}
	return signer.accessTTL
}

// Issue mints a signed token for subject with the kind's validity window.
func (signer *TokenSigner) Issue(subject string, kind TokenKind) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("token_signer.issue: %w", errSignerEmptySubject)
	}
	issuedAt := signer.clock.Now()
	// iat/exp carry second precision, so without a jti two tokens minted
	// within the same second would be byte-identical and collide in the
	// hash-keyed refresh store.
	claims := TokenClaims{
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    signer.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(signer.TTL(kind))),
		},
	}
	signed, signErr := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signer.signingKey)
	if signErr != nil {
		return "", fmt.Errorf("token_signer.issue: %w", signErr)
	}
	return signed, nil
}

// Verify checks signature, issuer, expiry, and kind, and returns the
// embedded subject. An optional "Bearer " transport prefix is stripped.
// Every failure mode yields the uniform ErrInvalidToken so callers cannot
// distinguish a forged token from an expired or consumed one.
func (signer *TokenSigner) Verify(raw string, expectedKind TokenKind) (string, error) {
	trimmed := strings.TrimPrefix(raw, bearerPrefix)
	if strings.TrimSpace(trimmed) == "" {
		return "", ErrInvalidToken
	}
	parsedToken, parseErr := jwt.ParseWithClaims(trimmed, &TokenClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return signer.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signer.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return signer.clock.Now() }),
	)
	if parseErr != nil || parsedToken == nil || !parsedToken.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := parsedToken.Claims.(*TokenClaims)
	if !ok || claims.TokenType != string(expectedKind) {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
