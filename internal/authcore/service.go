package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errServiceMissingUsers  = errors.New("auth_service.missing_user_store")
	errServiceMissingTokens = errors.New("auth_service.missing_refresh_store")
	errServiceMissingHasher = errors.New("auth_service.missing_hasher")
	errServiceMissingSigner = errors.New("auth_service.missing_signer")
)

// AuthServiceDeps lists the collaborators an AuthService orchestrates.
// Users, RefreshTokens, Hasher, and Signer are required; Clock, Logger, and
// Metrics fall back to working defaults.
type AuthServiceDeps struct {
	Users         UserStore
	RefreshTokens RefreshTokenStore
	Hasher        *PasswordHasher
	Signer        *TokenSigner
	Clock         Clock
	Logger        *zap.Logger
	Metrics       MetricsRecorder
}

// AuthService orchestrates registration, login, and refresh rotation. It
// holds no mutable state of its own; everything lives in the injected
// stores, so independent requests may call it concurrently.
type AuthService struct {
	users         UserStore
	refreshTokens RefreshTokenStore
	hasher        *PasswordHasher
	signer        *TokenSigner
	clock         Clock
	logger        *zap.Logger
	metrics       MetricsRecorder
}

// NewAuthService validates deps and constructs the service.
func NewAuthService(deps AuthServiceDeps) (*AuthService, error) {
	if deps.Users == nil {
		return nil, fmt.Errorf("auth_service.new: %w", errServiceMissingUsers)
	}
	if deps.RefreshTokens == nil {
		return nil, fmt.Errorf("auth_service.new: %w", errServiceMissingTokens)
	}
	if deps.Hasher == nil {
		return nil, fmt.Errorf("auth_service.new: %w", errServiceMissingHasher)
	}
	if deps.Signer == nil {
		return nil, fmt.Errorf("auth_service.new: %w", errServiceMissingSigner)
	}
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &AuthService{
		users:         deps.Users,
		refreshTokens: deps.RefreshTokens,
		hasher:        deps.Hasher,
		signer:        deps.Signer,
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Register hashes the password and persists a new user. No tokens are
// issued. ErrDuplicateUser when the email is already registered.
func (service *AuthService) Register(ctx context.Context, email string, password string) (User, error) {
	hashed, hashErr := service.hasher.Hash(password)
	if hashErr != nil {
		if errors.Is(hashErr, ErrPasswordTooLong) {
			service.metrics.Increment(MetricRegisterRejected)
		}
		return User{}, fmt.Errorf("auth.register: %w", hashErr)
	}
	user := User{
		ID:             uuid.NewString(),
		Email:          normalizeEmail(email),
		HashedPassword: hashed,
		CreatedAt:      service.clock.Now(),
	}
	if createErr := service.users.Create(ctx, user); createErr != nil {
		if errors.Is(createErr, ErrDuplicateUser) {
			service.metrics.Increment(MetricRegisterRejected)
			return User{}, fmt.Errorf("auth.register: %w", ErrDuplicateUser)
		}
		return User{}, fmt.Errorf("auth.register: %w", createErr)
	}
	service.metrics.Increment(MetricRegisterSuccess)
	service.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login verifies the credentials and issues a fresh token pair. Unknown
// email and wrong password both yield ErrInvalidCredentials; store faults
// propagate distinctly.
func (service *AuthService) Login(ctx context.Context, email string, password string) (TokenPair, error) {
	user, findErr := service.users.FindByEmail(ctx, normalizeEmail(email))
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) {
			service.metrics.Increment(MetricLoginRejected)
			return TokenPair{}, fmt.Errorf("auth.login: %w", ErrInvalidCredentials)
		}
		return TokenPair{}, fmt.Errorf("auth.login: %w", findErr)
	}
	if !service.hasher.Verify(password, user.HashedPassword) {
		service.metrics.Increment(MetricLoginRejected)
		return TokenPair{}, fmt.Errorf("auth.login: %w", ErrInvalidCredentials)
	}
	pair, issueErr := service.issuePair(ctx, user.ID)
	if issueErr != nil {
		return TokenPair{}, fmt.Errorf("auth.login: %w", issueErr)
	}
	service.metrics.Increment(MetricLoginSuccess)
	service.logger.Info("login", zap.String("user_id", user.ID))
	return pair, nil
}

// Refresh exchanges a live refresh token for a brand-new pair, consuming
// the presented token. A token that was already exchanged, never issued, or
// swept fails with the same ErrInvalidToken as a forged one. Of concurrent
// exchanges presenting the same raw token, exactly one succeeds; the store's
// atomic consume decides the winner.
func (service *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	subject, verifyErr := service.signer.Verify(refreshToken, TokenKindRefresh)
	if verifyErr != nil {
		service.metrics.Increment(MetricRefreshRejected)
		return TokenPair{}, fmt.Errorf("auth.refresh: %w", ErrInvalidToken)
	}
	user, findErr := service.users.FindByID(ctx, subject)
	if findErr != nil {
		if errors.Is(findErr, ErrUserNotFound) {
			service.metrics.Increment(MetricRefreshRejected)
			return TokenPair{}, fmt.Errorf("auth.refresh: %w", ErrInvalidToken)
		}
		return TokenPair{}, fmt.Errorf("auth.refresh: %w", findErr)
	}
	consumed, consumeErr := service.refreshTokens.Consume(ctx, user.ID, HashRefreshToken(refreshToken))
	if consumeErr != nil {
		return TokenPair{}, fmt.Errorf("auth.refresh: %w", consumeErr)
	}
	if !consumed {
		service.metrics.Increment(MetricRefreshRejected)
		return TokenPair{}, fmt.Errorf("auth.refresh: %w", ErrInvalidToken)
	}
	pair, issueErr := service.issuePair(ctx, user.ID)
	if issueErr != nil {
		return TokenPair{}, fmt.Errorf("auth.refresh: %w", issueErr)
	}
	service.metrics.Increment(MetricRefreshSuccess)
	service.logger.Info("refresh rotated", zap.String("user_id", user.ID))
	return pair, nil
}

// issuePair mints an access/refresh pair and persists the hash of the
// refresh half.
func (service *AuthService) issuePair(ctx context.Context, userID string) (TokenPair, error) {
	accessToken, accessErr := service.signer.Issue(userID, TokenKindAccess)
	if accessErr != nil {
		return TokenPair{}, accessErr
	}
	refreshToken, refreshErr := service.signer.Issue(userID, TokenKindRefresh)
	if refreshErr != nil {
		return TokenPair{}, refreshErr
	}
	now := service.clock.Now()
	record := RefreshTokenRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: HashRefreshToken(refreshToken),
		ExpiresAt: now.Add(service.signer.TTL(TokenKindRefresh)),
		CreatedAt: now,
	}
	if saveErr := service.refreshTokens.Save(ctx, record); saveErr != nil {
		return TokenPair{}, saveErr
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
