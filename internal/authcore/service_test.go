package authcore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type serviceFixture struct {
	service *AuthService
	users   *MemoryUserStore
	tokens  *MemoryRefreshTokenStore
	clock   *controllableClock
	metrics *CounterMetrics
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	signer, signerErr := NewTokenSigner(SignerConfig{
		SigningKey: []byte("test-signing-key"),
		Issuer:     "authgate-test",
		Clock:      clock,
	})
	if signerErr != nil {
		t.Fatalf("failed to create signer: %v", signerErr)
	}
	users := NewMemoryUserStore()
	tokens := NewMemoryRefreshTokenStore()
	metrics := NewCounterMetrics()
	service, serviceErr := NewAuthService(AuthServiceDeps{
		Users:         users,
		RefreshTokens: tokens,
		Hasher:        NewPasswordHasher(bcrypt.MinCost),
		Signer:        signer,
		Clock:         clock,
		Metrics:       metrics,
	})
	if serviceErr != nil {
		t.Fatalf("failed to create service: %v", serviceErr)
	}
	return &serviceFixture{service: service, users: users, tokens: tokens, clock: clock, metrics: metrics}
}

func TestNewAuthServiceRequiresDeps(t *testing.T) {
	t.Parallel()

	signer, _ := NewTokenSigner(SignerConfig{SigningKey: []byte("k"), Issuer: "authgate-test"})
	hasher := NewPasswordHasher(bcrypt.MinCost)
	cases := []struct {
		name string
		deps AuthServiceDeps
	}{
		{name: "missing users", deps: AuthServiceDeps{RefreshTokens: NewMemoryRefreshTokenStore(), Hasher: hasher, Signer: signer}},
		{name: "missing tokens", deps: AuthServiceDeps{Users: NewMemoryUserStore(), Hasher: hasher, Signer: signer}},
		{name: "missing hasher", deps: AuthServiceDeps{Users: NewMemoryUserStore(), RefreshTokens: NewMemoryRefreshTokenStore(), Signer: signer}},
		{name: "missing signer", deps: AuthServiceDeps{Users: NewMemoryUserStore(), RefreshTokens: NewMemoryRefreshTokenStore(), Hasher: hasher}},
	}
	for _, testCase := range cases {
		if _, err := NewAuthService(testCase.deps); err == nil {
			t.Fatalf("%s: expected construction error", testCase.name)
		}
	}
}

func TestRegisterPersistsUser(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	user, err := fixture.service.Register(context.Background(), "  Alice@Example.COM ", "hunter22")
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected a generated user id")
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	stored, findErr := fixture.users.FindByEmail(context.Background(), "alice@example.com")
	if findErr != nil {
		t.Fatalf("stored user lookup: %v", findErr)
	}
	if stored.HashedPassword == "hunter22" {
		t.Fatalf("password stored in plain text")
	}
	if fixture.metrics.Count(MetricRegisterSuccess) != 1 {
		t.Fatalf("expected register success metric")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	if _, err := fixture.service.Register(context.Background(), "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := fixture.service.Register(context.Background(), "ALICE@example.com", "other-password")
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
	if fixture.metrics.Count(MetricRegisterRejected) != 1 {
		t.Fatalf("expected register rejected metric")
	}
}

func TestLoginIssuesTokenPair(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	user, _ := fixture.service.Register(context.Background(), "alice@example.com", "hunter22")

	pair, err := fixture.service.Login(context.Background(), "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("login error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if _, findErr := fixture.tokens.FindByUserAndHash(context.Background(), user.ID, HashRefreshToken(pair.RefreshToken)); findErr != nil {
		t.Fatalf("expected persisted refresh record: %v", findErr)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	if _, err := fixture.service.Register(context.Background(), "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, unknownErr := fixture.service.Login(context.Background(), "nobody@example.com", "hunter22")
	_, wrongPasswordErr := fixture.service.Login(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongPasswordErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPasswordErr)
	}
	if fixture.metrics.Count(MetricLoginRejected) != 2 {
		t.Fatalf("expected two login rejections, got %d", fixture.metrics.Count(MetricLoginRejected))
	}
}

func TestRepeatedLoginAtSameInstantAgainstDatabase(t *testing.T) {
	t.Parallel()

	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	signer, signerErr := NewTokenSigner(SignerConfig{
		SigningKey: []byte("test-signing-key"),
		Issuer:     "authgate-test",
		Clock:      clock,
	})
	if signerErr != nil {
		t.Fatalf("signer: %v", signerErr)
	}
	gormDB, driverLabel, openErr := OpenDatabase(context.Background(), "sqlite:"+filepath.Join(t.TempDir(), "login_retry.db"))
	if openErr != nil {
		t.Fatalf("open database: %v", openErr)
	}
	service, serviceErr := NewAuthService(AuthServiceDeps{
		Users:         NewDatabaseUserStore(gormDB, driverLabel),
		RefreshTokens: NewDatabaseRefreshTokenStore(gormDB, driverLabel),
		Hasher:        NewPasswordHasher(bcrypt.MinCost),
		Signer:        signer,
		Clock:         clock,
	})
	if serviceErr != nil {
		t.Fatalf("service: %v", serviceErr)
	}

	if _, err := service.Register(context.Background(), "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}
	first, firstErr := service.Login(context.Background(), "alice@example.com", "hunter22")
	if firstErr != nil {
		t.Fatalf("first login: %v", firstErr)
	}
	second, secondErr := service.Login(context.Background(), "alice@example.com", "hunter22")
	if secondErr != nil {
		t.Fatalf("second login in the same second: %v", secondErr)
	}
	if first.RefreshToken == second.RefreshToken {
		t.Fatalf("expected distinct refresh tokens per login")
	}

	for _, pair := range []TokenPair{first, second} {
		if _, err := service.Refresh(context.Background(), pair.RefreshToken); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	if _, err := fixture.service.Register(context.Background(), "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}
	first, loginErr := fixture.service.Login(context.Background(), "alice@example.com", "hunter22")
	if loginErr != nil {
		t.Fatalf("login: %v", loginErr)
	}

	fixture.clock.Advance(time.Minute)
	second, refreshErr := fixture.service.Refresh(context.Background(), first.RefreshToken)
	if refreshErr != nil {
		t.Fatalf("refresh: %v", refreshErr)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatalf("expected a rotated refresh token")
	}

	_, replayErr := fixture.service.Refresh(context.Background(), first.RefreshToken)
	if !errors.Is(replayErr, ErrInvalidToken) {
		t.Fatalf("expected replayed token rejected, got %v", replayErr)
	}

	fixture.clock.Advance(time.Minute)
	if _, err := fixture.service.Refresh(context.Background(), second.RefreshToken); err != nil {
		t.Fatalf("rotated token should remain valid: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	if _, err := fixture.service.Register(context.Background(), "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, _ := fixture.service.Login(context.Background(), "alice@example.com", "hunter22")

	_, err := fixture.service.Refresh(context.Background(), pair.AccessToken)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token rejected, got %v", err)
	}
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	if _, err := fixture.service.Register(context.Background(), "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, _ := fixture.service.Login(context.Background(), "alice@example.com", "hunter22")

	fixture.clock.Advance(DefaultRefreshTokenTTL + time.Hour)
	_, err := fixture.service.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestRefreshRejectsTokenOfDeletedUser(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	user, _ := fixture.service.Register(context.Background(), "alice@example.com", "hunter22")
	pair, _ := fixture.service.Login(context.Background(), "alice@example.com", "hunter22")

	fixture.users.mutex.Lock()
	delete(fixture.users.byID, user.ID)
	delete(fixture.users.byEmail, user.Email)
	fixture.users.mutex.Unlock()

	_, err := fixture.service.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected deleted-user token rejected, got %v", err)
	}
}

type faultingUserStore struct {
	UserStore
	fault error
}

func (store faultingUserStore) FindByEmail(ctx context.Context, email string) (User, error) {
	return User{}, store.fault
}

func TestLoginPropagatesStoreFault(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	storeFault := errors.New("connection refused")
	faulty, err := NewAuthService(AuthServiceDeps{
		Users:         faultingUserStore{UserStore: fixture.users, fault: storeFault},
		RefreshTokens: fixture.tokens,
		Hasher:        NewPasswordHasher(bcrypt.MinCost),
		Signer:        fixture.service.signer,
	})
	if err != nil {
		t.Fatalf("service construction: %v", err)
	}

	_, loginErr := faulty.Login(context.Background(), "alice@example.com", "hunter22")
	if !errors.Is(loginErr, storeFault) {
		t.Fatalf("expected the store fault to propagate, got %v", loginErr)
	}
	if errors.Is(loginErr, ErrInvalidCredentials) {
		t.Fatalf("store fault must not be masked as invalid credentials")
	}
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	t.Parallel()

	fixture := newServiceFixture(t)
	if _, err := fixture.service.Register(context.Background(), "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, loginErr := fixture.service.Login(context.Background(), "alice@example.com", "hunter22")
	if loginErr != nil {
		t.Fatalf("login: %v", loginErr)
	}
	fixture.clock.Advance(time.Minute)

	const attempts = 16
	var waitGroup sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, err := fixture.service.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}
	waitGroup.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInvalidToken):
			rejections++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}
	if rejections != attempts-1 {
		t.Fatalf("expected %d rejections, got %d", attempts-1, rejections)
	}
}
