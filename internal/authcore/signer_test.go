package authcore

import (
	"errors"
	"testing"
	"time"
)

type controllableClock struct {
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.current = clock.current.Add(duration)
}

func newTestSigner(t *testing.T, clock Clock) *TokenSigner {
	t.Helper()
	signer, err := NewTokenSigner(SignerConfig{
		SigningKey: []byte("test-signing-key"),
		Issuer:     "authgate-test",
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	return signer
}

func TestNewTokenSignerValidatesConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenSigner(SignerConfig{Issuer: "x"}); err == nil {
		t.Fatalf("expected error for empty signing key")
	}
	if _, err := NewTokenSigner(SignerConfig{SigningKey: []byte("k")}); err == nil {
		t.Fatalf("expected error for empty issuer")
	}
	if _, err := NewTokenSigner(SignerConfig{SigningKey: []byte("k"), Issuer: "x", AccessTTL: -time.Minute}); err == nil {
		t.Fatalf("expected error for negative TTL")
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	signer := newTestSigner(t, clock)

	token, issueErr := signer.Issue("user-123", TokenKindAccess)
	if issueErr != nil {
		t.Fatalf("issue error: %v", issueErr)
	}
	subject, verifyErr := signer.Verify(token, TokenKindAccess)
	if verifyErr != nil {
		t.Fatalf("verify error: %v", verifyErr)
	}
	if subject != "user-123" {
		t.Fatalf("expected subject user-123, got %s", subject)
	}
}

func TestIssueRejectsEmptySubject(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, nil)
	if _, err := signer.Issue("", TokenKindAccess); err == nil {
		t.Fatalf("expected error for empty subject")
	}
	if _, err := signer.Issue("   ", TokenKindRefresh); err == nil {
		t.Fatalf("expected error for blank subject")
	}
}

func TestIssueMintsDistinctTokensAtSameInstant(t *testing.T) {
	t.Parallel()

	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	signer := newTestSigner(t, clock)

	first, firstErr := signer.Issue("user-123", TokenKindRefresh)
	second, secondErr := signer.Issue("user-123", TokenKindRefresh)
	if firstErr != nil || secondErr != nil {
		t.Fatalf("issue errors: %v %v", firstErr, secondErr)
	}
	if first == second {
		t.Fatalf("two tokens minted at the same instant must differ")
	}
	if HashRefreshToken(first) == HashRefreshToken(second) {
		t.Fatalf("expected distinct storage hashes")
	}
}

func TestVerifyEnforcesTokenKind(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, nil)

	accessToken, _ := signer.Issue("user-123", TokenKindAccess)
	refreshToken, _ := signer.Issue("user-123", TokenKindRefresh)

	if _, err := signer.Verify(accessToken, TokenKindRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected access token rejected as refresh, got %v", err)
	}
	if _, err := signer.Verify(refreshToken, TokenKindAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected refresh token rejected as access, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	clock := &controllableClock{current: time.Unix(1700000000, 0).UTC()}
	signer := newTestSigner(t, clock)

	token, _ := signer.Issue("user-123", TokenKindAccess)
	clock.Advance(DefaultAccessTokenTTL + time.Minute)

	if _, err := signer.Verify(token, TokenKindAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}
}

func TestVerifyStripsBearerPrefix(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, nil)
	token, _ := signer.Issue("user-123", TokenKindAccess)

	subject, err := signer.Verify("Bearer "+token, TokenKindAccess)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if subject != "user-123" {
		t.Fatalf("expected subject user-123, got %s", subject)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, nil)
	foreignSigner, _ := NewTokenSigner(SignerConfig{
		SigningKey: []byte("other-signing-key"),
		Issuer:     "authgate-test",
	})
	token, _ := foreignSigner.Issue("user-123", TokenKindAccess)

	if _, err := signer.Verify(token, TokenKindAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign-signed token rejected, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, nil)
	for _, raw := range []string{"", "   ", "Bearer ", "not.a.jwt", "Bearer not.a.jwt"} {
		if _, err := signer.Verify(raw, TokenKindAccess); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected %q rejected with ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestTTLPerKind(t *testing.T) {
	t.Parallel()

	signer := newTestSigner(t, nil)
	if signer.TTL(TokenKindAccess) != DefaultAccessTokenTTL {
		t.Fatalf("unexpected access TTL %v", signer.TTL(TokenKindAccess))
	}
	if signer.TTL(TokenKindRefresh) != DefaultRefreshTokenTTL {
		t.Fatalf("unexpected refresh TTL %v", signer.TTL(TokenKindRefresh))
	}
}
