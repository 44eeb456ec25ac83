// ABOUTME: Unit tests for JWT token verification, generation, and the caching verifier
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens, weak secrets, and cache hits

package auth

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-for-jwt-signing!")

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	verifier, err := NewJWTVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewJWTVerifier() error = %v", err)
	}
	return verifier
}

func TestNewJWTVerifier_WeakSecret(t *testing.T) {
	_, err := NewJWTVerifier([]byte("short"))
	if !errors.Is(err, ErrWeakSecret) {
		t.Errorf("NewJWTVerifier() error = %v, want ErrWeakSecret", err)
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	principalID := "principal-123"
	token, err := verifier.Generate(principalID, time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	gotID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if gotID != principalID {
		t.Errorf("Verify() = %q, want %q", gotID, principalID)
	}
}

func TestJWTVerifier_NoExpiry(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate("service", 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := verifier.Verify(token); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := newTestVerifier(t)

	otherSecret := []byte("a-completely-different-secret-32")
	other, err := NewJWTVerifier(otherSecret)
	if err != nil {
		t.Fatal(err)
	}
	wrongSecret, _ := other.Generate("principal-123", time.Hour)

	foreignIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "principal-123",
		Issuer:  "someone-else",
	}).SignedString(testSecret)

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer: Issuer,
	}).SignedString(testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{name: "wrong secret", token: wrongSecret},
		{name: "foreign issuer", token: foreignIssuer},
		{name: "missing subject", token: noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			if err == nil {
				t.Fatal("Verify() should have returned an error")
			}
			if !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrMissingClaim) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken or ErrMissingClaim", err)
			}
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := newTestVerifier(t)

	token, err := verifier.Generate("principal-123", time.Hour)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	verifier.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

// countingVerifier counts delegated calls.
type countingVerifier struct {
	calls atomic.Int32
	err   error
}

func (c *countingVerifier) Verify(token string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return "principal-for-" + token, nil
}

func TestCachingVerifier_CachesSuccess(t *testing.T) {
	inner := &countingVerifier{}
	cv, err := NewCachingVerifier(inner, 100, time.Minute)
	if err != nil {
		t.Fatalf("NewCachingVerifier() error = %v", err)
	}
	defer cv.Close()

	got, err := cv.Verify("abc")
	if err != nil || got != "principal-for-abc" {
		t.Fatalf("Verify() = %q, %v", got, err)
	}

	// Ristretto applies sets asynchronously.
	cv.cache.Wait()

	got, err = cv.Verify("abc")
	if err != nil || got != "principal-for-abc" {
		t.Fatalf("Verify() = %q, %v", got, err)
	}
	if n := inner.calls.Load(); n != 1 {
		t.Errorf("inner verifier called %d times, want 1", n)
	}
}

func TestCachingVerifier_DoesNotCacheFailure(t *testing.T) {
	inner := &countingVerifier{err: ErrInvalidToken}
	cv, err := NewCachingVerifier(inner, 100, time.Minute)
	if err != nil {
		t.Fatalf("NewCachingVerifier() error = %v", err)
	}
	defer cv.Close()

	for i := 0; i < 2; i++ {
		if _, err := cv.Verify("bad"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify() error = %v, want ErrInvalidToken", err)
		}
		cv.cache.Wait()
	}
	if n := inner.calls.Load(); n != 2 {
		t.Errorf("inner verifier called %d times, want 2", n)
	}
}
