// ABOUTME: JWT token verification for authenticating API callers
// ABOUTME: Uses HS256 signing with a configurable secret; the subject claim is the principal

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the minimum accepted HS256 secret size in bytes.
const MinSecretLength = 32

// Issuer is stamped into every generated token and required on verification.
const Issuer = "ledger-gateway"

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWeakSecret   = errors.New("jwt secret too short")
)

// TokenVerifier defines the interface for token verification
type TokenVerifier interface {
	Verify(tokenString string) (principalID string, err error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier creates a new JWT verifier with the given secret.
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrWeakSecret, MinSecretLength, len(secret))
	}
	return &JWTVerifier{secret: secret, now: time.Now}, nil
}

// Verify validates the token and extracts the principal ID from the "sub" claim
func (v *JWTVerifier) Verify(tokenString string) (principalID string, err error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(v.now),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return claims.Subject, nil
}

// Generate creates a new JWT token for the given principal ID with expiration.
// A zero expiresIn yields a token without an exp claim.
func (v *JWTVerifier) Generate(principalID string, expiresIn time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:  principalID,
		Issuer:   Issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if expiresIn > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiresIn))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
