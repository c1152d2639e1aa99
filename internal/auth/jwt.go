// Package auth provides JWT session tokens, the Google sign-in provider,
// and the middleware that guards API routes.
//
// SESSION MODEL:
// After a successful Google sign-in the server issues a JWT access token
// that the client sends as a Bearer header on every API call. JWTs are
// stateless — the signature over the claims is all the server needs to
// trust them, no session store required.
//
// SECRET SEPARATION:
// The JWT signing secret and the wallet master secret are different secrets
// with different blast radii. The JWT secret signs session tokens; the
// wallet secret derives private keys. This package only ever holds the JWT
// secret — reusing one secret for both would mean a leaked session-signing
// key also leaks every custodial wallet.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "clubchain"

// SessionDuration is how long an issued session token stays valid. Sized to
// avoid mid-week re-login friction; the token carries no privileges beyond
// identifying the user.
const SessionDuration = 7 * 24 * time.Hour

// TokenService handles JWT creation and validation. It holds the HMAC
// secret used to sign and verify tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds jwt.RegisteredClaims; the internal user ID travels in the
// standard "sub" claim as a decimal string.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a session token for the given user ID.
func (s *TokenService) Generate(userID int64) (string, error) {
	return s.GenerateWithDuration(userID, SessionDuration)
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests
// to exercise expiry behaviour without sleeping for a week.
func (s *TokenService) GenerateWithDuration(userID int64, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string, returning the user ID from the
// subject claim.
//
// Restricting the algorithm to HS256 via WithValidMethods blocks algorithm
// confusion attacks; issuer and expiry checks are enforced by the library.
func (s *TokenService) Validate(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("auth: token expired")
		}
		return 0, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("auth: token subject is not a valid user ID")
	}

	return userID, nil
}
