// Package auth mints and verifies the signed session credentials that carry
// a user's identity through every request, and verifies federated identity
// tokens from Google.
package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned when a credential's signature is valid but its
// expiry has passed. Callers prompt a re-login.
var ErrTokenExpired = errors.New("session expired")

// ErrTokenInvalid is returned for any other verification failure: bad
// signature, malformed token, missing subject. Callers treat this as a
// security event, not a routine expiry.
var ErrTokenInvalid = errors.New("invalid session token")

// TokenIssuer mints and verifies HMAC-signed session tokens. Tokens are not
// persisted server-side; validity is determined purely by signature and
// expiry.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the lifetime of issued tokens, shared with the session cookie.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue mints a token bound to the given user id, expiring after the
// configured TTL.
func (t *TokenIssuer) Issue(userID int) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify checks signature and expiry and returns the bound user id.
// Expired and otherwise-invalid tokens fail with distinct sentinel errors.
func (t *TokenIssuer) Verify(tokenString string) (int, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}
	if !token.Valid {
		return 0, ErrTokenInvalid
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, ErrTokenInvalid
	}
	return userID, nil
}
