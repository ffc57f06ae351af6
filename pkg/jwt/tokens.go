package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned when the token is an opaque string rather than a JWT.
var ErrNotJWT = errors.New("token is not a jwt")

// Expiry reads the exp claim of a JWT without verifying its signature. The
// console never holds the signing secret; it only uses the claim to discard a
// stale session before the server has to reject it.
func Expiry(token string) (time.Time, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return time.Time{}, ErrNotJWT
	}
	claims := jwtlib.RegisteredClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, ErrNotJWT
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether token is a JWT whose exp claim lies before now.
// Opaque tokens and JWTs without exp never expire client-side.
func Expired(token string, now time.Time) bool {
	exp, err := Expiry(token)
	if err != nil || exp.IsZero() {
		return false
	}
	return !now.Before(exp)
}
