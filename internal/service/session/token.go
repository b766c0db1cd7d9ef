package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Renew this long before the access token actually expires
const ExpirySkew = 30 * time.Second

var errNoExpiry = errors.New("access token has no exp claim")

// accessClaims is what the client may read from an access token.
// The signature is the backend's business, the client never checks it
type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// accessExpiry reads exp claim of unverified JWT
func accessExpiry(token string) (time.Time, error) {
	var claims accessClaims

	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, errNoExpiry
	}

	return exp.Time, nil
}

// needsRenewal reports whether token expires within skew of now
func needsRenewal(exp time.Time, now time.Time) bool {
	return !exp.After(now.Add(ExpirySkew))
}
