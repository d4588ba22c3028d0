package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnreadableToken = errors.New("token is not a readable JWT")

// Claims are the id-token fields the dashboard reads. The signature is
// checked by the backend function service, never here.
type Claims struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone_number"`
	jwt.RegisteredClaims
}

// UID prefers the explicit user_id claim and falls back to sub.
func (c *Claims) UID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

func ParseUnverified(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrUnreadableToken
	}
	return claims, nil
}

func GetTokenRemainingTTL(tokenString string) time.Duration {
	claims, err := ParseUnverified(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	return time.Until(claims.ExpiresAt.Time)
}

// IsExpired is true only for a readable JWT whose exp is in the past.
// Opaque tokens are never reported as expired.
func IsExpired(tokenString string, now time.Time) bool {
	claims, err := ParseUnverified(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

func UIDFromToken(tokenString string) string {
	claims, err := ParseUnverified(tokenString)
	if err != nil {
		return ""
	}
	return claims.UID()
}
