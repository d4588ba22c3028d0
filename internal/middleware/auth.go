package middleware

import (
	"strings"

	apierrors "github.com/abisalde/creator-dashboard/internal/creator/errors"
	"github.com/gofiber/fiber/v2"
)

type localsKey string

const bearerTokenKey = localsKey("bearerToken")

// RequireBearer resolves the credential for an authenticated proxy route:
// the Authorization bearer token first, then the named cookie. A request
// carrying neither is rejected with missing.
func RequireBearer(cookieName string, missing *apierrors.APIError) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := stripToken(c, cookieName)
		if token == "" {
			return missing
		}
		c.Locals(bearerTokenKey, token)
		return c.Next()
	}
}

// BearerToken returns the credential stored by RequireBearer.
func BearerToken(c *fiber.Ctx) string {
	token, _ := c.Locals(bearerTokenKey).(string)
	return token
}

func stripToken(c *fiber.Ctx, cookieName string) string {
	authHeader := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	return c.Cookies(cookieName)
}
