package middleware

import (
	"strings"

	"github.com/abisalde/creator-dashboard/internal/creator/cookies"
	"github.com/gofiber/fiber/v2"
)

const (
	LoginRoute     = "/login"
	DashboardRoute = "/app/dashboard"
)

var (
	publicRoutes = map[string]struct{}{
		"/":       {},
		"/login":  {},
		"/signup": {},
		"/health": {},
	}
	publicPrefixes = []string{"/api/"}

	// publicOnlyRoutes send signed-in visitors on to the dashboard.
	publicOnlyRoutes = map[string]struct{}{
		"/":       {},
		"/login":  {},
		"/signup": {},
	}
)

func normalizeRoute(path string) string {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

func IsPublicRoute(path string) bool {
	path = normalizeRoute(path)
	if _, ok := publicRoutes[path]; ok {
		return true
	}
	if path == "/api" {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RouteGate redirects anonymous visitors to the login page and signed-in
// visitors away from the public-only pages. A visitor counts as signed in
// when either token cookie is present; the tokens themselves are checked
// later by the session bootstrap.
func RouteGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := normalizeRoute(c.Path())
		authenticated := c.Cookies(cookies.IDTokenName) != "" || c.Cookies(cookies.RefreshTokenName) != ""

		if authenticated {
			if _, ok := publicOnlyRoutes[path]; ok {
				return c.Redirect(DashboardRoute, fiber.StatusFound)
			}
			return c.Next()
		}

		if !IsPublicRoute(path) {
			return c.Redirect(LoginRoute, fiber.StatusFound)
		}
		return c.Next()
	}
}
