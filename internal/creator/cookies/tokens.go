package cookies

import (
	"time"

	"github.com/abisalde/creator-dashboard/internal/creator/model"
	"github.com/gofiber/fiber/v2"
)

const (
	IDTokenName      = "idToken"
	RefreshTokenName = "refreshToken"
	TokenRetention   = 7 * 24 * time.Hour
)

// Store persists the session tokens as script-readable, same-site cookies
// scoped to the whole application.
type Store struct {
	Secure bool
}

func NewStore(secure bool) *Store {
	return &Store{Secure: secure}
}

func (s *Store) SetTokens(c *fiber.Ctx, tokens model.Tokens) {
	expires := time.Now().Add(TokenRetention)
	for name, value := range map[string]string{
		IDTokenName:      tokens.IDToken,
		RefreshTokenName: tokens.RefreshToken,
	} {
		if value == "" {
			continue
		}
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Expires:  expires,
			MaxAge:   int(TokenRetention.Seconds()),
			Secure:   s.Secure,
			HTTPOnly: false,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}
}

func (s *Store) GetTokens(c *fiber.Ctx) model.Tokens {
	return model.Tokens{
		IDToken:      c.Cookies(IDTokenName),
		RefreshToken: c.Cookies(RefreshTokenName),
	}
}

// ClearTokens expires both cookies under each Secure variant. fasthttp keeps
// one Set-Cookie per name, so the configured variant is written last.
func (s *Store) ClearTokens(c *fiber.Ctx) {
	for _, secure := range []bool{!s.Secure, s.Secure} {
		for _, name := range []string{IDTokenName, RefreshTokenName} {
			c.Cookie(&fiber.Cookie{
				Name:     name,
				Value:    "",
				Path:     "/",
				Expires:  time.Unix(0, 0),
				MaxAge:   -1,
				Secure:   secure,
				SameSite: fiber.CookieSameSiteStrictMode,
			})
		}
	}
}
