package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"relm/internal/services"
)

// CookieName is the session cookie written at signin and cleared at signout.
const CookieName = "token"

const sessionLocalsKey = "session"

// CookieManager writes and clears the session cookie with attributes that
// match the deployment: Secure + SameSite=None in production (cross-site
// SPA), Lax in development so plain-http localhost works.
type CookieManager struct {
	Production bool
}

// Set writes the session cookie with a max-age matching the token's expiry.
func (m CookieManager) Set(c *fiber.Ctx, token string, maxAge time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HTTPOnly: true,
		Secure:   m.Production,
		SameSite: m.sameSite(),
	})
}

// Clear expires the session cookie. Safe to call with no cookie present.
func (m CookieManager) Clear(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    "",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   m.Production,
		SameSite: m.sameSite(),
	})
}

func (m CookieManager) sameSite() string {
	if m.Production {
		return fiber.CookieSameSiteNoneMode
	}
	return fiber.CookieSameSiteLaxMode
}

// SessionRequired gates protected routes on a valid session cookie. A missing
// cookie is rejected outright; a present but invalid or expired one is
// cleared before rejecting, so stale clients self-heal on their next request.
// Valid claims are attached to the request context for downstream handlers.
func SessionRequired(tokens *services.TokenService, cookies CookieManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(CookieName)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Please sign in or continue as guest",
			})
		}

		claims, err := tokens.Verify(tokenString)
		if err != nil {
			cookies.Clear(c)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Please sign in or continue as guest",
			})
		}

		c.Locals(sessionLocalsKey, claims)
		return c.Next()
	}
}

// Session returns the claims attached by SessionRequired, or nil on
// unprotected routes.
func Session(c *fiber.Ctx) *services.SessionClaims {
	claims, _ := c.Locals(sessionLocalsKey).(*services.SessionClaims)
	return claims
}
