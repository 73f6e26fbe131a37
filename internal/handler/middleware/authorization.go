package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

const HeaderAdminToken = "X-Admin-Token"

// RequireAdminToken guards operator routes with a shared secret. An empty
// configured token disables those routes entirely.
func RequireAdminToken(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" {
			return deny(c, fiber.StatusForbidden, "admin API is disabled")
		}
		given := c.Get(HeaderAdminToken)
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			return deny(c, fiber.StatusUnauthorized, "invalid admin token")
		}
		return c.Next()
	}
}
