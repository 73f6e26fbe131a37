package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/andressep95/verification-service/internal/domain"
)

const (
	LocalAPIClient = "api_client"
	LocalPrincipal = "principal"
	LocalClaims    = "claims"
)

// APIKeyAuthenticator resolves an API key to its client.
type APIKeyAuthenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*domain.APIClient, error)
}

// TokenValidator checks a session bearer token.
type TokenValidator interface {
	ValidateToken(token string) (*domain.Claims, error)
}

// APIKeyMiddleware authenticates integrators: Authorization: Bearer <api key>.
func APIKeyMiddleware(auth APIKeyAuthenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key, ok := bearer(c)
		if !ok {
			return deny(c, fiber.StatusUnauthorized, "API key not provided. Use 'Authorization: Bearer YOUR_API_KEY'")
		}

		client, err := auth.Authenticate(c.UserContext(), key)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidAPIKey) || errors.Is(err, domain.ErrAPIClientInactive) {
				return deny(c, fiber.StatusUnauthorized, "invalid API key")
			}
			log.Error().Err(err).Msg("api key authentication failed")
			return deny(c, fiber.StatusInternalServerError, "failed to verify API key")
		}

		c.Locals(LocalAPIClient, client)
		return c.Next()
	}
}

// SessionTokenMiddleware authenticates per-session calls and enforces that
// the token was issued for the :sessionId in the path.
func SessionTokenMiddleware(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearer(c)
		if !ok {
			return deny(c, fiber.StatusUnauthorized, "token not provided. Use 'Authorization: Bearer YOUR_TOKEN'")
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			return deny(c, fiber.StatusUnauthorized, "invalid or expired token")
		}

		if sessionID := c.Params("sessionId"); sessionID != "" && sessionID != claims.SessionID {
			return deny(c, fiber.StatusForbidden, domain.ErrSessionMismatch.Error())
		}

		c.Locals(LocalClaims, claims)
		c.Locals(LocalPrincipal, domain.Principal{
			SessionID:   claims.SessionID,
			APIKeyOwner: claims.APIKeyOwner,
		})
		return c.Next()
	}
}

func bearer(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func deny(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}
