package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/andressep95/verification-service/internal/domain"
)

func respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// respondError maps service errors onto the HTTP taxonomy. Anything
// unrecognized is logged and reported as a generic 500.
func respondError(c *fiber.Ctx, err error) error {
	var (
		incomplete *domain.IncompleteError
		invalid    *domain.ValidationError
	)

	switch {
	case errors.As(err, &incomplete):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   incomplete.Error(),
			"missing": incomplete.Missing,
		})
	case errors.As(err, &invalid):
		return fail(c, fiber.StatusBadRequest, invalid.Message)
	case errors.Is(err, domain.ErrSessionNotFound):
		return fail(c, fiber.StatusNotFound, "verification session not found")
	case errors.Is(err, domain.ErrAPIClientNotFound):
		return fail(c, fiber.StatusNotFound, "api client not found")
	case errors.Is(err, domain.ErrSessionMismatch), errors.Is(err, domain.ErrNotSessionOwner):
		return fail(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrSessionFinalized), errors.Is(err, domain.ErrInvalidTransition):
		return fail(c, fiber.StatusBadRequest, errors.Cause(err).Error())
	case errors.Is(err, domain.ErrInvalidAPIKey), errors.Is(err, domain.ErrAPIClientInactive):
		return fail(c, fiber.StatusUnauthorized, "invalid API key")
	}

	log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}
