package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/andressep95/verification-service/internal/service"
	"github.com/andressep95/verification-service/pkg/validator"
)

// APIClientHandler serves operator endpoints for integrators and their
// webhook history.
type APIClientHandler struct {
	clients    *service.APIClientService
	dispatcher *service.WebhookDispatcher
	validator  *validator.Validator
}

func NewAPIClientHandler(clients *service.APIClientService, dispatcher *service.WebhookDispatcher, validator *validator.Validator) *APIClientHandler {
	return &APIClientHandler{
		clients:    clients,
		dispatcher: dispatcher,
		validator:  validator,
	}
}

// CreateClient registers an integrator and returns its API key once
// POST /api/v1/identity/admin/api-clients
func (h *APIClientHandler) CreateClient(c *fiber.Ctx) error {
	var req service.CreateAPIClientInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Validate(req); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	client, key, err := h.clients.CreateClient(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, fiber.StatusCreated, fiber.Map{
		"client": client,
		"apiKey": key,
	})
}

// GET /api/v1/identity/admin/api-clients
func (h *APIClientHandler) ListClients(c *fiber.Ctx) error {
	clients, err := h.clients.ListClients(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"clients": clients,
		"count":   len(clients),
	})
}

// DELETE /api/v1/identity/admin/api-clients/:id
func (h *APIClientHandler) DeactivateClient(c *fiber.Ctx) error {
	if err := h.clients.DeactivateClient(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"id":     c.Params("id"),
		"active": false,
	})
}

// GET /api/v1/identity/admin/sessions/:sessionId/webhooks
func (h *APIClientHandler) ListWebhookDeliveries(c *fiber.Ctx) error {
	deliveries, err := h.dispatcher.Deliveries(c.UserContext(), c.Params("sessionId"))
	if err != nil {
		return respondError(c, err)
	}
	return respond(c, fiber.StatusOK, fiber.Map{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}
