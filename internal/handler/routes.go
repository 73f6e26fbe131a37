package handler

import (
	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(
	app *fiber.App,
	verificationHandler *VerificationHandler,
	apiClientHandler *APIClientHandler,
	healthHandler *HealthHandler,
	jwksHandler *JWKSHandler,
	apiKeyAuth fiber.Handler,
	sessionAuth fiber.Handler,
	requireAdmin fiber.Handler,
) {
	// Health checks (public)
	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)
	app.Get("/.well-known/jwks.json", jwksHandler.GetJWKS)

	identity := app.Group("/api/v1/identity")

	// Integrator (API key)
	identity.Post("/create-session", apiKeyAuth, verificationHandler.CreateSession)

	// End user (session bearer token bound to :sessionId)
	identity.Get("/session/:sessionId", sessionAuth, verificationHandler.GetSession)
	identity.Post("/upload-document/:sessionId", sessionAuth, verificationHandler.UploadDocument)
	identity.Post("/upload-selfie/:sessionId", sessionAuth, verificationHandler.UploadSelfie)
	identity.Post("/submit-nfc/:sessionId", sessionAuth, verificationHandler.SubmitNFC)
	identity.Post("/complete-verification/:sessionId", sessionAuth, verificationHandler.CompleteVerification)

	// Operator (admin token)
	identity.Post("/update-session/:sessionId", requireAdmin, verificationHandler.UpdateSession)

	admin := identity.Group("/admin", requireAdmin)
	admin.Post("/api-clients", apiClientHandler.CreateClient)
	admin.Get("/api-clients", apiClientHandler.ListClients)
	admin.Delete("/api-clients/:id", apiClientHandler.DeactivateClient)
	admin.Get("/sessions/:sessionId/webhooks", apiClientHandler.ListWebhookDeliveries)
}
