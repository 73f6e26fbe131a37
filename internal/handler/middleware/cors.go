package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORSMiddleware configures and returns CORS middleware
func CORSMiddleware(allowOrigins string) fiber.Handler {
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: "GET,POST,DELETE",
		AllowHeaders: "Content-Type,Authorization," + HeaderAdminToken,
		// credentials cannot be combined with a wildcard origin
		AllowCredentials: allowOrigins != "*",
	})
}
