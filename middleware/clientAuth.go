package middleware

import (
	"strings"

	"oss-compliance-backend/config"
	"oss-compliance-backend/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ClientIDKey is where the verified wizard client id lands in fiber Locals.
const ClientIDKey = "client_id"

// WizardClientRoute verifies the anonymous wizard-client token and exposes
// the client id to the handlers. There is no user identity behind it; the
// token only pins one browser tab to its own durable wizard state.
func WizardClientRoute(maker token.Maker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == "" || raw == header {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
				"error":   "Wizard client token required",
			})
		}

		payload, err := maker.VerifyToken(raw)
		if err != nil {
			config.Logger.Debug("Invalid wizard client token", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Unauthorized",
				"error":   "Invalid or expired wizard client token",
			})
		}

		c.Locals(ClientIDKey, payload.ClientID)
		return c.Next()
	}
}
