package controllers

import (
	"oss-compliance-backend/config"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StartWizard issues a fresh anonymous client token. Each browser tab calls
// it once and carries the token for the rest of the wizard; the id behind
// it keys the tab's durable snapshot.
func (wc *WizardController) StartWizard(c *fiber.Ctx) error {
	newClientID := uuid.New()

	tokenString, err := wc.TokenMaker.CreateToken(newClientID, clientTokenDuration)
	if err != nil {
		config.Logger.Error("Failed to create wizard client token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to start wizard",
			"error":   "An unexpected error occurred",
		})
	}

	config.Logger.Info("Wizard client started", zap.String("client_id", newClientID.String()))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"client_id": newClientID,
		"token":     tokenString,
	})
}
