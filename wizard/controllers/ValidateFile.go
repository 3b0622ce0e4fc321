package controllers

import (
	"errors"

	"oss-compliance-backend/config"
	"oss-compliance-backend/validation"
	"oss-compliance-backend/wizard/services"
	"oss-compliance-backend/wizard/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ValidateFile submits the active upload to the validation backend and
// returns the normalized issue list the Correction screen renders. A
// backend failure is retryable and never advances the wizard; a zero-issue
// result is a pass, not an error.
func (wc *WizardController) ValidateFile(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	st, err := wc.Service.LoadStore(c.Context(), id)
	if err != nil {
		config.Logger.Error("Failed to load wizard store", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}

	issues, result, err := wc.Service.ValidateActiveFile(c.Context(), st)
	if err != nil {
		var svcErr *validation.ServiceError
		switch {
		case errors.Is(err, store.ErrNoFile):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "No file has been uploaded yet",
			})
		case errors.Is(err, store.ErrBinaryUnavailable):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":           store.ErrBinaryUnavailable.Error(),
				"reupload_needed": true,
			})
		case errors.Is(err, services.ErrStaleValidation):
			// The active file changed while the request was in flight;
			// the result belongs to a file nobody is looking at anymore.
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "The uploaded file changed during validation. Please validate again.",
			})
		case errors.As(err, &svcErr):
			config.Logger.Error("Validation service failure",
				zap.Int("status", svcErr.StatusCode),
				zap.String("message", svcErr.Message),
			)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":     svcErr.Message,
				"retryable": true,
			})
		default:
			config.Logger.Error("Validation failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "An unexpected error occurred",
			})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"session_id":   result.SessionID,
			"has_issues":   len(issues) > 0,
			"all_resolved": validation.AllResolved(issues),
			"issues":       issues,
		},
	})
}
