package controllers

import (
	"errors"
	"fmt"

	"oss-compliance-backend/config"
	"oss-compliance-backend/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DownloadReport streams the generated report for the paid session. Without
// a currently valid payment there is nothing to download, the same invariant
// that keeps Overview unreachable. A manual-review status from the backend
// is a legitimate alternate outcome, answered as JSON instead of a file.
func (wc *WizardController) DownloadReport(c *fiber.Ctx) error {
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

	if !st.IsPaymentValidForSession() {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "A valid payment is required to download the report",
		})
	}

	result, err := wc.Reports.Fetch(c.Context(), st.Snapshot().SessionID)
	if err != nil {
		var svcErr *validation.ServiceError
		if errors.As(err, &svcErr) {
			config.Logger.Error("Report fetch failed",
				zap.Int("status", svcErr.StatusCode),
				zap.String("message", svcErr.Message),
			)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":     svcErr.Message,
				"retryable": true,
			})
		}
		config.Logger.Error("Report fetch failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}

	if result.ManualReview != nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"data": fiber.Map{
				"status":  result.ManualReview.Status,
				"message": result.ManualReview.Message,
			},
		})
	}

	c.Set("Content-Type", result.ContentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	return c.Status(fiber.StatusOK).Send(result.Data)
}
