package controllers

import (
	"oss-compliance-backend/config"
	"oss-compliance-backend/reports"
	"oss-compliance-backend/wizard/requests"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// EmailReport queues the report for email delivery. The address is checked
// inline before anything is enqueued; the send itself happens on the worker
// so SMTP hiccups never surface here.
func (wc *WizardController) EmailReport(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req requests.EmailReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
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
			"error": "A valid payment is required to email the report",
		})
	}

	task, err := reports.NewEmailReportTask(st.Snapshot().SessionID, req.Email)
	if err != nil {
		config.Logger.Error("Failed to build email report task", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}

	if _, err := wc.AsynqClient.EnqueueContext(c.Context(), task); err != nil {
		config.Logger.Error("Failed to enqueue email report task", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":     "Could not queue the report email. Please try again.",
			"retryable": true,
		})
	}

	config.Logger.Info("Email report task queued",
		zap.String("session_id", st.Snapshot().SessionID),
		zap.String("recipient", req.Email),
	)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{
			"message": "The report will be emailed shortly",
		},
	})
}
