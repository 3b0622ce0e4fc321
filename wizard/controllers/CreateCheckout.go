package controllers

import (
	"errors"
	"fmt"

	"oss-compliance-backend/config"
	"oss-compliance-backend/wizard/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CreateCheckout starts the external payment round-trip. The pre-redirect
// bookkeeping is written durably before the provider is called, because the
// browser context may not survive the redirect.
func (wc *WizardController) CreateCheckout(c *fiber.Ctx) error {
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

	returnURL := fmt.Sprintf("%s/wizard?step=4&payment_success=true&session_id=%s",
		wc.BaseFrontendURL, st.Snapshot().SessionID)

	checkoutURL, err := wc.Service.CreateCheckout(c.Context(), st, returnURL)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNoFile), errors.Is(err, store.ErrEmptySessionID):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Upload and validate a file before paying",
			})
		default:
			config.Logger.Error("Checkout creation failed", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":     "Could not start the payment. Please try again.",
				"retryable": true,
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"checkout_url": checkoutURL,
			"amount":       wc.Service.OrderTotal(st.Snapshot()),
		},
	})
}
