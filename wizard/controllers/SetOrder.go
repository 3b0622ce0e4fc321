package controllers

import (
	"oss-compliance-backend/config"
	"oss-compliance-backend/wizard/requests"
	"oss-compliance-backend/wizard/store"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetOrder records the optional add-on selection. Informational only: it
// feeds the checkout amount but never gates a step.
func (wc *WizardController) SetOrder(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req requests.OrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	price, err := req.Validate()
	if err != nil {
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

	order := store.OrderData{
		AddOnCode:   req.AddOnCode,
		Description: req.Description,
		Price:       price,
	}
	if err := st.SetOrderData(c.Context(), order); err != nil {
		config.Logger.Error("Failed to store order data", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"order": order,
			"total": wc.Service.OrderTotal(st.Snapshot()),
		},
	})
}
