package controllers

import (
	"oss-compliance-backend/config"
	"oss-compliance-backend/wizard/engine"
	"oss-compliance-backend/wizard/requests"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Navigate handles user-initiated transitions (Next, Previous, clicking a
// step indicator). The Correction screen's all-issues-resolved gate is the
// caller's claim; the engine itself only re-enforces the gates that must
// survive arbitrary external navigation, which is why every accepted intent
// still runs through reconciliation before a step is returned.
func (wc *WizardController) Navigate(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req requests.NavigateRequest
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

	current := engine.Step(req.CurrentStep)
	now := wc.Service.Now()

	var target engine.Step
	switch req.Action {
	case "next":
		if !wc.Service.Engine.CanAdvance(current) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Cannot advance past the last step",
			})
		}
		if current == engine.StepCorrection && !req.IssuesResolved {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "All validation issues must be resolved before continuing",
			})
		}
		target = current + 1
	case "previous":
		if !wc.Service.Engine.CanGoBack(current) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Cannot go back from the first step",
			})
		}
		target = current - 1
	case "jump":
		target = engine.Step(req.TargetStep)
		if !wc.Service.Engine.CanJumpTo(current, target, st.Snapshot(), now) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "That step is not reachable yet",
			})
		}
	}

	// The intent passed its local gate; reconciliation still owns the
	// final word (no file, expired payment, etc.).
	res := wc.Service.Engine.Reconcile(engine.ExternalState{RequestedStep: int(target)}, st.Snapshot(), now)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"step":              int(res.Step),
			"step_name":         res.Step.String(),
			"rewrite_indicator": res.RewriteIndicator,
		},
	})
}
