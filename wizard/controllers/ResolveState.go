package controllers

import (
	"oss-compliance-backend/config"
	"oss-compliance-backend/wizard/engine"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ResolveState is the reconciliation endpoint. The client calls it on every
// load and whenever its step parameter changes, handing over what the URL
// claims; the response is the authoritative step, which the client must
// write back into the URL when rewrite_indicator is set. It also absorbs
// the payment-provider return redirect (payment_success + session_id)
// idempotently.
func (wc *WizardController) ResolveState(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	ext := engine.ExternalState{
		RequestedStep:    c.QueryInt("step", 1),
		PaymentSuccess:   c.QueryBool("payment_success", false),
		PaymentSessionID: c.Query("session_id"),
	}

	res, snap, err := wc.Service.ResolveState(c.Context(), id, ext)
	if err != nil {
		config.Logger.Error("State reconciliation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}

	paymentValid := snap.PaymentValidAt(wc.Service.Now(), wc.Service.ValidityWindow)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"step":              int(res.Step),
			"step_name":         res.Step.String(),
			"rewrite_indicator": res.RewriteIndicator,
			"state":             wc.snapshotView(snap, paymentValid),
		},
	})
}
