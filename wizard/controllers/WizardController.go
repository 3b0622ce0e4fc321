package controllers

import (
	"errors"
	"time"

	"oss-compliance-backend/reports"
	"oss-compliance-backend/token"
	"oss-compliance-backend/wizard/services"
	"oss-compliance-backend/wizard/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// clientTokenDuration is how long a wizard client token stays usable. It
// only pins a browser tab to its own state, so it outlives the payment
// validity window comfortably.
const clientTokenDuration = 7 * 24 * time.Hour

type WizardController struct {
	Service         *services.WizardService
	Reports         *reports.Service
	AsynqClient     *asynq.Client
	TokenMaker      token.Maker
	BaseFrontendURL string
}

// clientID extracts the verified wizard client id placed by the middleware.
func clientID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := c.Locals("client_id").(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, errors.New("missing wizard client id")
	}
	return id, nil
}

// snapshotView is the JSON shape of the store state handed to the UI. The
// raw binary never travels; only enough metadata to render the wizard.
func (wc *WizardController) snapshotView(snap *store.Snapshot, paymentValid bool) fiber.Map {
	view := fiber.Map{
		"session_id":    snap.SessionID,
		"payment_valid": paymentValid,
	}
	if snap.File != nil {
		view["file"] = fiber.Map{
			"name":             snap.File.Name,
			"size":             snap.File.Size,
			"mime_type":        snap.File.MimeType,
			"binary_available": snap.File.BinaryAvailable,
		}
	}
	if snap.Order != nil {
		view["order"] = snap.Order
	}
	return view
}
