package router

import (
	"time"

	"oss-compliance-backend/middleware"
	"oss-compliance-backend/reports"
	"oss-compliance-backend/token"
	wizard_controllers "oss-compliance-backend/wizard/controllers"
	"oss-compliance-backend/wizard/services"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
)

func WizardRouterInit(app *fiber.App,
	wizardService *services.WizardService,
	reportService *reports.Service,
	asynqClient *asynq.Client,
	tokenMaker token.Maker,
	baseFrontendURL string,
) {
	wizardController := &wizard_controllers.WizardController{
		Service:         wizardService,
		Reports:         reportService,
		AsynqClient:     asynqClient,
		TokenMaker:      tokenMaker,
		BaseFrontendURL: baseFrontendURL,
	}

	clientAuth := middleware.WizardClientRoute(tokenMaker)
	uploadLimit := middleware.UploadRateLimit(10*time.Second, 6)

	app.Post("/api/v1/wizard/start", wizardController.StartWizard)
	app.Post("/api/v1/wizard/upload", clientAuth, uploadLimit, wizardController.UploadFile)
	app.Post("/api/v1/wizard/validate", clientAuth, uploadLimit, wizardController.ValidateFile)
	app.Get("/api/v1/wizard/state", clientAuth, wizardController.ResolveState)
	app.Post("/api/v1/wizard/navigate", clientAuth, wizardController.Navigate)
	app.Post("/api/v1/wizard/order", clientAuth, wizardController.SetOrder)
	app.Post("/api/v1/wizard/checkout", clientAuth, wizardController.CreateCheckout)
	app.Post("/api/v1/wizard/report/download", clientAuth, wizardController.DownloadReport)
	app.Post("/api/v1/wizard/report/email", clientAuth, wizardController.EmailReport)
}
