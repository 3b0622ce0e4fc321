package main

import (
	"context"
	"time"

	config "oss-compliance-backend/config"
	"oss-compliance-backend/token"
	"oss-compliance-backend/utils"

	"oss-compliance-backend/middleware"

	// Core wizard components
	"oss-compliance-backend/wizard/engine"
	wizard_repositories "oss-compliance-backend/wizard/repositories"
	wizard_routes "oss-compliance-backend/wizard/routes"
	wizard_services "oss-compliance-backend/wizard/services"
	"oss-compliance-backend/wizard/store"

	// External collaborators
	"oss-compliance-backend/payments"
	"oss-compliance-backend/validation"

	// Reports
	"oss-compliance-backend/reports"

	// Other imports
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	// Initialize Zap logger
	config.InitLogger()

	// Load environment variables
	err := godotenv.Load(".env")
	if err != nil {
		config.Logger.Fatal("Error loading .env file", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024 * 1024, // uploads up to 50MB plus multipart overhead
	})

	// Apply CORS middleware from middleware package
	middleware.InitCors(app)

	// Initialize database and configs
	db := config.ConfigureDatabase()
	port := config.GetEnvDefault("PORT", "8080")
	ctx := context.Background()

	// Redis client for snapshots and Asynq
	redisAddr := config.GetEnv("REDIS_ADDRESS")
	if redisAddr == "" {
		redisAddr = "localhost:6379" // Default for development
		config.Logger.Warn("REDIS_ADDRESS not set, using default: localhost:6379")
	}

	redisClient := config.InitRedisServer(ctx)

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: config.GetEnv("REDIS_PASSWORD"),
		DB:       0,
	}

	asynqClient := asynq.NewClient(asynqRedisOpt)
	defer asynqClient.Close()

	tokenKey := config.GetEnv("TOKEN_SYMMETRIC_KEY")
	tokenMaker, err := token.NewPasetoMaker(tokenKey)
	if err != nil {
		config.Logger.Fatal("Cannot create token maker", zap.Error(err))
	}

	baseFrontendURL := config.GetEnv("BASE_FRONTEND_URL")
	if baseFrontendURL == "" {
		baseFrontendURL = "http://localhost:5173" // Default frontend URL
		config.Logger.Warn("BASE_FRONTEND_URL not set, using default", zap.String("url", baseFrontendURL))
	}

	validationBackendURL := config.GetEnv("VALIDATION_BACKEND_URL")
	if validationBackendURL == "" {
		validationBackendURL = "http://localhost:8000"
		config.Logger.Warn("VALIDATION_BACKEND_URL not set, using default", zap.String("url", validationBackendURL))
	}

	paymentProviderURL := config.GetEnv("PAYMENT_PROVIDER_URL")
	if paymentProviderURL == "" {
		paymentProviderURL = "http://localhost:9000"
		config.Logger.Warn("PAYMENT_PROVIDER_URL not set, using default", zap.String("url", paymentProviderURL))
	}

	// Initialize the mailer
	utils.InitializeMailer()

	// Payment validity window: how long a completed payment keeps Overview
	// reachable before the session must be paid again.
	validityWindow := config.GetEnvDuration("PAYMENT_VALIDITY_WINDOW", 24*time.Hour)

	basePrice, err := decimal.NewFromString(config.GetEnvDefault("OSS_REPORT_PRICE", "49.00"))
	if err != nil {
		config.Logger.Fatal("Invalid OSS_REPORT_PRICE", zap.Error(err))
	}

	// Core wizard components
	fileStorage := utils.NewLocalFileStorage("./uploads")
	snapshotPersister := store.NewRedisPersister(redisClient)
	navigationEngine := engine.New(validityWindow)
	validationClient := validation.NewClient(validationBackendURL)
	paymentClient := payments.NewClient(paymentProviderURL, config.GetEnv("PAYMENT_PROVIDER_API_KEY"))
	auditRepo := wizard_repositories.NewWizardRepository(db)

	wizardService := wizard_services.NewWizardService(
		navigationEngine,
		snapshotPersister,
		fileStorage,
		validationClient,
		paymentClient,
		auditRepo,
		validityWindow,
		basePrice,
	)

	reportService := reports.NewService(validationClient)

	// Routes
	wizard_routes.WizardRouterInit(app, wizardService, reportService, asynqClient, tokenMaker, baseFrontendURL)

	// Asynq worker for background report emails
	asynqServer := asynq.NewServer(asynqRedisOpt, asynq.Config{
		Concurrency: 5,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(reports.TypeEmailReport, reports.NewTaskHandler(reportService).HandleEmailReportTask)
	go func() {
		if err := asynqServer.Run(mux); err != nil {
			config.Logger.Fatal("Asynq worker failed", zap.Error(err))
		}
	}()

	// Background cleanup tasks
	go utils.RunScheduledCleanup(fileStorage.UploadPath(), redisClient)

	// Start the application
	config.Logger.Info("Server starting", zap.String("port", port))
	config.Logger.Fatal("Server failed", zap.String("port", port), zap.Error(app.Listen(":"+port)))
}
