package controllers

import (
	"fmt"
	"strings"

	"oss-compliance-backend/config"
	"oss-compliance-backend/utils"
	"oss-compliance-backend/wizard/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

var allowedUploadMimeTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// UploadFile accepts the transaction file that drives the whole wizard.
// Starting a new upload is always a full reset: file, session and payment
// are cleared atomically before the new file is stored, so a stale payment
// can never leak onto an unrelated file.
func (wc *WizardController) UploadFile(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}

	if fileHeader.Size > maxUploadSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "File exceeds the maximum allowed size (50MB)",
		})
	}

	mimeType := strings.ToLower(strings.TrimSpace(fileHeader.Header.Get("Content-Type")))
	if !allowedUploadMimeTypes[mimeType] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Unsupported file type: %s", mimeType),
		})
	}

	// Local header sanity check before anything touches the network.
	precheck, err := fileHeader.Open()
	if err != nil {
		config.Logger.Error("Failed to open upload for pre-check", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}
	headers, headerErr := utils.ReadHeaderRow(precheck, mimeType)
	precheck.Close()
	if headerErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "The file has no readable header row. Export your transactions with column headers and try again.",
		})
	}

	st, err := wc.Service.LoadStore(c.Context(), id)
	if err != nil {
		config.Logger.Error("Failed to load wizard store", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}

	if err := st.ResetForNewFile(c.Context()); err != nil {
		config.Logger.Error("Failed to reset wizard state", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		config.Logger.Error("Failed to open upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}
	defer src.Close()

	storageName := fmt.Sprintf("%s_%s", uuid.NewString()[0:8], utils.CleanStringForFilename(fileHeader.Filename))
	storagePath, err := wc.Service.Storage.UploadFile(src, storageName)
	if err != nil {
		config.Logger.Error("Failed to store upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store the uploaded file",
		})
	}

	fileRef := store.UploadedFileRef{
		Name:            fileHeader.Filename,
		Size:            fileHeader.Size,
		MimeType:        mimeType,
		StoragePath:     storagePath,
		BinaryAvailable: true,
	}
	if err := st.SetUploadedFile(c.Context(), fileRef); err != nil {
		config.Logger.Error("Failed to record uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "An unexpected error occurred",
		})
	}

	config.Logger.Info("File uploaded",
		zap.String("client_id", id.String()),
		zap.String("file_name", fileHeader.Filename),
		zap.Int64("size", fileHeader.Size),
		zap.Int("header_columns", len(headers)),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": wc.snapshotView(st.Snapshot(), st.IsPaymentValidForSession()),
	})
}
