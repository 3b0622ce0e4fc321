package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"oss-compliance-backend/config"
	"oss-compliance-backend/utils"
	"oss-compliance-backend/validation"

	"go.uber.org/zap"
)

// Fetcher is the slice of the validation backend the report flow needs.
type Fetcher interface {
	FetchReport(ctx context.Context, sessionID string) (*validation.ReportResult, error)
}

// Service delivers finished reports: streamed back to the browser or sent
// by email. Manual review is not an error; it routes to a notification
// instead of a download.
type Service struct {
	fetcher Fetcher
	tempDir string
}

func NewService(fetcher Fetcher) *Service {
	return &Service{
		fetcher: fetcher,
		tempDir: os.TempDir(),
	}
}

// Fetch retrieves the report (or its manual-review status) for a session.
func (s *Service) Fetch(ctx context.Context, sessionID string) (*validation.ReportResult, error) {
	return s.fetcher.FetchReport(ctx, sessionID)
}

// EmailReport fetches the report and mails it as an attachment. When the
// backend answers with a manual-review status, the recipient gets the
// manual-review notification instead.
func (s *Service) EmailReport(ctx context.Context, sessionID, recipient string) error {
	result, err := s.fetcher.FetchReport(ctx, sessionID)
	if err != nil {
		return err
	}

	if result.ManualReview != nil {
		config.Logger.Info("Report in manual review, notifying recipient",
			zap.String("session_id", sessionID),
			zap.String("status", result.ManualReview.Status),
		)
		return utils.SendManualReviewEmail(recipient)
	}

	attachmentPath := filepath.Join(s.tempDir, fmt.Sprintf("report-%s-%s", sessionID, utils.CleanStringForFilename(result.FileName)))
	if err := os.WriteFile(attachmentPath, result.Data, 0600); err != nil {
		return fmt.Errorf("failed to stage report attachment: %w", err)
	}
	defer os.Remove(attachmentPath)

	return utils.SendReportEmail(recipient, result.FileName, attachmentPath)
}
