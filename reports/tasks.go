package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"oss-compliance-backend/config"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeEmailReport = "report:email"

// EmailReportPayload is the asynq task payload for mailing a report. Email
// delivery runs in the background so SMTP latency or outages never block or
// break the Overview screen; asynq retries failed sends.
type EmailReportPayload struct {
	SessionID string `json:"session_id"`
	Recipient string `json:"recipient"`
}

func NewEmailReportTask(sessionID, recipient string) (*asynq.Task, error) {
	payload, err := json.Marshal(EmailReportPayload{
		SessionID: sessionID,
		Recipient: recipient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode email report payload: %w", err)
	}
	return asynq.NewTask(TypeEmailReport, payload, asynq.MaxRetry(5)), nil
}

// TaskHandler wires the report service into the asynq worker.
type TaskHandler struct {
	Service *Service
}

func NewTaskHandler(service *Service) *TaskHandler {
	return &TaskHandler{Service: service}
}

func (h *TaskHandler) HandleEmailReportTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailReportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to decode email report payload: %v: %w", err, asynq.SkipRetry)
	}

	config.Logger.Info("Processing email report task",
		zap.String("session_id", payload.SessionID),
		zap.String("recipient", payload.Recipient),
	)

	return h.Service.EmailReport(ctx, payload.SessionID, payload.Recipient)
}
