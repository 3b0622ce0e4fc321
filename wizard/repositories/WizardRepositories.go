package repositories

import (
	"fmt"

	"oss-compliance-backend/db/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditRepository persists the durable audit trail of the wizard: accepted
// uploads and completed payments. The wizard's own working state lives in
// the snapshot store; these rows exist for support and bookkeeping queries
// and are written best-effort.
type AuditRepository interface {
	CreateUploadRecord(record *models.UploadRecord) error
	RecordCompletedPayment(payment *models.CompletedPayment) error
	GetCompletedPaymentBySessionID(sessionID string) (*models.CompletedPayment, error)
}

type WizardRepository struct {
	db *gorm.DB
}

func NewWizardRepository(db *gorm.DB) *WizardRepository {
	return &WizardRepository{db: db}
}

// CreateUploadRecord inserts one audit row per validation session. A replay
// of the same session id is a no-op.
func (r *WizardRepository) CreateUploadRecord(record *models.UploadRecord) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to create upload record: %w", err)
	}
	return nil
}

// RecordCompletedPayment inserts the completed-payment evidence. The unique
// session id makes a redelivered payment redirect idempotent.
func (r *WizardRepository) RecordCompletedPayment(payment *models.CompletedPayment) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(payment).Error
	if err != nil {
		return fmt.Errorf("failed to record completed payment: %w", err)
	}
	return nil
}

func (r *WizardRepository) GetCompletedPaymentBySessionID(sessionID string) (*models.CompletedPayment, error) {
	var payment models.CompletedPayment
	err := r.db.Where("session_id = ?", sessionID).First(&payment).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed payment: %w", err)
	}
	return &payment, nil
}
