package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//
// WIZARD AUDIT MODELS
//

// UploadRecord captures one accepted upload and the validation session the
// backend issued for it. One row per session; re-uploads produce new rows.
type UploadRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	ClientID  uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	SessionID string    `gorm:"uniqueIndex;not null" json:"session_id"`

	FileName string `gorm:"not null" json:"file_name"`
	FileSize int64  `gorm:"not null" json:"file_size"`
	MimeType string `gorm:"type:varchar(100)" json:"mime_type"`
	FileHash string `gorm:"index" json:"file_hash"`

	// Issue counts at validation time, for support queries
	IssueCount   int            `gorm:"default:0" json:"issue_count"`
	IssueSummary datatypes.JSON `json:"issue_summary,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *UploadRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// CompletedPayment is the durable evidence of a finished checkout. The
// session id is unique so a redelivered payment redirect cannot insert a
// duplicate row.
type CompletedPayment struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	ClientID  uuid.UUID `gorm:"type:uuid;index;not null" json:"client_id"`
	SessionID string    `gorm:"uniqueIndex;not null" json:"session_id"`

	FileName string          `gorm:"not null" json:"file_name"`
	FileSize int64           `json:"file_size"`
	Amount   decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Currency string          `gorm:"type:varchar(10);default:'EUR'" json:"currency"`

	// Optional add-on order selection, stored as supplied
	OrderData datatypes.JSON `json:"order_data,omitempty"`

	CompletedAt time.Time `gorm:"not null" json:"completed_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (p *CompletedPayment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CompletedAt.IsZero() {
		p.CompletedAt = time.Now()
	}
	return
}
