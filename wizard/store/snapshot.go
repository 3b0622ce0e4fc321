package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// UploadedFileRef describes the file currently being processed. The binary
// itself lives in file storage under StoragePath; only metadata serializes.
// BinaryAvailable is false once the stored binary can no longer be found
// (expired, cleaned up), in which case the metadata still renders but any
// operation needing raw bytes must fail fast.
type UploadedFileRef struct {
	Name            string `json:"name"`
	Size            int64  `json:"size"`
	MimeType        string `json:"mime_type"`
	StoragePath     string `json:"storage_path"`
	BinaryAvailable bool   `json:"binary_available"`
}

// PaymentRecord captures completed-payment evidence. It is always replaced
// wholesale, never field-by-field.
type PaymentRecord struct {
	Completed              bool   `json:"completed"`
	SessionID              string `json:"session_id"`
	CompletedAtEpochMillis int64  `json:"completed_at_epoch_millis"`
}

// OrderData is the optional add-on purchase selection. Informational only;
// it never gates a step transition.
type OrderData struct {
	AddOnCode   string          `json:"add_on_code"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
}

// Snapshot is the serializable state of one wizard client. It is the unit
// of persistence: every mutation writes the whole snapshot durably before
// the mutator returns.
type Snapshot struct {
	File      *UploadedFileRef `json:"file,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Payment   *PaymentRecord   `json:"payment,omitempty"`
	Order     *OrderData       `json:"order,omitempty"`

	// Pre-redirect bookkeeping, written before handing the browser to the
	// payment provider and cleared on return.
	PreRedirectStep          *int   `json:"pre_redirect_step,omitempty"`
	PaymentInitiatedAtMillis *int64 `json:"payment_initiated_at_millis,omitempty"`
}

// Serialize produces the durable JSON form of the snapshot.
func (s *Snapshot) Serialize() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	return data, nil
}

// DeserializeSnapshot restores a snapshot from its durable JSON form.
func DeserializeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return &snap, nil
}

// HasFile reports whether an uploaded file is currently active.
func (s *Snapshot) HasFile() bool {
	return s != nil && s.File != nil
}

// PaymentValidAt implements the payment validity invariant: the record must
// be completed, bound to the currently active session, and younger than the
// validity window. Safe to call on a nil or empty snapshot.
func (s *Snapshot) PaymentValidAt(now time.Time, window time.Duration) bool {
	if s == nil || s.Payment == nil {
		return false
	}
	p := s.Payment
	if !p.Completed || p.SessionID == "" || p.SessionID != s.SessionID {
		return false
	}
	completedAt := time.UnixMilli(p.CompletedAtEpochMillis)
	return now.Sub(completedAt) <= window
}

func (s *Snapshot) clone() *Snapshot {
	next := *s
	if s.File != nil {
		f := *s.File
		next.File = &f
	}
	if s.Payment != nil {
		p := *s.Payment
		next.Payment = &p
	}
	if s.Order != nil {
		o := *s.Order
		next.Order = &o
	}
	if s.PreRedirectStep != nil {
		step := *s.PreRedirectStep
		next.PreRedirectStep = &step
	}
	if s.PaymentInitiatedAtMillis != nil {
		at := *s.PaymentInitiatedAtMillis
		next.PaymentInitiatedAtMillis = &at
	}
	return &next
}
