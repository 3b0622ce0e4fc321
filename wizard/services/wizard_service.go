package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"oss-compliance-backend/config"
	"oss-compliance-backend/db/models"
	"oss-compliance-backend/payments"
	"oss-compliance-backend/utils"
	"oss-compliance-backend/validation"
	"oss-compliance-backend/wizard/engine"
	"oss-compliance-backend/wizard/repositories"
	"oss-compliance-backend/wizard/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrStaleValidation means a validation response arrived for a file that is
// no longer the active one (the user re-uploaded or reset meanwhile). The
// response must be discarded, not applied.
var ErrStaleValidation = errors.New("validation response no longer matches the active file")

// ValidationClient is the slice of the validation backend the wizard needs.
type ValidationClient interface {
	ValidateFile(ctx context.Context, fileName string, file io.Reader) (*validation.FileResult, error)
}

// CheckoutClient creates checkout sessions with the payment provider.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (string, error)
}

// WizardService glues the snapshot store, the navigation engine and the
// external collaborators together. It is also the effect runner for the
// engine's pure reconciliation decisions.
type WizardService struct {
	Engine         *engine.Engine
	Persister      store.Persister
	Storage        utils.FileStorage
	Validator      ValidationClient
	Checkout       CheckoutClient
	Repo           repositories.AuditRepository
	ValidityWindow time.Duration
	BasePrice      decimal.Decimal
	Now            func() time.Time
}

func NewWizardService(
	eng *engine.Engine,
	persister store.Persister,
	storage utils.FileStorage,
	validator ValidationClient,
	checkout CheckoutClient,
	repo repositories.AuditRepository,
	validityWindow time.Duration,
	basePrice decimal.Decimal,
) *WizardService {
	return &WizardService{
		Engine:         eng,
		Persister:      persister,
		Storage:        storage,
		Validator:      validator,
		Checkout:       checkout,
		Repo:           repo,
		ValidityWindow: validityWindow,
		BasePrice:      basePrice,
		Now:            time.Now,
	}
}

// LoadStore rehydrates the client's store from durable storage and re-checks
// whether the uploaded binary survived.
func (s *WizardService) LoadStore(ctx context.Context, clientID uuid.UUID) (*store.Store, error) {
	snap, err := s.Persister.Load(ctx, clientID)
	if err != nil {
		return nil, err
	}
	st := store.NewStore(clientID, snap, s.Persister, s.ValidityWindow).WithNow(s.Now)
	if err := st.RestoreFileObject(ctx, s.Storage); err != nil {
		return nil, err
	}
	return st, nil
}

// ResolveState is one reconciliation pass: commit any payment-provider
// return signal first, then derive the authoritative step and apply the
// engine's writes. Re-running it for the same inputs is idempotent.
func (s *WizardService) ResolveState(ctx context.Context, clientID uuid.UUID, ext engine.ExternalState) (engine.Resolution, *store.Snapshot, error) {
	st, err := s.LoadStore(ctx, clientID)
	if err != nil {
		return engine.Resolution{}, nil, err
	}

	if ext.PaymentSuccess && ext.PaymentSessionID != "" {
		if err := s.commitPaymentReturn(ctx, st, ext.PaymentSessionID); err != nil {
			return engine.Resolution{}, nil, err
		}
	}

	res := s.Engine.Reconcile(ext, st.Snapshot(), s.Now())

	if res.ClearPreRedirect {
		if err := st.ClearPreRedirectState(ctx); err != nil {
			return engine.Resolution{}, nil, err
		}
	}

	return res, st.Snapshot(), nil
}

// commitPaymentReturn writes the full payment record for a provider success
// redirect. A signal for a session other than the active one is stale (the
// user uploaded a new file mid-flight) and is dropped; a redelivery of an
// already-recorded payment keeps the original timestamp.
func (s *WizardService) commitPaymentReturn(ctx context.Context, st *store.Store, sessionID string) error {
	snap := st.Snapshot()
	if snap.SessionID != sessionID {
		config.Logger.Warn("Ignoring payment return for inactive session",
			zap.String("returned_session", sessionID),
			zap.String("active_session", snap.SessionID),
		)
		return nil
	}
	if snap.Payment != nil && snap.Payment.Completed && snap.Payment.SessionID == sessionID {
		return nil
	}

	record := store.PaymentRecord{
		Completed:              true,
		SessionID:              sessionID,
		CompletedAtEpochMillis: s.Now().UnixMilli(),
	}
	if err := st.SetPaymentInfo(ctx, record); err != nil {
		return err
	}

	s.auditCompletedPayment(st, record)
	return nil
}

func (s *WizardService) auditCompletedPayment(st *store.Store, record store.PaymentRecord) {
	if s.Repo == nil {
		return
	}
	snap := st.Snapshot()
	row := &models.CompletedPayment{
		ClientID:    st.ClientID(),
		SessionID:   record.SessionID,
		Amount:      s.OrderTotal(snap),
		CompletedAt: time.UnixMilli(record.CompletedAtEpochMillis),
	}
	if snap.File != nil {
		row.FileName = snap.File.Name
		row.FileSize = snap.File.Size
	}
	if snap.Order != nil {
		if data, err := json.Marshal(snap.Order); err == nil {
			row.OrderData = data
		}
	}
	// Audit is best-effort: the snapshot already holds the durable truth.
	if err := s.Repo.RecordCompletedPayment(row); err != nil {
		config.Logger.Error("Failed to audit completed payment",
			zap.String("session_id", record.SessionID),
			zap.Error(err),
		)
	}
}

// OrderTotal computes the checkout amount: base report price plus any
// selected add-on. Purely informational pricing, never a gate.
func (s *WizardService) OrderTotal(snap *store.Snapshot) decimal.Decimal {
	total := s.BasePrice
	if snap != nil && snap.Order != nil {
		total = total.Add(snap.Order.Price)
	}
	return total
}

// ValidateActiveFile submits the active file to the validation backend,
// records the issued session, audits the upload and returns the normalized
// issues. The in-flight request is tagged with the storage path it was
// issued for; a response for a file that is no longer active is discarded.
func (s *WizardService) ValidateActiveFile(ctx context.Context, st *store.Store) ([]validation.Issue, *validation.FileResult, error) {
	if err := st.RequireBinary(); err != nil {
		return nil, nil, err
	}
	file := st.Snapshot().File
	issuedFor := file.StoragePath

	reader, err := s.Storage.DownloadFile(file.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stored upload: %w", err)
	}
	defer reader.Close()

	result, err := s.Validator.ValidateFile(ctx, file.Name, reader)
	if err != nil {
		return nil, nil, err
	}

	// The store may have changed while the request was in flight. Reload
	// and drop the response if it no longer describes the active file.
	fresh, err := s.LoadStore(ctx, st.ClientID())
	if err != nil {
		return nil, nil, err
	}
	currentFile := fresh.Snapshot().File
	if currentFile == nil || currentFile.StoragePath != issuedFor {
		return nil, nil, ErrStaleValidation
	}

	if err := fresh.SetSessionID(ctx, result.SessionID); err != nil {
		return nil, nil, err
	}

	issues := validation.Normalize(result.ValidationResult)
	s.auditUpload(fresh, result, issues)

	return issues, result, nil
}

func (s *WizardService) auditUpload(st *store.Store, result *validation.FileResult, issues []validation.Issue) {
	if s.Repo == nil {
		return
	}
	snap := st.Snapshot()
	row := &models.UploadRecord{
		ClientID:   st.ClientID(),
		SessionID:  result.SessionID,
		IssueCount: len(issues),
	}
	if snap.File != nil {
		row.FileName = snap.File.Name
		row.FileSize = snap.File.Size
		row.MimeType = snap.File.MimeType
		if hash, err := utils.GenerateFileHash(snap.File.StoragePath); err == nil {
			row.FileHash = hash
		}
	}
	if len(issues) > 0 {
		if data, err := json.Marshal(issueSummary(issues)); err == nil {
			row.IssueSummary = data
		}
	}
	if err := s.Repo.CreateUploadRecord(row); err != nil {
		config.Logger.Error("Failed to audit upload",
			zap.String("session_id", result.SessionID),
			zap.Error(err),
		)
	}
}

func issueSummary(issues []validation.Issue) map[string]int {
	summary := make(map[string]int)
	for _, issue := range issues {
		summary[string(issue.Type)]++
	}
	return summary
}

// CreateCheckout persists the pre-redirect bookkeeping durably, then asks
// the payment provider for a checkout session. The bookkeeping write comes
// first: the browser context may be fully torn down by the redirect.
func (s *WizardService) CreateCheckout(ctx context.Context, st *store.Store, returnURL string) (string, error) {
	snap := st.Snapshot()
	if snap.File == nil {
		return "", store.ErrNoFile
	}
	if snap.SessionID == "" {
		return "", store.ErrEmptySessionID
	}

	if err := st.SetPreRedirectState(ctx, int(engine.StepPayment)); err != nil {
		return "", err
	}

	amount := s.OrderTotal(snap)
	checkoutURL, err := s.Checkout.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		Amount:      amount,
		Description: fmt.Sprintf("OSS compliance report for %s", snap.File.Name),
		Metadata: payments.CheckoutMetadata{
			FileName:  snap.File.Name,
			FileSize:  snap.File.Size,
			SessionID: snap.SessionID,
			ReturnURL: returnURL,
		},
	})
	if err != nil {
		// The checkout never started; undo the bookkeeping so the
		// abandoned-checkout cleanup has nothing to chew on.
		if clearErr := st.ClearPreRedirectState(ctx); clearErr != nil {
			config.Logger.Error("Failed to clear pre-redirect state after checkout failure", zap.Error(clearErr))
		}
		return "", err
	}

	return checkoutURL, nil
}
