package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"testing"
	"time"

	"oss-compliance-backend/config"
	"oss-compliance-backend/db/models"
	"oss-compliance-backend/payments"
	"oss-compliance-backend/validation"
	"oss-compliance-backend/wizard/engine"
	"oss-compliance-backend/wizard/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	config.Logger = zap.NewNop()
	os.Exit(m.Run())
}

// fakeStorage keeps file bytes in memory, keyed by storage path.
type fakeStorage struct {
	files map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (f *fakeStorage) UploadFile(file multipart.File, fileName string) (string, error) {
	return f.UploadFileFromReader(file, fileName)
}

func (f *fakeStorage) UploadFileFromReader(src io.Reader, fileName string) (string, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	f.files[fileName] = data
	return fileName, nil
}

func (f *fakeStorage) DownloadFile(filePath string) (io.ReadCloser, error) {
	data, ok := f.files[filePath]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) DeleteFile(filePath string) error {
	delete(f.files, filePath)
	return nil
}

func (f *fakeStorage) FileExists(filePath string) (bool, error) {
	_, ok := f.files[filePath]
	return ok, nil
}

type stubValidator struct {
	result *validation.FileResult
	err    error
	onCall func()
	calls  int
}

func (v *stubValidator) ValidateFile(ctx context.Context, fileName string, file io.Reader) (*validation.FileResult, error) {
	v.calls++
	if v.onCall != nil {
		v.onCall()
	}
	if v.err != nil {
		return nil, v.err
	}
	return v.result, nil
}

type stubCheckout struct {
	url     string
	err     error
	lastReq *payments.CheckoutRequest
}

func (c *stubCheckout) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (string, error) {
	c.lastReq = &req
	if c.err != nil {
		return "", c.err
	}
	return c.url, nil
}

type stubAudit struct {
	uploads  []*models.UploadRecord
	payments []*models.CompletedPayment
}

func (a *stubAudit) CreateUploadRecord(record *models.UploadRecord) error {
	a.uploads = append(a.uploads, record)
	return nil
}

func (a *stubAudit) RecordCompletedPayment(payment *models.CompletedPayment) error {
	a.payments = append(a.payments, payment)
	return nil
}

func (a *stubAudit) GetCompletedPaymentBySessionID(sessionID string) (*models.CompletedPayment, error) {
	for _, p := range a.payments {
		if p.SessionID == sessionID {
			return p, nil
		}
	}
	return nil, errors.New("not found")
}

type serviceFixture struct {
	svc       *WizardService
	persister *store.MemoryPersister
	storage   *fakeStorage
	validator *stubValidator
	checkout  *stubCheckout
	audit     *stubAudit
	clientID  uuid.UUID
	now       time.Time
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		persister: store.NewMemoryPersister(),
		storage:   newFakeStorage(),
		validator: &stubValidator{},
		checkout:  &stubCheckout{url: "https://pay.example/session/abc"},
		audit:     &stubAudit{},
		clientID:  uuid.New(),
		now:       time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewWizardService(
		engine.New(24*time.Hour),
		f.persister,
		f.storage,
		f.validator,
		f.checkout,
		f.audit,
		24*time.Hour,
		decimal.RequireFromString("49.00"),
	)
	f.svc.Now = func() time.Time { return f.now }
	return f
}

// seed persists an initial snapshot and registers its binary in storage.
func (f *serviceFixture) seed(t *testing.T, snap *store.Snapshot) {
	t.Helper()
	if snap.File != nil && snap.File.BinaryAvailable {
		f.storage.files[snap.File.StoragePath] = []byte("period,amount\n2026-Q1,10.00\n")
	}
	if err := f.persister.Save(context.Background(), f.clientID, snap); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func (f *serviceFixture) snapshot(t *testing.T) *store.Snapshot {
	t.Helper()
	snap, err := f.persister.Load(context.Background(), f.clientID)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	return snap
}

func activeFile(path string) *store.UploadedFileRef {
	return &store.UploadedFileRef{
		Name:            "q1-report.csv",
		Size:            128,
		MimeType:        "text/csv",
		StoragePath:     path,
		BinaryAvailable: true,
	}
}

func TestResolveStateCommitsPaymentReturn(t *testing.T) {
	f := newFixture(t)
	preStep := 3
	initiatedAt := f.now.Add(-5 * time.Minute).UnixMilli()
	f.seed(t, &store.Snapshot{
		File:                     activeFile("q1.csv"),
		SessionID:                "sess-1",
		PreRedirectStep:          &preStep,
		PaymentInitiatedAtMillis: &initiatedAt,
	})

	res, snap, err := f.svc.ResolveState(context.Background(), f.clientID, engine.ExternalState{
		RequestedStep:    4,
		PaymentSuccess:   true,
		PaymentSessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("ResolveState: %v", err)
	}

	if res.Step != engine.StepOverview {
		t.Errorf("step = %v, want overview", res.Step)
	}
	if snap.Payment == nil || !snap.Payment.Completed || snap.Payment.SessionID != "sess-1" {
		t.Fatalf("payment not committed: %+v", snap.Payment)
	}
	if snap.Payment.CompletedAtEpochMillis != f.now.UnixMilli() {
		t.Errorf("completed at = %d, want %d", snap.Payment.CompletedAtEpochMillis, f.now.UnixMilli())
	}
	if snap.PreRedirectStep != nil || snap.PaymentInitiatedAtMillis != nil {
		t.Error("pre-redirect bookkeeping not cleared")
	}

	durable := f.snapshot(t)
	if durable.Payment == nil || !durable.Payment.Completed {
		t.Error("payment commit did not reach durable storage")
	}
	if len(f.audit.payments) != 1 {
		t.Fatalf("audited payments = %d, want 1", len(f.audit.payments))
	}
	if !f.audit.payments[0].Amount.Equal(decimal.RequireFromString("49.00")) {
		t.Errorf("audited amount = %s, want 49.00", f.audit.payments[0].Amount)
	}
}

func TestResolveStatePaymentReturnIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &store.Snapshot{File: activeFile("q1.csv"), SessionID: "sess-1"})

	ext := engine.ExternalState{RequestedStep: 4, PaymentSuccess: true, PaymentSessionID: "sess-1"}
	if _, _, err := f.svc.ResolveState(context.Background(), f.clientID, ext); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	firstCompletedAt := f.snapshot(t).Payment.CompletedAtEpochMillis

	// The browser may replay the return URL hours later.
	f.now = f.now.Add(3 * time.Hour)
	res, snap, err := f.svc.ResolveState(context.Background(), f.clientID, ext)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if res.Step != engine.StepOverview {
		t.Errorf("step = %v, want overview", res.Step)
	}
	if snap.Payment.CompletedAtEpochMillis != firstCompletedAt {
		t.Errorf("replay refreshed the completion timestamp: %d != %d",
			snap.Payment.CompletedAtEpochMillis, firstCompletedAt)
	}
	if len(f.audit.payments) != 1 {
		t.Errorf("audited payments = %d, want 1", len(f.audit.payments))
	}
}

func TestResolveStateIgnoresMismatchedPaymentSession(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &store.Snapshot{File: activeFile("q1.csv"), SessionID: "sess-1"})

	res, snap, err := f.svc.ResolveState(context.Background(), f.clientID, engine.ExternalState{
		RequestedStep:    4,
		PaymentSuccess:   true,
		PaymentSessionID: "sess-stale",
	})
	if err != nil {
		t.Fatalf("ResolveState: %v", err)
	}

	if snap.Payment != nil {
		t.Errorf("stale session signal must not commit a payment: %+v", snap.Payment)
	}
	if res.Step != engine.StepPayment || !res.RewriteIndicator {
		t.Errorf("resolution = %+v, want payment step with rewrite", res)
	}
	if len(f.audit.payments) != 0 {
		t.Errorf("audited payments = %d, want 0", len(f.audit.payments))
	}
}

func TestValidateActiveFile(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &store.Snapshot{File: activeFile("q1.csv")})
	pct := 60.0
	f.validator.result = &validation.FileResult{
		FileName:  "q1-report.csv",
		SessionID: "sess-new",
		HasIssues: true,
		ValidationResult: validation.ValidationResult{
			DataIssues: []validation.DataIssue{
				{IssueType: string(validation.IssueMissingData), Column: "amount", Percentage: &pct},
			},
		},
	}

	st, err := f.svc.LoadStore(context.Background(), f.clientID)
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	issues, result, err := f.svc.ValidateActiveFile(context.Background(), st)
	if err != nil {
		t.Fatalf("ValidateActiveFile: %v", err)
	}

	if result.SessionID != "sess-new" {
		t.Errorf("session id = %q", result.SessionID)
	}
	if len(issues) != 1 || issues[0].Severity != validation.SeverityHigh {
		t.Errorf("issues = %+v, want one high-severity issue", issues)
	}
	if got := f.snapshot(t).SessionID; got != "sess-new" {
		t.Errorf("durable session id = %q, want sess-new", got)
	}
	if len(f.audit.uploads) != 1 || f.audit.uploads[0].IssueCount != 1 {
		t.Errorf("audit uploads = %+v", f.audit.uploads)
	}
}

func TestValidateActiveFileDiscardsStaleResponse(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &store.Snapshot{File: activeFile("old.csv")})
	f.validator.result = &validation.FileResult{SessionID: "sess-late"}

	// The user replaces the file while the validation request is in flight.
	f.validator.onCall = func() {
		replacement := &store.Snapshot{File: activeFile("new.csv")}
		f.storage.files["new.csv"] = []byte("period,amount\n")
		if err := f.persister.Save(context.Background(), f.clientID, replacement); err != nil {
			t.Fatalf("replace snapshot: %v", err)
		}
	}

	st, err := f.svc.LoadStore(context.Background(), f.clientID)
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	_, _, err = f.svc.ValidateActiveFile(context.Background(), st)
	if !errors.Is(err, ErrStaleValidation) {
		t.Fatalf("err = %v, want ErrStaleValidation", err)
	}

	if got := f.snapshot(t).SessionID; got != "" {
		t.Errorf("stale response applied a session id: %q", got)
	}
	if len(f.audit.uploads) != 0 {
		t.Errorf("stale response was audited")
	}
}

func TestValidateActiveFileRequiresBinary(t *testing.T) {
	f := newFixture(t)
	file := activeFile("gone.csv")
	file.BinaryAvailable = false
	f.seed(t, &store.Snapshot{File: file})

	st, err := f.svc.LoadStore(context.Background(), f.clientID)
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	_, _, err = f.svc.ValidateActiveFile(context.Background(), st)
	if !errors.Is(err, store.ErrBinaryUnavailable) {
		t.Fatalf("err = %v, want ErrBinaryUnavailable", err)
	}
	if f.validator.calls != 0 {
		t.Error("validator called despite missing binary")
	}
}

func TestCreateCheckoutWritesBookkeepingFirst(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &store.Snapshot{
		File:      activeFile("q1.csv"),
		SessionID: "sess-1",
		Order: &store.OrderData{
			AddOnCode: "priority-review",
			Price:     decimal.RequireFromString("10.00"),
		},
	})

	st, err := f.svc.LoadStore(context.Background(), f.clientID)
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	url, err := f.svc.CreateCheckout(context.Background(), st, "https://app.example/wizard?step=4")
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	if url != "https://pay.example/session/abc" {
		t.Errorf("url = %q", url)
	}

	if f.checkout.lastReq == nil {
		t.Fatal("checkout provider not called")
	}
	if !f.checkout.lastReq.Amount.Equal(decimal.RequireFromString("59.00")) {
		t.Errorf("amount = %s, want 59.00", f.checkout.lastReq.Amount)
	}
	if f.checkout.lastReq.Metadata.SessionID != "sess-1" {
		t.Errorf("metadata session = %q", f.checkout.lastReq.Metadata.SessionID)
	}

	snap := f.snapshot(t)
	if snap.PreRedirectStep == nil || *snap.PreRedirectStep != int(engine.StepPayment) {
		t.Errorf("pre-redirect step = %v, want 3", snap.PreRedirectStep)
	}
	if snap.PaymentInitiatedAtMillis == nil || *snap.PaymentInitiatedAtMillis != f.now.UnixMilli() {
		t.Errorf("payment initiated at = %v, want %d", snap.PaymentInitiatedAtMillis, f.now.UnixMilli())
	}
}

func TestCreateCheckoutRollsBackOnProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.checkout.err = errors.New("provider unavailable")
	f.seed(t, &store.Snapshot{File: activeFile("q1.csv"), SessionID: "sess-1"})

	st, err := f.svc.LoadStore(context.Background(), f.clientID)
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	if _, err := f.svc.CreateCheckout(context.Background(), st, "https://app.example/wizard"); err == nil {
		t.Fatal("expected provider error")
	}

	snap := f.snapshot(t)
	if snap.PreRedirectStep != nil || snap.PaymentInitiatedAtMillis != nil {
		t.Errorf("bookkeeping not rolled back: %+v", snap)
	}
}

func TestCreateCheckoutPreconditions(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		snap *store.Snapshot
		want error
	}{
		{name: "no file", snap: &store.Snapshot{}, want: store.ErrNoFile},
		{name: "no session", snap: &store.Snapshot{File: activeFile("q1.csv")}, want: store.ErrEmptySessionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.seed(t, tt.snap)
			st, err := f.svc.LoadStore(context.Background(), f.clientID)
			if err != nil {
				t.Fatalf("LoadStore: %v", err)
			}
			if _, err := f.svc.CreateCheckout(context.Background(), st, "https://app.example/wizard"); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOrderTotal(t *testing.T) {
	f := newFixture(t)

	if got := f.svc.OrderTotal(&store.Snapshot{}); !got.Equal(decimal.RequireFromString("49.00")) {
		t.Errorf("base total = %s", got)
	}
	withAddOn := &store.Snapshot{Order: &store.OrderData{Price: decimal.RequireFromString("15.50")}}
	if got := f.svc.OrderTotal(withAddOn); !got.Equal(decimal.RequireFromString("64.50")) {
		t.Errorf("total with add-on = %s", got)
	}
}
