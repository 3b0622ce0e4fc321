package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptySessionID    = errors.New("session id cannot be empty")
	ErrNoActiveSession   = errors.New("no active session to bind the payment to")
	ErrEmptyFileName     = errors.New("file name cannot be empty")
	ErrNoFile            = errors.New("no uploaded file")
	ErrBinaryUnavailable = errors.New("uploaded file binary is no longer available, please re-upload")
)

// Persister writes and reads durable snapshots. Load returns (nil, nil)
// when no snapshot exists for the client yet.
type Persister interface {
	Save(ctx context.Context, clientID uuid.UUID, snap *Snapshot) error
	Load(ctx context.Context, clientID uuid.UUID) (*Snapshot, error)
	Delete(ctx context.Context, clientID uuid.UUID) error
}

// FileChecker is the slice of file storage the store needs to decide whether
// an uploaded binary survived. utils.FileStorage satisfies it.
type FileChecker interface {
	FileExists(filePath string) (bool, error)
}

// Store is the single source of truth for one wizard client: which file is
// active, which backend session backs it, and whether a usable payment
// exists. Every mutator persists the full snapshot synchronously before
// committing it in memory, so a concurrent reload never observes a
// half-written state.
type Store struct {
	clientID       uuid.UUID
	snap           *Snapshot
	persister      Persister
	validityWindow time.Duration
	now            func() time.Time
}

func NewStore(clientID uuid.UUID, snap *Snapshot, persister Persister, validityWindow time.Duration) *Store {
	if snap == nil {
		snap = &Snapshot{}
	}
	return &Store{
		clientID:       clientID,
		snap:           snap,
		persister:      persister,
		validityWindow: validityWindow,
		now:            time.Now,
	}
}

// WithNow overrides the store clock. Test hook.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) ClientID() uuid.UUID {
	return s.clientID
}

// Snapshot returns the current snapshot. Callers must treat it as read-only;
// all mutation goes through the store.
func (s *Store) Snapshot() *Snapshot {
	return s.snap
}

// commit persists the candidate snapshot and only then makes it current.
func (s *Store) commit(ctx context.Context, next *Snapshot) error {
	if err := s.persister.Save(ctx, s.clientID, next); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	s.snap = next
	return nil
}

// SetUploadedFile replaces the active file reference. It does not clear the
// session or payment; callers starting over call ResetForNewFile first.
func (s *Store) SetUploadedFile(ctx context.Context, file UploadedFileRef) error {
	if strings.TrimSpace(file.Name) == "" {
		return ErrEmptyFileName
	}
	next := s.snap.clone()
	next.File = &file
	return s.commit(ctx, next)
}

// ResetForNewFile clears file, session id, payment record and auxiliary
// state atomically, so no stale payment can be reused across unrelated
// files.
func (s *Store) ResetForNewFile(ctx context.Context) error {
	next := &Snapshot{}
	return s.commit(ctx, next)
}

// RestoreFileObject re-checks the stored binary after a snapshot reload.
// When the binary is gone the metadata stays intact so the UI can still
// describe the file, but BinaryAvailable flips to false and operations that
// need raw bytes fail with ErrBinaryUnavailable.
func (s *Store) RestoreFileObject(ctx context.Context, checker FileChecker) error {
	if s.snap.File == nil {
		return nil
	}
	exists, err := checker.FileExists(s.snap.File.StoragePath)
	if err != nil {
		return fmt.Errorf("failed to check stored file: %w", err)
	}
	if exists == s.snap.File.BinaryAvailable {
		return nil
	}
	next := s.snap.clone()
	next.File.BinaryAvailable = exists
	return s.commit(ctx, next)
}

// RequireBinary fails fast when no file is active or its binary is gone.
func (s *Store) RequireBinary() error {
	if s.snap.File == nil {
		return ErrNoFile
	}
	if !s.snap.File.BinaryAvailable {
		return ErrBinaryUnavailable
	}
	return nil
}

// SetSessionID associates the active file with a backend session. Only one
// session is active at a time; an empty id is a contract violation.
func (s *Store) SetSessionID(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptySessionID
	}
	next := s.snap.clone()
	next.SessionID = id
	return s.commit(ctx, next)
}

// SetPaymentInfo replaces the payment record atomically. Partial records
// (no session binding, no timestamp) are rejected.
func (s *Store) SetPaymentInfo(ctx context.Context, record PaymentRecord) error {
	if record.SessionID == "" {
		return ErrEmptySessionID
	}
	if record.CompletedAtEpochMillis <= 0 {
		return errors.New("payment record requires a completion timestamp")
	}
	next := s.snap.clone()
	next.Payment = &record
	return s.commit(ctx, next)
}

// SetPaymentCompleted is the convenience setter used by the payment-success
// redirect handler. It builds a full record bound to the active session; a
// bare boolean flip with no session to bind to is rejected. Passing false
// clears the record.
func (s *Store) SetPaymentCompleted(ctx context.Context, completed bool) error {
	if !completed {
		next := s.snap.clone()
		next.Payment = nil
		return s.commit(ctx, next)
	}
	if s.snap.SessionID == "" {
		return ErrNoActiveSession
	}
	return s.SetPaymentInfo(ctx, PaymentRecord{
		Completed:              true,
		SessionID:              s.snap.SessionID,
		CompletedAtEpochMillis: s.now().UnixMilli(),
	})
}

// SetOrderData records the optional add-on selection.
func (s *Store) SetOrderData(ctx context.Context, order OrderData) error {
	next := s.snap.clone()
	next.Order = &order
	return s.commit(ctx, next)
}

// SetPreRedirectState records the step and initiation time before the
// browser is handed to the payment provider, so the flow can be resumed or
// detected as abandoned after the external round-trip.
func (s *Store) SetPreRedirectState(ctx context.Context, step int) error {
	next := s.snap.clone()
	initiatedAt := s.now().UnixMilli()
	next.PreRedirectStep = &step
	next.PaymentInitiatedAtMillis = &initiatedAt
	return s.commit(ctx, next)
}

// ClearPreRedirectState removes the pre-redirect bookkeeping. Idempotent.
func (s *Store) ClearPreRedirectState(ctx context.Context) error {
	if s.snap.PreRedirectStep == nil && s.snap.PaymentInitiatedAtMillis == nil {
		return nil
	}
	next := s.snap.clone()
	next.PreRedirectStep = nil
	next.PaymentInitiatedAtMillis = nil
	return s.commit(ctx, next)
}

// IsPaymentValidForSession reports whether a currently-usable payment
// exists: completed, bound to the active session, inside the validity
// window. Safe before any file or session exists.
func (s *Store) IsPaymentValidForSession() bool {
	return s.snap.PaymentValidAt(s.now(), s.validityWindow)
}
