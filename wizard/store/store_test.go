package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubChecker struct {
	exists bool
	err    error
}

func (c *stubChecker) FileExists(filePath string) (bool, error) {
	return c.exists, c.err
}

func newTestStore(t *testing.T) (*Store, *MemoryPersister) {
	t.Helper()
	persister := NewMemoryPersister()
	st := NewStore(uuid.New(), nil, persister, 24*time.Hour)
	return st, persister
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestPaymentValidity(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	setup := func(t *testing.T) *Store {
		st, _ := newTestStore(t)
		st.WithNow(fixedClock(base))
		if err := st.SetSessionID(ctx, "S1"); err != nil {
			t.Fatalf("SetSessionID: %v", err)
		}
		if err := st.SetPaymentCompleted(ctx, true); err != nil {
			t.Fatalf("SetPaymentCompleted: %v", err)
		}
		return st
	}

	t.Run("valid inside window", func(t *testing.T) {
		st := setup(t)
		st.WithNow(fixedClock(base.Add(1 * time.Hour)))
		if !st.IsPaymentValidForSession() {
			t.Fatal("payment should be valid one hour after completion")
		}
	})

	t.Run("expired after window", func(t *testing.T) {
		st := setup(t)
		st.WithNow(fixedClock(base.Add(25 * time.Hour)))
		if st.IsPaymentValidForSession() {
			t.Fatal("payment should be invalid after the validity window")
		}
	})

	t.Run("invalid once session changes", func(t *testing.T) {
		st := setup(t)
		if err := st.SetSessionID(ctx, "S2"); err != nil {
			t.Fatalf("SetSessionID: %v", err)
		}
		if st.IsPaymentValidForSession() {
			t.Fatal("payment for S1 must not be valid while S2 is active")
		}
		// The stale record itself is untouched.
		if st.Snapshot().Payment == nil || st.Snapshot().Payment.SessionID != "S1" {
			t.Fatal("old payment record should still be stored")
		}
	})

	t.Run("false before any state exists", func(t *testing.T) {
		st, _ := newTestStore(t)
		if st.IsPaymentValidForSession() {
			t.Fatal("empty store must not report a valid payment")
		}
	})
}

func TestResetForNewFileClearsEverything(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	if err := st.SetUploadedFile(ctx, UploadedFileRef{Name: "invoices.csv", Size: 1024, StoragePath: "/tmp/x", BinaryAvailable: true}); err != nil {
		t.Fatalf("SetUploadedFile: %v", err)
	}
	if err := st.SetSessionID(ctx, "S1"); err != nil {
		t.Fatalf("SetSessionID: %v", err)
	}
	if err := st.SetPaymentCompleted(ctx, true); err != nil {
		t.Fatalf("SetPaymentCompleted: %v", err)
	}

	if err := st.ResetForNewFile(ctx); err != nil {
		t.Fatalf("ResetForNewFile: %v", err)
	}

	snap := st.Snapshot()
	if snap.File != nil {
		t.Error("file should be cleared")
	}
	if snap.SessionID != "" {
		t.Error("session id should be cleared")
	}
	if st.IsPaymentValidForSession() {
		t.Error("payment must be invalid after reset")
	}
}

func TestMutatorContracts(t *testing.T) {
	ctx := context.Background()

	t.Run("empty session id rejected", func(t *testing.T) {
		st, _ := newTestStore(t)
		if err := st.SetSessionID(ctx, "  "); !errors.Is(err, ErrEmptySessionID) {
			t.Fatalf("want ErrEmptySessionID, got %v", err)
		}
	})

	t.Run("payment flip without session rejected", func(t *testing.T) {
		st, _ := newTestStore(t)
		if err := st.SetPaymentCompleted(ctx, true); !errors.Is(err, ErrNoActiveSession) {
			t.Fatalf("want ErrNoActiveSession, got %v", err)
		}
	})

	t.Run("partial payment record rejected", func(t *testing.T) {
		st, _ := newTestStore(t)
		if err := st.SetPaymentInfo(ctx, PaymentRecord{Completed: true}); !errors.Is(err, ErrEmptySessionID) {
			t.Fatalf("want ErrEmptySessionID, got %v", err)
		}
		if err := st.SetPaymentInfo(ctx, PaymentRecord{Completed: true, SessionID: "S1"}); err == nil {
			t.Fatal("record without timestamp must be rejected")
		}
	})

	t.Run("empty file name rejected", func(t *testing.T) {
		st, _ := newTestStore(t)
		if err := st.SetUploadedFile(ctx, UploadedFileRef{Name: "   "}); !errors.Is(err, ErrEmptyFileName) {
			t.Fatalf("want ErrEmptyFileName, got %v", err)
		}
	})
}

func TestMutationsPersistSynchronously(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	id := uuid.New()
	st := NewStore(id, nil, persister, 24*time.Hour)

	if err := st.SetUploadedFile(ctx, UploadedFileRef{Name: "q1.csv", Size: 10, StoragePath: "/tmp/q1", BinaryAvailable: true}); err != nil {
		t.Fatalf("SetUploadedFile: %v", err)
	}

	// A second store over the same persister must see the write, like a
	// reload would.
	loaded, err := persister.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil || loaded.File == nil || loaded.File.Name != "q1.csv" {
		t.Fatal("mutation was not durable before the mutator returned")
	}
}

func TestRestoreFileObject(t *testing.T) {
	ctx := context.Background()

	t.Run("missing binary keeps metadata", func(t *testing.T) {
		st, _ := newTestStore(t)
		if err := st.SetUploadedFile(ctx, UploadedFileRef{Name: "q1.csv", Size: 10, StoragePath: "/tmp/q1", BinaryAvailable: true}); err != nil {
			t.Fatalf("SetUploadedFile: %v", err)
		}

		if err := st.RestoreFileObject(ctx, &stubChecker{exists: false}); err != nil {
			t.Fatalf("RestoreFileObject: %v", err)
		}

		snap := st.Snapshot()
		if snap.File == nil || snap.File.Name != "q1.csv" {
			t.Fatal("file metadata must survive a missing binary")
		}
		if snap.File.BinaryAvailable {
			t.Fatal("binary must be flagged unavailable")
		}
		if err := st.RequireBinary(); !errors.Is(err, ErrBinaryUnavailable) {
			t.Fatalf("want ErrBinaryUnavailable, got %v", err)
		}
	})

	t.Run("no file is a no-op", func(t *testing.T) {
		st, _ := newTestStore(t)
		if err := st.RestoreFileObject(ctx, &stubChecker{exists: false}); err != nil {
			t.Fatalf("RestoreFileObject: %v", err)
		}
		if err := st.RequireBinary(); !errors.Is(err, ErrNoFile) {
			t.Fatalf("want ErrNoFile, got %v", err)
		}
	})
}

func TestClearPreRedirectStateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t)

	if err := st.SetPreRedirectState(ctx, 3); err != nil {
		t.Fatalf("SetPreRedirectState: %v", err)
	}
	if st.Snapshot().PreRedirectStep == nil || st.Snapshot().PaymentInitiatedAtMillis == nil {
		t.Fatal("bookkeeping should be set")
	}

	for i := 0; i < 3; i++ {
		if err := st.ClearPreRedirectState(ctx); err != nil {
			t.Fatalf("ClearPreRedirectState run %d: %v", i, err)
		}
	}
	if st.Snapshot().PreRedirectStep != nil || st.Snapshot().PaymentInitiatedAtMillis != nil {
		t.Fatal("bookkeeping should be cleared")
	}
}

func TestSnapshotSerializationRoundTrip(t *testing.T) {
	initiated := int64(1700000000000)
	step := 3
	snap := &Snapshot{
		File:                     &UploadedFileRef{Name: "invoices.csv", Size: 2048, MimeType: "text/csv", StoragePath: "/tmp/abc", BinaryAvailable: true},
		SessionID:                "S1",
		Payment:                  &PaymentRecord{Completed: true, SessionID: "S1", CompletedAtEpochMillis: 1700000001000},
		PreRedirectStep:          &step,
		PaymentInitiatedAtMillis: &initiated,
	}

	data, err := snap.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	restored, err := DeserializeSnapshot(data)
	if err != nil {
		t.Fatalf("DeserializeSnapshot: %v", err)
	}

	if restored.File == nil || restored.File.Name != snap.File.Name || restored.File.Size != snap.File.Size {
		t.Error("file metadata did not round-trip")
	}
	if restored.SessionID != "S1" {
		t.Error("session id did not round-trip")
	}
	if restored.Payment == nil || !restored.Payment.Completed || restored.Payment.CompletedAtEpochMillis != snap.Payment.CompletedAtEpochMillis {
		t.Error("payment record did not round-trip")
	}
	if restored.PreRedirectStep == nil || *restored.PreRedirectStep != 3 {
		t.Error("pre-redirect step did not round-trip")
	}
}
