package engine

import (
	"testing"
	"time"

	"oss-compliance-backend/wizard/store"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const window = 24 * time.Hour

func snapWithFile() *store.Snapshot {
	return &store.Snapshot{
		File:      &store.UploadedFileRef{Name: "invoices.csv", Size: 1024, BinaryAvailable: true},
		SessionID: "S1",
	}
}

func snapPaid(completedAt time.Time) *store.Snapshot {
	snap := snapWithFile()
	snap.Payment = &store.PaymentRecord{
		Completed:              true,
		SessionID:              "S1",
		CompletedAtEpochMillis: completedAt.UnixMilli(),
	}
	return snap
}

func TestReconcile(t *testing.T) {
	eng := New(window)

	tests := []struct {
		name        string
		ext         ExternalState
		snap        *store.Snapshot
		wantStep    Step
		wantRewrite bool
	}{
		{
			name:        "deep link past upload without a file collapses to upload",
			ext:         ExternalState{RequestedStep: 4},
			snap:        &store.Snapshot{},
			wantStep:    StepUpload,
			wantRewrite: true,
		},
		{
			name:        "correction without a file collapses to upload",
			ext:         ExternalState{RequestedStep: 2},
			snap:        &store.Snapshot{},
			wantStep:    StepUpload,
			wantRewrite: true,
		},
		{
			name: "overview without a file but with valid payment is honored",
			ext:  ExternalState{RequestedStep: 4},
			snap: &store.Snapshot{
				SessionID: "S1",
				Payment:   &store.PaymentRecord{Completed: true, SessionID: "S1", CompletedAtEpochMillis: now.Add(-time.Hour).UnixMilli()},
			},
			wantStep: StepOverview,
		},
		{
			name:        "overview without valid payment collapses to payment",
			ext:         ExternalState{RequestedStep: 4},
			snap:        snapWithFile(),
			wantStep:    StepPayment,
			wantRewrite: true,
		},
		{
			name:        "overview with expired payment collapses to payment",
			ext:         ExternalState{RequestedStep: 4},
			snap:        snapPaid(now.Add(-25 * time.Hour)),
			wantStep:    StepPayment,
			wantRewrite: true,
		},
		{
			name:     "overview with valid payment is adopted",
			ext:      ExternalState{RequestedStep: 4},
			snap:     snapPaid(now.Add(-time.Hour)),
			wantStep: StepOverview,
		},
		{
			name: "payment for a different session does not unlock overview",
			ext:  ExternalState{RequestedStep: 4},
			snap: func() *store.Snapshot {
				snap := snapPaid(now.Add(-time.Hour))
				snap.SessionID = "S2"
				return snap
			}(),
			wantStep:    StepPayment,
			wantRewrite: true,
		},
		{
			name:     "in-range step with a file is adopted",
			ext:      ExternalState{RequestedStep: 2},
			snap:     snapWithFile(),
			wantStep: StepCorrection,
		},
		{
			name:     "step one needs no file",
			ext:      ExternalState{RequestedStep: 1},
			snap:     &store.Snapshot{},
			wantStep: StepUpload,
		},
		{
			name:        "out-of-range step collapses to upload",
			ext:         ExternalState{RequestedStep: 9},
			snap:        snapWithFile(),
			wantStep:    StepUpload,
			wantRewrite: true,
		},
		{
			name:        "zero step collapses to upload",
			ext:         ExternalState{RequestedStep: 0},
			snap:        snapWithFile(),
			wantStep:    StepUpload,
			wantRewrite: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := eng.Reconcile(tt.ext, tt.snap, now)
			if res.Step != tt.wantStep {
				t.Errorf("step: got %v, want %v", res.Step, tt.wantStep)
			}
			if res.RewriteIndicator != tt.wantRewrite {
				t.Errorf("rewrite: got %v, want %v", res.RewriteIndicator, tt.wantRewrite)
			}
		})
	}
}

func TestReconcileIsDeterministic(t *testing.T) {
	eng := New(window)
	ext := ExternalState{RequestedStep: 4, PaymentSuccess: true, PaymentSessionID: "S1"}
	snap := snapPaid(now.Add(-time.Hour))

	first := eng.Reconcile(ext, snap, now)
	second := eng.Reconcile(ext, snap, now)
	if first != second {
		t.Fatalf("re-running reconciliation changed the result: %+v vs %+v", first, second)
	}
}

func TestReconcilePaymentSuccessFlagsCleanup(t *testing.T) {
	eng := New(window)

	res := eng.Reconcile(ExternalState{RequestedStep: 4, PaymentSuccess: true}, snapPaid(now.Add(-time.Minute)), now)
	if !res.ClearPreRedirect {
		t.Error("payment success must flag the pre-redirect cleanup")
	}

	res = eng.Reconcile(ExternalState{RequestedStep: 2}, snapWithFile(), now)
	if res.ClearPreRedirect {
		t.Error("no payment success, no cleanup")
	}
}

func TestGuards(t *testing.T) {
	eng := New(window)

	if !eng.CanAdvance(StepUpload) || !eng.CanAdvance(StepPayment) {
		t.Error("advancing below overview should be allowed")
	}
	if eng.CanAdvance(StepOverview) {
		t.Error("cannot advance past overview")
	}

	if eng.CanGoBack(StepUpload) {
		t.Error("cannot go back from upload")
	}
	if !eng.CanGoBack(StepOverview) {
		t.Error("going back from overview should be allowed")
	}
}

func TestCanJumpTo(t *testing.T) {
	eng := New(window)

	tests := []struct {
		name    string
		current Step
		target  Step
		snap    *store.Snapshot
		want    bool
	}{
		{"revisit completed step", StepPayment, StepUpload, snapWithFile(), true},
		{"stay put", StepCorrection, StepCorrection, snapWithFile(), true},
		{"one step forward", StepCorrection, StepPayment, snapWithFile(), true},
		{"skip ahead blocked", StepUpload, StepPayment, snapWithFile(), false},
		{"skip to overview unpaid blocked", StepUpload, StepOverview, snapWithFile(), false},
		{"skip to overview paid allowed", StepUpload, StepOverview, snapPaid(now.Add(-time.Hour)), true},
		{"skip to overview expired blocked", StepUpload, StepOverview, snapPaid(now.Add(-25 * time.Hour)), false},
		{"out of range blocked", StepCorrection, Step(7), snapWithFile(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eng.CanJumpTo(tt.current, tt.target, tt.snap, now); got != tt.want {
				t.Errorf("CanJumpTo(%v, %v) = %v, want %v", tt.current, tt.target, got, tt.want)
			}
		})
	}
}
