package engine

import (
	"time"

	"oss-compliance-backend/wizard/store"
)

// Step is one of the fixed, ordered wizard screens. It is never persisted
// on its own; the authoritative step is derived each time from the external
// step indicator plus the store snapshot.
type Step int

const (
	StepUpload     Step = 1
	StepCorrection Step = 2
	StepPayment    Step = 3
	StepOverview   Step = 4
)

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepCorrection:
		return "correction"
	case StepPayment:
		return "payment"
	case StepOverview:
		return "overview"
	default:
		return "unknown"
	}
}

// Valid reports whether the step is inside the wizard's range.
func (s Step) Valid() bool {
	return s >= StepUpload && s <= StepOverview
}

// ExternalState is what the outside world (URL parameters on the client)
// claims about the wizard: the requested step and any payment-provider
// return signal.
type ExternalState struct {
	RequestedStep    int
	PaymentSuccess   bool
	PaymentSessionID string
}

// Resolution is the outcome of one reconciliation pass: the authoritative
// step, whether the external step indicator must be rewritten to match, and
// whether the one-time pre-redirect cleanup applies. The engine itself
// performs no writes; a thin effect runner applies them to the store.
type Resolution struct {
	Step             Step
	RewriteIndicator bool
	ClearPreRedirect bool
}

// Engine holds the one piece of configuration the transition rules need:
// the payment validity window.
type Engine struct {
	validityWindow time.Duration
}

func New(validityWindow time.Duration) *Engine {
	return &Engine{validityWindow: validityWindow}
}

// CanAdvance reports whether Next is allowed from the given step. Leaving
// Correction is additionally gated on all issues being resolved, but that
// check belongs to the Correction screen; the engine only owns the gates
// that must also hold after arbitrary external navigation.
func (e *Engine) CanAdvance(current Step) bool {
	return current >= StepUpload && current < StepOverview
}

// CanGoBack reports whether Previous is allowed from the given step.
func (e *Engine) CanGoBack(current Step) bool {
	return current > StepUpload && current <= StepOverview
}

// CanJumpTo decides whether a direct jump (clicking a step indicator) is
// allowed: back to any completed step, one step forward, or straight to
// Overview while a payment is currently valid.
func (e *Engine) CanJumpTo(current, target Step, snap *store.Snapshot, now time.Time) bool {
	if !target.Valid() {
		return false
	}
	if target <= current {
		return true
	}
	if target == current+1 {
		return true
	}
	return target == StepOverview && snap.PaymentValidAt(now, e.validityWindow)
}

// Reconcile derives the authoritative step from the externally-requested
// step and the snapshot. The precedence is a single ordered decision:
//
//  1. step > 1 with no active file is an invalid deep link and collapses to
//     Upload. The exception is a request for exactly Overview while a
//     payment is valid, which is the legitimate post-payment-redirect
//     landing.
//  2. Overview without a valid payment collapses to Payment.
//  3. Anything else in range is adopted; out-of-range collapses to Upload.
//
// A payment-provider success signal additionally flags the one-time
// pre-redirect cleanup, which is idempotent to re-run.
func (e *Engine) Reconcile(ext ExternalState, snap *store.Snapshot, now time.Time) Resolution {
	res := Resolution{ClearPreRedirect: ext.PaymentSuccess}

	requested := Step(ext.RequestedStep)
	paymentValid := snap.PaymentValidAt(now, e.validityWindow)

	switch {
	case ext.RequestedStep > int(StepUpload) && !snap.HasFile():
		if requested == StepOverview && paymentValid {
			// Post-redirect landing before the file reference rehydrated.
			res.Step = StepOverview
			return res
		}
		res.Step = StepUpload
		res.RewriteIndicator = true
		return res

	case requested == StepOverview && !paymentValid:
		res.Step = StepPayment
		res.RewriteIndicator = true
		return res

	case requested.Valid():
		res.Step = requested
		return res

	default:
		res.Step = StepUpload
		res.RewriteIndicator = true
		return res
	}
}
