package statemachine

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/noltfinance/nolt-ops-api/internal/models"
)

// Event names shared by both application types. Loans and investments run on
// the same status set but different edges, so each type gets its own event
// table.
const (
	EventVerifyDocs          = "verify_docs"
	EventAdvanceToAudit      = "advance_to_audit"
	EventCreditCheckPass     = "credit_check_pass"
	EventAuditPass           = "audit_pass"
	EventReturn              = "return"
	EventConfirmDisbursement = "confirm_disbursement"
	EventVerifyPayment       = "verify_payment"
	EventDecline             = "decline"
	EventResubmit            = "resubmit"
)

// nonTerminalStatuses are the legal sources for a decline
var nonTerminalStatuses = []string{
	models.StatusPendingReview,
	models.StatusDocsVerification,
	models.StatusInternalAudit,
	models.StatusPendingDisbursement,
	models.StatusReturned,
}

// ApplicationFSM wraps an application with its type-specific state machine
type ApplicationFSM struct {
	app *models.Application
	fsm *fsm.FSM
}

// NewApplicationFSM creates the state machine for an application, seeded with
// its current status
func NewApplicationFSM(app *models.Application) *ApplicationFSM {
	afsm := &ApplicationFSM{app: app}

	var events fsm.Events
	if app.Type == models.TypeLoan {
		events = fsm.Events{
			// pending review → docs verification
			{Name: EventVerifyDocs, Src: []string{models.StatusPendingReview}, Dst: models.StatusDocsVerification},

			// docs verification → internal audit (credit review queued)
			{Name: EventAdvanceToAudit, Src: []string{models.StatusDocsVerification}, Dst: models.StatusInternalAudit},

			// Credit records the eligible amount from any pre-audit stage and
			// the application lands in internal audit as the compliance stage.
			// From internal audit itself this is a self-loop.
			{Name: EventCreditCheckPass, Src: []string{
				models.StatusPendingReview,
				models.StatusDocsVerification,
				models.StatusInternalAudit,
			}, Dst: models.StatusInternalAudit},

			// internal audit → pending disbursement
			{Name: EventAuditPass, Src: []string{models.StatusInternalAudit}, Dst: models.StatusPendingDisbursement},

			// internal audit → returned
			{Name: EventReturn, Src: []string{models.StatusInternalAudit}, Dst: models.StatusReturned},

			// pending disbursement → approved
			{Name: EventConfirmDisbursement, Src: []string{models.StatusPendingDisbursement}, Dst: models.StatusApproved},

			// any non-terminal → declined
			{Name: EventDecline, Src: nonTerminalStatuses, Dst: models.StatusDeclined},

			// returned → pending review (applicant re-submission)
			{Name: EventResubmit, Src: []string{models.StatusReturned}, Dst: models.StatusPendingReview},
		}
	} else {
		events = fsm.Events{
			// pending review → docs verification (customer verified)
			{Name: EventVerifyDocs, Src: []string{models.StatusPendingReview}, Dst: models.StatusDocsVerification},

			// docs verification → internal audit (awaiting payment verification)
			{Name: EventAdvanceToAudit, Src: []string{models.StatusDocsVerification}, Dst: models.StatusInternalAudit},

			// internal audit → pending disbursement
			{Name: EventAuditPass, Src: []string{models.StatusInternalAudit}, Dst: models.StatusPendingDisbursement},

			// internal audit → returned
			{Name: EventReturn, Src: []string{models.StatusInternalAudit}, Dst: models.StatusReturned},

			// pending disbursement → approved (inbound payment confirmed)
			{Name: EventVerifyPayment, Src: []string{models.StatusPendingDisbursement}, Dst: models.StatusApproved},

			// any non-terminal → declined
			{Name: EventDecline, Src: nonTerminalStatuses, Dst: models.StatusDeclined},

			// returned → pending review (applicant re-submission)
			{Name: EventResubmit, Src: []string{models.StatusReturned}, Dst: models.StatusPendingReview},
		}
	}

	afsm.fsm = fsm.NewFSM(app.Status, events, fsm.Callbacks{})
	return afsm
}

// Fire validates and applies the named event, syncing the application status.
// A self-loop (credit check pass) is treated as a successful transition even
// though the status value does not change.
func (a *ApplicationFSM) Fire(ctx context.Context, event string) error {
	if a.app.IsFinalized() {
		return fmt.Errorf("application %s is finalized in state %s", a.app.ReferenceID, a.app.Status)
	}

	if err := a.fsm.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if errors.As(err, &noTransition) {
			// dst == src, the event itself was legal
			return nil
		}
		return fmt.Errorf("cannot apply %s in state %s: %w", event, a.app.Status, err)
	}

	a.app.Status = a.fsm.Current()
	return nil
}

// Current returns the current state
func (a *ApplicationFSM) Current() string {
	return a.fsm.Current()
}

// Can checks if an event is legal from the current state
func (a *ApplicationFSM) Can(event string) bool {
	if a.app.IsFinalized() {
		return false
	}
	return a.fsm.Can(event)
}
