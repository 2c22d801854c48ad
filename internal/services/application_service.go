package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/noltfinance/nolt-ops-api/internal/jobs"
	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/policy"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
	"github.com/noltfinance/nolt-ops-api/internal/statemachine"
)

// Actor identifies the caller of an operation. Handlers build it from the
// authenticated session.
type Actor struct {
	ID   uint
	Name string
	Role string
}

// TransitionPayload carries the optional inputs a transition may require
type TransitionPayload struct {
	Comment        string `json:"comment"`
	EligibleAmount string `json:"eligible_amount"`
}

// DetailsUpdate carries the editable applicant fields. Nil pointers leave the
// stored value untouched.
type DetailsUpdate struct {
	ApplicantName  *string `json:"applicant_name"`
	ApplicantEmail *string `json:"applicant_email"`
	ApplicantPhone *string `json:"applicant_phone"`
	Address        *string `json:"address"`
	Occupation     *string `json:"occupation"`
}

// ApplicationService owns the workflow engine: every status change funnels
// through ApplyTransition so that validation, authorization, the transition
// table and the audit trail cannot drift apart.
type ApplicationService struct {
	repo            repository.ApplicationRepository
	userRepo        repository.UserRepository
	auditRepo       repository.AuditRepository
	notificationSvc *NotificationService
	worker          *jobs.Worker
}

// NewApplicationService creates a new application service
func NewApplicationService(
	repo repository.ApplicationRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	notificationSvc *NotificationService,
	worker *jobs.Worker,
) *ApplicationService {
	return &ApplicationService{
		repo:            repo,
		userRepo:        userRepo,
		auditRepo:       auditRepo,
		notificationSvc: notificationSvc,
		worker:          worker,
	}
}

// VisibleQueue lists the applications the actor is allowed to see, with
// optional type/status/search filters applied inside that scope
func (s *ApplicationService) VisibleQueue(ctx context.Context, actor Actor, query *repository.ApplicationQuery) ([]models.Application, int64, error) {
	scope, err := s.scopeFor(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	query.Scope = scope
	return s.repo.List(ctx, query)
}

// Get returns one application with its audit trail, or ErrNotFound if it does
// not exist or the actor cannot see it
func (s *ApplicationService) Get(ctx context.Context, actor Actor, id uint) (*models.Application, error) {
	app, _, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	full, err := s.repo.FindByIDWithAuditLog(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("loading application %d: %w", app.ID, err)
	}
	return full, nil
}

// ActionsFor returns the actions the actor may perform on the application
// right now. Unknown or invisible applications yield ErrNotFound.
func (s *ApplicationService) ActionsFor(ctx context.Context, actor Actor, id uint) ([]policy.Action, error) {
	app, teamIDs, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return policy.AvailableActions(actor.Role, actor.ID, teamIDs, app), nil
}

// Create registers a newly submitted application in the queue
func (s *ApplicationService) Create(ctx context.Context, app *models.Application) error {
	if app.Type != models.TypeLoan && app.Type != models.TypeInvestment {
		return fmt.Errorf("%w: unknown application type %q", ErrValidationFailed, app.Type)
	}
	if strings.TrimSpace(app.ApplicantName) == "" || strings.TrimSpace(app.Amount) == "" {
		return fmt.Errorf("%w: applicant name and amount are required", ErrValidationFailed)
	}

	app.Status = models.StatusPendingReview
	if app.DateSubmitted.IsZero() {
		app.DateSubmitted = time.Now()
	}
	if app.ReferenceID == "" {
		app.ReferenceID = newReferenceID(app.Type)
	}

	return s.repo.Create(ctx, app)
}

// ApplyTransition is the single entry point for every workflow status change.
// It validates the expected status, the actor's authorization and the payload,
// fires the state machine, and persists the new status together with exactly
// one audit entry in one transaction. A failed attempt writes nothing. The
// caller must pass the status it last observed; a blank snapshot is rejected
// so the conflict guard cannot be bypassed.
func (s *ApplicationService) ApplyTransition(ctx context.Context, actor Actor, id uint, expectedStatus, kind string, payload TransitionPayload) (*models.Application, error) {
	app, teamIDs, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(expectedStatus) == "" {
		return nil, fmt.Errorf("%w: expected status is required", ErrValidationFailed)
	}
	if app.IsFinalized() {
		return nil, fmt.Errorf("%w: application %s is %s", ErrInvalidTransition, app.ReferenceID, app.Status)
	}
	if app.Status != expectedStatus {
		return nil, fmt.Errorf("%w: expected %s, found %s", ErrConflict, expectedStatus, app.Status)
	}
	if !policy.Authorize(actor.Role, actor.ID, teamIDs, app, kind) {
		return nil, fmt.Errorf("%w: role %s cannot %s application %s", ErrUnauthorized, actor.Role, kind, app.ReferenceID)
	}
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if err := validatePayload(kind, payload); err != nil {
		return nil, err
	}

	priorStatus := app.Status

	machine := statemachine.NewApplicationFSM(app)
	if err := machine.Fire(ctx, kind); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}

	switch kind {
	case statemachine.EventCreditCheckPass:
		amount := strings.TrimSpace(payload.EligibleAmount)
		app.EligibleAmount = &amount
	case statemachine.EventVerifyPayment:
		verified := models.PaymentStatusVerified
		app.PaymentStatus = &verified
	}

	entry := s.newEntry(app, actor, auditActionFor(kind, app.Type), payload.Comment)

	if err := s.repo.UpdateWithExpectedStatus(ctx, app, priorStatus, entry); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			return nil, fmt.Errorf("%w: application %s", ErrConflict, app.ReferenceID)
		}
		return nil, fmt.Errorf("persisting transition: %w", err)
	}

	s.notifyTransition(app, actor, kind, payload.Comment)

	return s.repo.FindByIDWithAuditLog(ctx, app.ID)
}

// ReassignOwner moves accountability for the application to another staff
// member. Locked applications cannot be reassigned.
func (s *ApplicationService) ReassignOwner(ctx context.Context, actor Actor, id uint, newOwnerID uint) (*models.Application, error) {
	app, teamIDs, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.Authorize(actor.Role, actor.ID, teamIDs, app, policy.ActionReassignOwner) {
		return nil, fmt.Errorf("%w: role %s cannot reassign application %s", ErrUnauthorized, actor.Role, app.ReferenceID)
	}
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	newOwner, err := s.userRepo.FindByID(ctx, newOwnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: new owner %d does not exist", ErrValidationFailed, newOwnerID)
		}
		return nil, err
	}
	if !newOwner.IsActive() {
		return nil, fmt.Errorf("%w: new owner %s is not active", ErrValidationFailed, newOwner.Email)
	}

	comment := fmt.Sprintf("Owner changed from %s to %s", app.OwnerName, newOwner.FullName)
	entry := s.newEntry(app, actor, models.AuditActionReassignedOwner, comment)

	if err := s.repo.ReassignOwner(ctx, app, newOwner.ID, newOwner.FullName, entry); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			return nil, fmt.Errorf("%w: application %s", ErrConflict, app.ReferenceID)
		}
		return nil, err
	}

	if s.notificationSvc != nil && s.worker != nil {
		appRef := app.ReferenceID
		ownerID := newOwner.ID
		s.worker.EnqueueAsync(func(ctx context.Context) error {
			return s.notificationSvc.NotifyOwnerReassigned(ctx, ownerID, appRef)
		})
	}

	return s.repo.FindByIDWithAuditLog(ctx, app.ID)
}

// UpdateDetails edits the inert applicant payload. The workflow status is
// untouched; locked applications reject the edit.
func (s *ApplicationService) UpdateDetails(ctx context.Context, actor Actor, id uint, update DetailsUpdate) (*models.Application, error) {
	app, teamIDs, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.Authorize(actor.Role, actor.ID, teamIDs, app, policy.ActionEditDetails) {
		return nil, fmt.Errorf("%w: role %s cannot edit application %s", ErrUnauthorized, actor.Role, app.ReferenceID)
	}

	if update.ApplicantName != nil {
		if strings.TrimSpace(*update.ApplicantName) == "" {
			return nil, fmt.Errorf("%w: applicant name cannot be blank", ErrValidationFailed)
		}
		app.ApplicantName = *update.ApplicantName
	}
	if update.ApplicantEmail != nil {
		app.ApplicantEmail = *update.ApplicantEmail
	}
	if update.ApplicantPhone != nil {
		app.ApplicantPhone = *update.ApplicantPhone
	}
	if update.Address != nil {
		app.Address = update.Address
	}
	if update.Occupation != nil {
		app.Occupation = update.Occupation
	}

	if err := s.repo.UpdateDetails(ctx, app); err != nil {
		if errors.Is(err, repository.ErrStaleRecord) {
			return nil, fmt.Errorf("%w: application %s", ErrConflict, app.ReferenceID)
		}
		return nil, err
	}
	return app, nil
}

// RevealField returns the raw value of a masked identity field and records
// the access in the audit trail. The reveal itself is the audited event; the
// entry is written even though no status changes.
func (s *ApplicationService) RevealField(ctx context.Context, actor Actor, id uint, field string) (string, error) {
	app, _, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if err := validateActor(actor); err != nil {
		return "", err
	}

	var value string
	switch strings.ToLower(field) {
	case "bvn":
		value = app.BVN
	case "nin":
		value = app.NIN
	default:
		return "", fmt.Errorf("%w: unknown sensitive field %q", ErrValidationFailed, field)
	}

	comment := fmt.Sprintf("Revealed %s on %s", strings.ToUpper(field), app.ReferenceID)
	entry := s.newEntry(app, actor, models.AuditActionSensitiveReveal, comment)
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		return "", fmt.Errorf("recording reveal: %w", err)
	}

	return value, nil
}

// AuditLog returns the application's trail, newest first
func (s *ApplicationService) AuditLog(ctx context.Context, actor Actor, id uint) ([]models.AuditEntry, error) {
	app, _, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.auditRepo.FindByApplication(ctx, app.ID)
}

// RemindStaleQueues notifies owners about applications idling in an active
// status. Runs on a schedule from the worker.
func (s *ApplicationService) RemindStaleQueues(ctx context.Context, olderThanDays int) error {
	statuses := []string{
		models.StatusPendingReview,
		models.StatusDocsVerification,
		models.StatusInternalAudit,
		models.StatusReturned,
	}

	stale, err := s.repo.FindStale(ctx, statuses, olderThanDays)
	if err != nil {
		return fmt.Errorf("finding stale applications: %w", err)
	}

	for i := range stale {
		app := &stale[i]
		if app.OwnerID == nil {
			continue
		}
		if err := s.notificationSvc.NotifyStaleQueue(ctx, *app.OwnerID, app.ReferenceID, app.Status); err != nil {
			return err
		}
	}
	return nil
}

// Stats summarizes the queue for the dashboard
func (s *ApplicationService) Stats(ctx context.Context) (*repository.ApplicationStats, error) {
	return s.repo.GetStats(ctx)
}

// loadVisible fetches the application and checks the actor may see it. An
// invisible record is reported as ErrNotFound so its existence does not leak.
func (s *ApplicationService) loadVisible(ctx context.Context, actor Actor, id uint) (*models.Application, []uint, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: application %d", ErrNotFound, id)
		}
		return nil, nil, err
	}

	teamIDs, err := s.teamScope(ctx, actor)
	if err != nil {
		return nil, nil, err
	}

	if !policy.VisibleTo(actor.Role, actor.ID, teamIDs, app) {
		return nil, nil, fmt.Errorf("%w: application %d", ErrNotFound, id)
	}
	return app, teamIDs, nil
}

func (s *ApplicationService) scopeFor(ctx context.Context, actor Actor) (policy.QueueFilter, error) {
	teamIDs, err := s.teamScope(ctx, actor)
	if err != nil {
		return policy.QueueFilter{}, err
	}
	return policy.QueueFilterFor(actor.Role, actor.ID, teamIDs), nil
}

func (s *ApplicationService) teamScope(ctx context.Context, actor Actor) ([]uint, error) {
	if actor.Role != models.RoleSalesTeamLead {
		return nil, nil
	}
	return s.userRepo.FindTeamMemberIDs(ctx, actor.ID)
}

func (s *ApplicationService) newEntry(app *models.Application, actor Actor, action, comment string) *models.AuditEntry {
	entry := &models.AuditEntry{
		EntryID:       uuid.NewString(),
		ApplicationID: app.ID,
		Actor:         actor.Name,
		ActorID:       actor.ID,
		Action:        action,
	}
	if strings.TrimSpace(comment) != "" {
		c := comment
		entry.Comment = &c
	}
	return entry
}

func (s *ApplicationService) notifyTransition(app *models.Application, actor Actor, kind, comment string) {
	if s.notificationSvc == nil || s.worker == nil || app.OwnerID == nil {
		return
	}

	ownerID := *app.OwnerID
	appRef := app.ReferenceID

	var notify func(ctx context.Context) error
	switch kind {
	case statemachine.EventDecline:
		notify = func(ctx context.Context) error {
			return s.notificationSvc.NotifyApplicationDeclined(ctx, ownerID, appRef, comment)
		}
	case statemachine.EventReturn:
		notify = func(ctx context.Context) error {
			return s.notificationSvc.NotifyApplicationReturned(ctx, ownerID, appRef, comment)
		}
	case statemachine.EventConfirmDisbursement, statemachine.EventVerifyPayment:
		notify = func(ctx context.Context) error {
			return s.notificationSvc.NotifyApplicationApproved(ctx, ownerID, appRef)
		}
	default:
		return
	}

	s.worker.EnqueueAsync(notify)
}

// validateActor rejects a session with no usable actor name; every audit
// entry must name who acted
func validateActor(actor Actor) error {
	if strings.TrimSpace(actor.Name) == "" {
		return fmt.Errorf("%w: actor name is required", ErrValidationFailed)
	}
	return nil
}

// validatePayload enforces the per-action required inputs
func validatePayload(kind string, payload TransitionPayload) error {
	switch kind {
	case statemachine.EventDecline, statemachine.EventReturn:
		if strings.TrimSpace(payload.Comment) == "" {
			return fmt.Errorf("%w: a comment is required to %s an application", ErrValidationFailed, kind)
		}
	case statemachine.EventCreditCheckPass:
		if strings.TrimSpace(payload.EligibleAmount) == "" {
			return fmt.Errorf("%w: eligible amount is required for a credit check", ErrValidationFailed)
		}
	}
	return nil
}

// auditActionFor maps a transition onto its audit trail action
func auditActionFor(kind, appType string) string {
	switch kind {
	case statemachine.EventVerifyDocs:
		if appType == models.TypeInvestment {
			return models.AuditActionCustomerVerified
		}
		return models.AuditActionDocsVerified
	case statemachine.EventAdvanceToAudit:
		return models.AuditActionAuditQueued
	case statemachine.EventCreditCheckPass:
		return models.AuditActionCreditCheckPassed
	case statemachine.EventAuditPass:
		return models.AuditActionAuditPassed
	case statemachine.EventConfirmDisbursement:
		return models.AuditActionFundsDisbursed
	case statemachine.EventVerifyPayment:
		return models.AuditActionPaymentVerified
	case statemachine.EventDecline:
		return models.AuditActionDeclined
	case statemachine.EventReturn:
		return models.AuditActionReturned
	case statemachine.EventResubmit:
		return models.AuditActionResubmitted
	}
	return strings.ToUpper(kind)
}

func newReferenceID(appType string) string {
	prefix := "LN"
	if appType == models.TypeInvestment {
		prefix = "INV"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s-%s", prefix, suffix)
}
