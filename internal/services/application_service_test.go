package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
	"github.com/noltfinance/nolt-ops-api/internal/statemachine"
)

// mockApplicationRepo keeps applications in memory and enforces the same
// expected-status guard as the real repository
type mockApplicationRepo struct {
	repository.ApplicationRepository
	apps       map[uint]*models.Application
	entries    []models.AuditEntry
	forceStale bool
}

func newMockApplicationRepo(apps ...*models.Application) *mockApplicationRepo {
	repo := &mockApplicationRepo{apps: make(map[uint]*models.Application)}
	for _, app := range apps {
		copied := *app
		repo.apps[app.ID] = &copied
	}
	return repo
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id uint) (*models.Application, error) {
	app, ok := m.apps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *app
	return &copied, nil
}

func (m *mockApplicationRepo) FindByIDWithAuditLog(ctx context.Context, id uint) (*models.Application, error) {
	return m.FindByID(ctx, id)
}

func (m *mockApplicationRepo) UpdateWithExpectedStatus(ctx context.Context, app *models.Application, expectedStatus string, entry *models.AuditEntry) error {
	stored, ok := m.apps[app.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if m.forceStale || stored.Status != expectedStatus {
		return repository.ErrStaleRecord
	}
	copied := *app
	m.apps[app.ID] = &copied
	entry.ApplicationID = app.ID
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockApplicationRepo) UpdateDetails(ctx context.Context, app *models.Application) error {
	stored, ok := m.apps[app.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if m.forceStale || stored.Status != app.Status {
		return repository.ErrStaleRecord
	}
	stored.ApplicantName = app.ApplicantName
	stored.ApplicantEmail = app.ApplicantEmail
	stored.ApplicantPhone = app.ApplicantPhone
	stored.Address = app.Address
	stored.Occupation = app.Occupation
	return nil
}

func (m *mockApplicationRepo) ReassignOwner(ctx context.Context, app *models.Application, newOwnerID uint, newOwnerName string, entry *models.AuditEntry) error {
	stored, ok := m.apps[app.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Status != app.Status {
		return repository.ErrStaleRecord
	}
	stored.OwnerID = &newOwnerID
	stored.OwnerName = newOwnerName
	app.OwnerID = &newOwnerID
	app.OwnerName = newOwnerName
	entry.ApplicationID = app.ID
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockApplicationRepo) stored(id uint) *models.Application {
	return m.apps[id]
}

type mockUserRepo struct {
	repository.UserRepository
	users   map[uint]*models.User
	teamIDs map[uint][]uint
}

func (m *mockUserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *mockUserRepo) FindTeamMemberIDs(ctx context.Context, leadID uint) ([]uint, error) {
	return m.teamIDs[leadID], nil
}

type mockAuditRepo struct {
	repository.AuditRepository
	entries []models.AuditEntry
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *models.AuditEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepo) FindByApplication(ctx context.Context, applicationID uint) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ApplicationID == applicationID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func newTestService(apps ...*models.Application) (*ApplicationService, *mockApplicationRepo, *mockAuditRepo) {
	appRepo := newMockApplicationRepo(apps...)
	userRepo := &mockUserRepo{
		users: map[uint]*models.User{
			9: {ID: 9, Email: "sola@nolt.finance", FullName: "Sola Ajayi", Role: models.RoleSalesOfficer, Status: models.StatusActive},
		},
	}
	auditRepo := &mockAuditRepo{}
	svc := NewApplicationService(appRepo, userRepo, auditRepo, nil, nil)
	return svc, appRepo, auditRepo
}

func ownerID(id uint) *uint { return &id }

var (
	creditActor  = Actor{ID: 7, Name: "Kunle Bello", Role: models.RoleCredit}
	controlActor = Actor{ID: 8, Name: "Ngozi Eze", Role: models.RoleInternalControl}
	financeActor = Actor{ID: 6, Name: "Tunde Musa", Role: models.RoleFinance}
	managerActor = Actor{ID: 2, Name: "Bisi Ade", Role: models.RoleSalesManager}
	officerActor = Actor{ID: 5, Name: "Femi Ojo", Role: models.RoleSalesOfficer}
)

func pendingLoan() *models.Application {
	return &models.Application{
		ID:            1,
		ReferenceID:   "LN-1001",
		Type:          models.TypeLoan,
		Status:        models.StatusPendingReview,
		Amount:        "₦750,000",
		ApplicantName: "Ada Obi",
		OwnerID:       ownerID(5),
		OwnerName:     "Femi Ojo",
	}
}

func TestCreditReviewScenario(t *testing.T) {
	ctx := context.Background()
	svc, appRepo, _ := newTestService(pendingLoan())

	// missing eligible amount fails validation and writes nothing
	_, err := svc.ApplyTransition(ctx, creditActor, 1, models.StatusPendingReview, statemachine.EventCreditCheckPass, TransitionPayload{})
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Empty(t, appRepo.entries)
	assert.Equal(t, models.StatusPendingReview, appRepo.stored(1).Status)

	// supplying the amount moves the loan into internal audit
	app, err := svc.ApplyTransition(ctx, creditActor, 1, models.StatusPendingReview, statemachine.EventCreditCheckPass, TransitionPayload{EligibleAmount: "₦400,000"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInternalAudit, app.Status)
	require.NotNil(t, app.EligibleAmount)
	assert.Equal(t, "₦400,000", *app.EligibleAmount)
	require.Len(t, appRepo.entries, 1)
	assert.Equal(t, models.AuditActionCreditCheckPassed, appRepo.entries[0].Action)

	// internal control passes the compliance audit
	app, err = svc.ApplyTransition(ctx, controlActor, 1, models.StatusInternalAudit, statemachine.EventAuditPass, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingDisbursement, app.Status)

	// finance confirms the payout
	app, err = svc.ApplyTransition(ctx, financeActor, 1, models.StatusPendingDisbursement, statemachine.EventConfirmDisbursement, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, app.Status)

	// exactly one audit entry per successful transition
	assert.Len(t, appRepo.entries, 3)

	// the terminal state rejects everything afterwards
	_, err = svc.ApplyTransition(ctx, managerActor, 1, models.StatusApproved, statemachine.EventDecline, TransitionPayload{Comment: "too late"})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, appRepo.entries, 3)
	assert.Equal(t, models.StatusApproved, appRepo.stored(1).Status)
}

func TestDeclineRequiresComment(t *testing.T) {
	ctx := context.Background()

	for _, comment := range []string{"", "   ", "\t"} {
		svc, appRepo, _ := newTestService(pendingLoan())
		_, err := svc.ApplyTransition(ctx, managerActor, 1, models.StatusPendingReview, statemachine.EventDecline, TransitionPayload{Comment: comment})
		require.ErrorIs(t, err, ErrValidationFailed, "comment %q", comment)
		assert.Empty(t, appRepo.entries)
		assert.Equal(t, models.StatusPendingReview, appRepo.stored(1).Status)
	}

	svc, appRepo, _ := newTestService(pendingLoan())
	app, err := svc.ApplyTransition(ctx, managerActor, 1, models.StatusPendingReview, statemachine.EventDecline, TransitionPayload{Comment: "Incomplete KYC documents"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, app.Status)
	require.Len(t, appRepo.entries, 1)
	assert.Equal(t, models.AuditActionDeclined, appRepo.entries[0].Action)
	require.NotNil(t, appRepo.entries[0].Comment)
	assert.Equal(t, "Incomplete KYC documents", *appRepo.entries[0].Comment)
}

func TestEmptyActorNameIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, appRepo, _ := newTestService(pendingLoan())

	anonymous := Actor{ID: 2, Role: models.RoleSalesManager}
	_, err := svc.ApplyTransition(ctx, anonymous, 1, models.StatusPendingReview, statemachine.EventDecline, TransitionPayload{Comment: "no name"})
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Empty(t, appRepo.entries)
}

func TestStaleExpectedStatusFailsWithConflict(t *testing.T) {
	ctx := context.Background()
	loan := pendingLoan()
	loan.Status = models.StatusInternalAudit
	svc, appRepo, _ := newTestService(loan)

	// caller still believes the application sits in docs verification
	_, err := svc.ApplyTransition(ctx, managerActor, 1, models.StatusDocsVerification, statemachine.EventDecline, TransitionPayload{Comment: "stale view"})
	require.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, appRepo.entries)
	assert.Equal(t, models.StatusInternalAudit, appRepo.stored(1).Status)
}

func TestBlankExpectedStatusIsRejected(t *testing.T) {
	ctx := context.Background()

	for _, expected := range []string{"", "   "} {
		svc, appRepo, _ := newTestService(pendingLoan())
		_, err := svc.ApplyTransition(ctx, managerActor, 1, expected, statemachine.EventDecline, TransitionPayload{Comment: "no snapshot"})
		require.ErrorIs(t, err, ErrValidationFailed, "expected status %q", expected)
		assert.Empty(t, appRepo.entries)
		assert.Equal(t, models.StatusPendingReview, appRepo.stored(1).Status)
	}
}

func TestConcurrentPersistFailsWithConflict(t *testing.T) {
	ctx := context.Background()
	svc, appRepo, _ := newTestService(pendingLoan())
	appRepo.forceStale = true

	_, err := svc.ApplyTransition(ctx, managerActor, 1, models.StatusPendingReview, statemachine.EventDecline, TransitionPayload{Comment: "lost the race"})
	require.ErrorIs(t, err, ErrConflict)
	assert.Empty(t, appRepo.entries)
}

func TestUnauthorizedRoleWritesNothing(t *testing.T) {
	ctx := context.Background()
	loan := pendingLoan()
	loan.Status = models.StatusInternalAudit
	svc, appRepo, _ := newTestService(loan)

	// the owning sales officer can see the loan but cannot audit it
	_, err := svc.ApplyTransition(ctx, officerActor, 1, models.StatusInternalAudit, statemachine.EventAuditPass, TransitionPayload{})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, appRepo.entries)
	assert.Equal(t, models.StatusInternalAudit, appRepo.stored(1).Status)
}

func TestInvisibleApplicationReportsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(pendingLoan())

	// finance only sees payout stages, so a pending review loan does not exist
	// from its point of view
	_, err := svc.Get(ctx, financeActor, 1)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ApplyTransition(ctx, financeActor, 1, models.StatusPendingReview, statemachine.EventDecline, TransitionPayload{Comment: "should not matter"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnknownApplicationReportsNotFound(t *testing.T) {
	svc, _, _ := newTestService(pendingLoan())
	_, err := svc.Get(context.Background(), managerActor, 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevealFieldAuditsAccess(t *testing.T) {
	ctx := context.Background()
	loan := pendingLoan()
	loan.BVN = "22345678901"
	svc, _, auditRepo := newTestService(loan)

	value, err := svc.RevealField(ctx, managerActor, 1, "bvn")
	require.NoError(t, err)
	assert.Equal(t, "22345678901", value)

	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, models.AuditActionSensitiveReveal, auditRepo.entries[0].Action)
	assert.Equal(t, managerActor.Name, auditRepo.entries[0].Actor)

	_, err = svc.RevealField(ctx, managerActor, 1, "ssn")
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Len(t, auditRepo.entries, 1)
}

func TestReassignOwner(t *testing.T) {
	ctx := context.Background()
	svc, appRepo, _ := newTestService(pendingLoan())

	app, err := svc.ReassignOwner(ctx, managerActor, 1, 9)
	require.NoError(t, err)
	require.NotNil(t, app.OwnerID)
	assert.Equal(t, uint(9), *app.OwnerID)
	assert.Equal(t, "Sola Ajayi", app.OwnerName)
	require.Len(t, appRepo.entries, 1)
	assert.Equal(t, models.AuditActionReassignedOwner, appRepo.entries[0].Action)
}

func TestReassignOwnerLockedApplication(t *testing.T) {
	ctx := context.Background()
	loan := pendingLoan()
	loan.Status = models.StatusPendingDisbursement
	svc, appRepo, _ := newTestService(loan)

	_, err := svc.ReassignOwner(ctx, managerActor, 1, 9)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, appRepo.entries)
}

func TestReassignOwnerUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(pendingLoan())

	_, err := svc.ReassignOwner(ctx, managerActor, 1, 404)
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestUpdateDetailsTouchesOnlyApplicantFields(t *testing.T) {
	ctx := context.Background()
	amount := "₦400,000"
	loan := pendingLoan()
	loan.EligibleAmount = &amount
	svc, appRepo, _ := newTestService(loan)

	phone := "+2348012345678"
	app, err := svc.UpdateDetails(ctx, officerActor, 1, DetailsUpdate{ApplicantPhone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, app.ApplicantPhone)

	stored := appRepo.stored(1)
	assert.Equal(t, phone, stored.ApplicantPhone)
	assert.Equal(t, models.StatusPendingReview, stored.Status)
	require.NotNil(t, stored.EligibleAmount)
	assert.Equal(t, amount, *stored.EligibleAmount)
}

func TestUpdateDetailsLosesRaceAgainstTransition(t *testing.T) {
	ctx := context.Background()
	svc, appRepo, _ := newTestService(pendingLoan())

	// the status moves between the edit's read and its write
	appRepo.forceStale = true

	phone := "+2348012345678"
	_, err := svc.UpdateDetails(ctx, officerActor, 1, DetailsUpdate{ApplicantPhone: &phone})
	require.ErrorIs(t, err, ErrConflict)

	stored := appRepo.stored(1)
	assert.Empty(t, stored.ApplicantPhone)
	assert.Equal(t, models.StatusPendingReview, stored.Status)
}

func TestUpdateDetailsRespectsLock(t *testing.T) {
	ctx := context.Background()
	loan := pendingLoan()
	loan.Status = models.StatusApproved
	svc, _, _ := newTestService(loan)

	name := "New Name"
	_, err := svc.UpdateDetails(ctx, officerActor, 1, DetailsUpdate{ApplicantName: &name})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyPaymentMarksInvestmentVerified(t *testing.T) {
	ctx := context.Background()
	inv := &models.Application{
		ID:            2,
		ReferenceID:   "INV-2001",
		Type:          models.TypeInvestment,
		Status:        models.StatusPendingDisbursement,
		Amount:        "₦1,000,000",
		ApplicantName: "Chidi Okeke",
		OwnerID:       ownerID(5),
	}
	svc, appRepo, _ := newTestService(inv)

	app, err := svc.ApplyTransition(ctx, financeActor, 2, models.StatusPendingDisbursement, statemachine.EventVerifyPayment, TransitionPayload{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, app.Status)
	require.NotNil(t, app.PaymentStatus)
	assert.Equal(t, models.PaymentStatusVerified, *app.PaymentStatus)
	require.Len(t, appRepo.entries, 1)
	assert.Equal(t, models.AuditActionPaymentVerified, appRepo.entries[0].Action)
}

func TestAuditLogNewestFirst(t *testing.T) {
	ctx := context.Background()
	loan := pendingLoan()
	loan.BVN = "22345678901"
	loan.NIN = "90123456789"
	svc, _, _ := newTestService(loan)

	_, err := svc.RevealField(ctx, managerActor, 1, "bvn")
	require.NoError(t, err)
	_, err = svc.RevealField(ctx, managerActor, 1, "nin")
	require.NoError(t, err)

	entries, err := svc.AuditLog(ctx, managerActor, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Comment)
	assert.Contains(t, *entries[0].Comment, "NIN")
	require.NotNil(t, entries[1].Comment)
	assert.Contains(t, *entries[1].Comment, "BVN")
}

func TestCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	err := svc.Create(ctx, &models.Application{Type: "mortgage", ApplicantName: "Ada", Amount: "₦1"})
	require.ErrorIs(t, err, ErrValidationFailed)

	err = svc.Create(ctx, &models.Application{Type: models.TypeLoan, ApplicantName: "", Amount: "₦1"})
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestIllegalEdgeFailsWithInvalidTransition(t *testing.T) {
	ctx := context.Background()
	svc, appRepo, _ := newTestService(pendingLoan())
	admin := Actor{ID: 1, Name: "Root", Role: models.RoleSuperAdmin}

	// authorized role, but disbursement cannot be confirmed from pending review
	_, err := svc.ApplyTransition(ctx, admin, 1, models.StatusPendingReview, statemachine.EventConfirmDisbursement, TransitionPayload{})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, appRepo.entries)
	assert.Equal(t, models.StatusPendingReview, appRepo.stored(1).Status)
}
