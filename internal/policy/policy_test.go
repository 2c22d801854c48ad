package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noltfinance/nolt-ops-api/internal/models"
)

func uintPtr(v uint) *uint { return &v }

func seedQueue() []models.Application {
	return []models.Application{
		{ID: 1, ReferenceID: "LN-1001", Type: models.TypeLoan, Status: models.StatusPendingReview, OwnerID: uintPtr(5)},
		{ID: 2, ReferenceID: "LN-1002", Type: models.TypeLoan, Status: models.StatusInternalAudit, OwnerID: uintPtr(5)},
		{ID: 3, ReferenceID: "INV-2001", Type: models.TypeInvestment, Status: models.StatusPendingDisbursement, OwnerID: uintPtr(5)},
		{ID: 4, ReferenceID: "LN-1003", Type: models.TypeLoan, Status: models.StatusApproved, OwnerID: uintPtr(9)},
		{ID: 5, ReferenceID: "INV-2002", Type: models.TypeInvestment, Status: models.StatusPendingReview, OwnerID: uintPtr(9)},
	}
}

func TestSalesOfficerSeesOnlyOwnApplications(t *testing.T) {
	visible := FilterVisible(models.RoleSalesOfficer, 5, nil, seedQueue())

	require.Len(t, visible, 3)
	for _, app := range visible {
		require.NotNil(t, app.OwnerID)
		assert.Equal(t, uint(5), *app.OwnerID)
	}
}

func TestFinanceSeesOnlyDisbursementStages(t *testing.T) {
	seed := []models.Application{
		{ID: 1, Type: models.TypeLoan, Status: models.StatusPendingReview},
		{ID: 2, Type: models.TypeLoan, Status: models.StatusInternalAudit},
		{ID: 3, Type: models.TypeLoan, Status: models.StatusPendingDisbursement},
		{ID: 4, Type: models.TypeLoan, Status: models.StatusApproved},
	}

	visible := FilterVisible(models.RoleFinance, 7, nil, seed)

	require.Len(t, visible, 2)
	assert.Equal(t, uint(3), visible[0].ID)
	assert.Equal(t, uint(4), visible[1].ID)
}

func TestCreditNeverSeesInvestments(t *testing.T) {
	for _, app := range seedQueue() {
		if app.Type != models.TypeInvestment {
			continue
		}
		assert.False(t, VisibleTo(models.RoleCredit, 7, nil, &app), "ref %s", app.ReferenceID)
		assert.Empty(t, AvailableActions(models.RoleCredit, 7, nil, &app), "ref %s", app.ReferenceID)
	}
}

func TestCreditSeesLoansInReviewStages(t *testing.T) {
	app := models.Application{Type: models.TypeLoan, Status: models.StatusInternalAudit}
	assert.True(t, VisibleTo(models.RoleCredit, 7, nil, &app))

	app.Status = models.StatusApproved
	assert.False(t, VisibleTo(models.RoleCredit, 7, nil, &app))
}

func TestTeamLeadScope(t *testing.T) {
	queue := seedQueue()

	visible := FilterVisible(models.RoleSalesTeamLead, 3, []uint{5}, queue)
	require.Len(t, visible, 3)

	// a lead with no reports sees nothing
	assert.Empty(t, FilterVisible(models.RoleSalesTeamLead, 3, nil, queue))
}

func TestUnknownRoleFailsClosed(t *testing.T) {
	queue := seedQueue()

	assert.Empty(t, FilterVisible("auditor", 1, nil, queue))
	assert.Empty(t, AvailableActions("auditor", 1, nil, &queue[0]))
	assert.False(t, CanNavigate("auditor", "dashboard"))
}

func TestAvailableActionsInternalControl(t *testing.T) {
	app := models.Application{Type: models.TypeLoan, Status: models.StatusInternalAudit}

	kinds := actionKinds(AvailableActions(models.RoleInternalControl, 7, nil, &app))
	assert.Contains(t, kinds, ActionAuditPass)
	assert.Contains(t, kinds, ActionReturn)
	assert.NotContains(t, kinds, ActionConfirmDisbursement)

	app.Status = models.StatusPendingReview
	kinds = actionKinds(AvailableActions(models.RoleInternalControl, 7, nil, &app))
	assert.NotContains(t, kinds, ActionAuditPass)
}

func TestAvailableActionsFinanceByType(t *testing.T) {
	loan := models.Application{Type: models.TypeLoan, Status: models.StatusPendingDisbursement}
	kinds := actionKinds(AvailableActions(models.RoleFinance, 7, nil, &loan))
	assert.Contains(t, kinds, ActionConfirmDisbursement)
	assert.NotContains(t, kinds, ActionVerifyPayment)

	inv := models.Application{Type: models.TypeInvestment, Status: models.StatusPendingDisbursement}
	kinds = actionKinds(AvailableActions(models.RoleFinance, 7, nil, &inv))
	assert.Contains(t, kinds, ActionVerifyPayment)
	assert.NotContains(t, kinds, ActionConfirmDisbursement)
}

func TestAvailableActionsCreditRequiresMissingEligibleAmount(t *testing.T) {
	app := models.Application{Type: models.TypeLoan, Status: models.StatusInternalAudit}

	kinds := actionKinds(AvailableActions(models.RoleCredit, 7, nil, &app))
	assert.Contains(t, kinds, ActionCreditCheckPass)

	amount := "₦400,000"
	app.EligibleAmount = &amount
	kinds = actionKinds(AvailableActions(models.RoleCredit, 7, nil, &app))
	assert.NotContains(t, kinds, ActionCreditCheckPass)
}

func TestCreditCheckActionRequiresEligibleAmountInput(t *testing.T) {
	app := models.Application{Type: models.TypeLoan, Status: models.StatusInternalAudit}

	for _, a := range AvailableActions(models.RoleCredit, 7, nil, &app) {
		if a.Kind == ActionCreditCheckPass {
			assert.True(t, a.RequiresEligibleAmount)
			return
		}
	}
	t.Fatal("credit check action not offered")
}

func TestLockedStatusesDisableEditAndReassign(t *testing.T) {
	locked := []models.Application{
		{Type: models.TypeLoan, Status: models.StatusPendingDisbursement},
		{Type: models.TypeLoan, Status: models.StatusApproved},
		{Type: models.TypeLoan, Status: models.StatusDeclined},
		{Type: models.TypeInvestment, Status: models.StatusInternalAudit},
	}
	for _, app := range locked {
		kinds := actionKinds(AvailableActions(models.RoleSuperAdmin, 1, nil, &app))
		assert.NotContains(t, kinds, ActionEditDetails, "status %s %s", app.Type, app.Status)
		assert.NotContains(t, kinds, ActionReassignOwner, "status %s %s", app.Type, app.Status)
	}

	open := models.Application{Type: models.TypeLoan, Status: models.StatusInternalAudit}
	kinds := actionKinds(AvailableActions(models.RoleSuperAdmin, 1, nil, &open))
	assert.Contains(t, kinds, ActionEditDetails)
	assert.Contains(t, kinds, ActionReassignOwner)
}

func TestDeclinePolicy(t *testing.T) {
	app := models.Application{Type: models.TypeLoan, Status: models.StatusPendingReview}

	assert.Contains(t, actionKinds(AvailableActions(models.RoleSalesManager, 1, nil, &app)), ActionDecline)
	assert.NotContains(t, actionKinds(AvailableActions(models.RoleCredit, 1, nil, &app)), ActionDecline)

	app.Status = models.StatusInternalAudit
	assert.Contains(t, actionKinds(AvailableActions(models.RoleCredit, 1, nil, &app)), ActionDecline)

	app.Status = models.StatusDeclined
	assert.NotContains(t, actionKinds(AvailableActions(models.RoleSalesManager, 1, nil, &app)), ActionDecline)
}

func TestTerminalStatusYieldsNoWorkflowActions(t *testing.T) {
	app := models.Application{Type: models.TypeLoan, Status: models.StatusApproved}

	for _, role := range []string{models.RoleSuperAdmin, models.RoleSalesManager, models.RoleInternalControl, models.RoleFinance} {
		for _, a := range AvailableActions(role, 1, nil, &app) {
			t.Errorf("role %s offered %s on approved application", role, a.Kind)
		}
	}
}

func TestCanNavigateCoreViews(t *testing.T) {
	for _, view := range CoreSystemViews {
		assert.True(t, CanNavigate(models.RoleSuperAdmin, view), view)
		assert.False(t, CanNavigate(models.RoleSalesManager, view), view)
		assert.False(t, CanNavigate(models.RoleFinance, view), view)
	}

	assert.True(t, CanNavigate(models.RoleSalesOfficer, "dashboard"))
	assert.False(t, CanNavigate(models.RoleCredit, "investments"))
	assert.True(t, CanNavigate(models.RoleCredit, "loans"))
}

func TestAuthorizeMirrorsVisibility(t *testing.T) {
	app := models.Application{Type: models.TypeLoan, Status: models.StatusInternalAudit, OwnerID: uintPtr(9)}

	// sales officer cannot act on somebody else's application
	assert.False(t, Authorize(models.RoleSalesOfficer, 5, nil, &app, ActionEditDetails))
	// internal control can audit anything it sees
	assert.True(t, Authorize(models.RoleInternalControl, 7, nil, &app, ActionAuditPass))
	// finance cannot see an internal audit record at all
	assert.False(t, Authorize(models.RoleFinance, 7, nil, &app, ActionAuditPass))
}

func actionKinds(actions []Action) []string {
	kinds := make([]string, 0, len(actions))
	for _, a := range actions {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}
