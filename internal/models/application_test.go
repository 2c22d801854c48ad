package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSensitive(t *testing.T) {
	assert.Equal(t, "*********01", MaskSensitive("22345678901"))
	assert.Equal(t, "**", MaskSensitive("12"))
	assert.Equal(t, "*", MaskSensitive("1"))
	assert.Equal(t, "", MaskSensitive(""))
}

func TestResponseAlwaysMasksIdentityNumbers(t *testing.T) {
	app := Application{
		ReferenceID:   "LN-1001",
		Type:          TypeLoan,
		Status:        StatusPendingReview,
		ApplicantName: "Ada Obi",
		Amount:        "₦750,000",
		BVN:           "22345678901",
		NIN:           "90123456789",
	}

	resp := app.ToResponse()
	assert.Equal(t, "*********01", resp.BVN)
	assert.Equal(t, "*********89", resp.NIN)
}

func TestIsLockedByTypeAndStatus(t *testing.T) {
	tests := []struct {
		appType string
		status  string
		locked  bool
	}{
		{TypeLoan, StatusPendingReview, false},
		{TypeLoan, StatusDocsVerification, false},
		{TypeLoan, StatusInternalAudit, false},
		{TypeLoan, StatusPendingDisbursement, true},
		{TypeLoan, StatusApproved, true},
		{TypeLoan, StatusDeclined, true},
		{TypeLoan, StatusReturned, false},
		{TypeInvestment, StatusInternalAudit, true},
		{TypeInvestment, StatusDocsVerification, false},
		{TypeInvestment, StatusApproved, true},
	}

	for _, tt := range tests {
		app := Application{Type: tt.appType, Status: tt.status}
		assert.Equal(t, tt.locked, app.IsLocked(), "%s %s", tt.appType, tt.status)
	}
}

func TestIsFinalized(t *testing.T) {
	assert.True(t, (&Application{Status: StatusApproved}).IsFinalized())
	assert.True(t, (&Application{Status: StatusDeclined}).IsFinalized())
	assert.False(t, (&Application{Status: StatusReturned}).IsFinalized())
	assert.False(t, (&Application{Status: StatusInternalAudit}).IsFinalized())
}

func TestHasEligibleAmount(t *testing.T) {
	app := Application{Type: TypeLoan, Status: StatusInternalAudit}
	assert.False(t, app.HasEligibleAmount())
	assert.True(t, app.AwaitingCreditAssessment())

	blank := "   "
	app.EligibleAmount = &blank
	assert.False(t, app.HasEligibleAmount())

	amount := "₦400,000"
	app.EligibleAmount = &amount
	assert.True(t, app.HasEligibleAmount())
	assert.False(t, app.AwaitingCreditAssessment())
}

func TestKnownRole(t *testing.T) {
	for _, role := range []string{
		RoleSuperAdmin, RoleSalesManager, RoleSalesTeamLead, RoleSalesOfficer,
		RoleCustomerExperience, RoleCredit, RoleInternalControl, RoleFinance,
	} {
		assert.True(t, KnownRole(role), role)
	}
	assert.False(t, KnownRole("auditor"))
	assert.False(t, KnownRole(""))
}
