package models

import (
	"strings"
	"time"
)

// Application represents a loan or investment application under review
type Application struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ReferenceID    string    `gorm:"uniqueIndex;not null" json:"reference_id"`
	Type           string    `gorm:"not null;index" json:"type"`
	Status         string    `gorm:"default:pending_review;index" json:"status"`
	Amount         string    `gorm:"not null" json:"amount"`
	EligibleAmount *string   `json:"eligible_amount"`
	OwnerID        *uint     `gorm:"index" json:"owner_id"`
	OwnerName      string    `json:"owner_name"`
	DateSubmitted  time.Time `json:"date_submitted"`

	// Applicant details (inert payload, not interpreted by the workflow)
	ApplicantName  string  `gorm:"not null" json:"applicant_name"`
	ApplicantEmail string  `json:"applicant_email"`
	ApplicantPhone string  `json:"applicant_phone"`
	BVN            string  `json:"-"`
	NIN            string  `json:"-"`
	Address        *string `json:"address"`
	Occupation     *string `json:"occupation"`
	IsPep          bool    `gorm:"default:false" json:"is_pep"`

	// Investment specific fields
	SelectedPlan   *string `json:"selected_plan"`
	TargetAmount   *string `json:"target_amount"`
	RolloverOption *string `json:"rollover_option"`
	Tenure         *string `json:"tenure"`
	PaymentStatus  *string `json:"payment_status"`

	// Loan specific fields
	LoanCategory    *string `json:"loan_category"`
	LoanProduct     *string `json:"loan_product"`
	MonthlyIncome   *string `json:"monthly_income"`
	RepaymentPeriod *string `json:"repayment_period"`
	HasActiveLoans  bool    `gorm:"default:false" json:"has_active_loans"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Owner        *User        `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	AuditEntries []AuditEntry `gorm:"foreignKey:ApplicationID" json:"audit_entries,omitempty"`
}

// TableName specifies the table name for Application
func (Application) TableName() string {
	return "applications"
}

// Application type constants
const (
	TypeLoan       = "loan"
	TypeInvestment = "investment"
)

// Application status constants
const (
	StatusPendingReview       = "pending_review"
	StatusDocsVerification    = "docs_verification"
	StatusInternalAudit       = "internal_audit"
	StatusPendingDisbursement = "pending_disbursement"
	StatusApproved            = "approved"
	StatusDeclined            = "declined"
	StatusReturned            = "returned"
)

// Investment payment status constants
const (
	PaymentStatusPending  = "PENDING_PAYMENT"
	PaymentStatusPaid     = "PAID"
	PaymentStatusVerified = "VERIFIED"
)

// IsFinalized returns true when the application is in a terminal state
func (a *Application) IsFinalized() bool {
	return a.Status == StatusApproved || a.Status == StatusDeclined
}

// IsLocked returns true when applicant edits and owner reassignment are
// disallowed. Investments lock earlier than loans: once an investment enters
// internal audit its details are frozen, while a loan stays editable until
// disbursement is pending.
func (a *Application) IsLocked() bool {
	switch a.Status {
	case StatusPendingDisbursement, StatusApproved, StatusDeclined:
		return true
	case StatusInternalAudit:
		return a.Type == TypeInvestment
	default:
		return false
	}
}

// HasEligibleAmount returns true once Credit has recorded an eligible amount
func (a *Application) HasEligibleAmount() bool {
	return a.EligibleAmount != nil && strings.TrimSpace(*a.EligibleAmount) != ""
}

// AwaitingCreditAssessment reports whether a loan sits in the credit stage of
// internal audit. The internal_audit status doubles as credit review and
// compliance audit; the presence of the eligible amount marks the handover.
func (a *Application) AwaitingCreditAssessment() bool {
	return a.Type == TypeLoan && a.Status == StatusInternalAudit && !a.HasEligibleAmount()
}

// ApplicationResponse is the JSON response format for applications
type ApplicationResponse struct {
	ID              uint                 `json:"id"`
	ReferenceID     string               `json:"reference_id"`
	Type            string               `json:"type"`
	Status          string               `json:"status"`
	Amount          string               `json:"amount"`
	EligibleAmount  *string              `json:"eligible_amount,omitempty"`
	OwnerID         *uint                `json:"owner_id"`
	OwnerName       string               `json:"owner_name"`
	DateSubmitted   time.Time            `json:"date_submitted"`
	ApplicantName   string               `json:"applicant_name"`
	ApplicantEmail  string               `json:"applicant_email"`
	ApplicantPhone  string               `json:"applicant_phone"`
	BVN             string               `json:"bvn"`
	NIN             string               `json:"nin"`
	Address         *string              `json:"address,omitempty"`
	Occupation      *string              `json:"occupation,omitempty"`
	IsPep           bool                 `json:"is_pep"`
	SelectedPlan    *string              `json:"selected_plan,omitempty"`
	TargetAmount    *string              `json:"target_amount,omitempty"`
	RolloverOption  *string              `json:"rollover_option,omitempty"`
	Tenure          *string              `json:"tenure,omitempty"`
	PaymentStatus   *string              `json:"payment_status,omitempty"`
	LoanCategory    *string              `json:"loan_category,omitempty"`
	LoanProduct     *string              `json:"loan_product,omitempty"`
	MonthlyIncome   *string              `json:"monthly_income,omitempty"`
	RepaymentPeriod *string              `json:"repayment_period,omitempty"`
	HasActiveLoans  bool                 `json:"has_active_loans"`
	Locked          bool                 `json:"locked"`
	Finalized       bool                 `json:"finalized"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	AuditLog        []AuditEntryResponse `json:"audit_log,omitempty"`
}

// ToResponse converts an Application to its JSON form. Sensitive identity
// numbers (BVN, NIN) are always masked here; revealing a raw value goes
// through the dedicated reveal endpoint so the access is audited.
func (a *Application) ToResponse() ApplicationResponse {
	resp := ApplicationResponse{
		ID:              a.ID,
		ReferenceID:     a.ReferenceID,
		Type:            a.Type,
		Status:          a.Status,
		Amount:          a.Amount,
		EligibleAmount:  a.EligibleAmount,
		OwnerID:         a.OwnerID,
		OwnerName:       a.OwnerName,
		DateSubmitted:   a.DateSubmitted,
		ApplicantName:   a.ApplicantName,
		ApplicantEmail:  a.ApplicantEmail,
		ApplicantPhone:  a.ApplicantPhone,
		BVN:             MaskSensitive(a.BVN),
		NIN:             MaskSensitive(a.NIN),
		Address:         a.Address,
		Occupation:      a.Occupation,
		IsPep:           a.IsPep,
		SelectedPlan:    a.SelectedPlan,
		TargetAmount:    a.TargetAmount,
		RolloverOption:  a.RolloverOption,
		Tenure:          a.Tenure,
		PaymentStatus:   a.PaymentStatus,
		LoanCategory:    a.LoanCategory,
		LoanProduct:     a.LoanProduct,
		MonthlyIncome:   a.MonthlyIncome,
		RepaymentPeriod: a.RepaymentPeriod,
		HasActiveLoans:  a.HasActiveLoans,
		Locked:          a.IsLocked(),
		Finalized:       a.IsFinalized(),
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}

	for _, entry := range a.AuditEntries {
		resp.AuditLog = append(resp.AuditLog, entry.ToResponse())
	}

	return resp
}

// MaskSensitive masks an identity number, keeping only the last two digits
func MaskSensitive(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 2 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-2) + value[len(value)-2:]
}
