package models

import (
	"time"
)

// AuditEntry is one immutable record of a workflow-relevant action on an
// application. An entry is created exactly once at the moment of a transition,
// reassignment or sensitive-field reveal and is never updated or deleted.
type AuditEntry struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	EntryID       string    `gorm:"uniqueIndex;not null" json:"entry_id"`
	ApplicationID uint      `gorm:"not null;index" json:"application_id"`
	Actor         string    `gorm:"not null" json:"actor"`
	ActorID       uint      `gorm:"index" json:"actor_id"`
	Action        string    `gorm:"size:50;not null" json:"action"`
	Comment       *string   `gorm:"type:text" json:"comment"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AuditEntry
func (AuditEntry) TableName() string {
	return "audit_entries"
}

// Audit action constants
const (
	AuditActionDocsVerified      = "DOCS_VERIFIED"
	AuditActionCustomerVerified  = "CUSTOMER_VERIFIED"
	AuditActionAuditQueued       = "AUDIT_QUEUED"
	AuditActionCreditCheckPassed = "CREDIT_CHECK_PASSED"
	AuditActionAuditPassed       = "AUDIT_PASSED"
	AuditActionFundsDisbursed    = "FUNDS_DISBURSED"
	AuditActionPaymentVerified   = "PAYMENT_VERIFIED"
	AuditActionDeclined          = "DECLINED"
	AuditActionReturned          = "RETURNED"
	AuditActionResubmitted       = "RESUBMITTED"
	AuditActionReassignedOwner   = "REASSIGNED_OWNER"
	AuditActionSensitiveReveal   = "SENSITIVE_FIELD_REVEALED"
)

// AuditEntryResponse is the JSON response format for audit entries
type AuditEntryResponse struct {
	EntryID   string    `json:"entry_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToResponse converts an AuditEntry to AuditEntryResponse
func (e *AuditEntry) ToResponse() AuditEntryResponse {
	return AuditEntryResponse{
		EntryID:   e.EntryID,
		Actor:     e.Actor,
		Action:    e.Action,
		Comment:   e.Comment,
		CreatedAt: e.CreatedAt,
	}
}
