package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a staff member of the operations team
type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	EncryptedPassword string     `gorm:"column:encrypted_password;not null" json:"-"`
	FullName          string     `json:"full_name"`
	Role              string     `gorm:"default:sales_officer;index" json:"role"`
	Status            string     `gorm:"default:active" json:"status"`
	ReferralCode      *string    `json:"referral_code"`
	TeamLeadID        *uint      `gorm:"index" json:"team_lead_id"`
	LastActiveAt      *time.Time `json:"last_active_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Associations
	TeamLead     *User         `gorm:"foreignKey:TeamLeadID" json:"team_lead,omitempty"`
	Applications []Application `gorm:"foreignKey:OwnerID" json:"applications,omitempty"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// Role constants. Roles are mutually exclusive per session; a caller carries
// exactly one.
const (
	RoleSuperAdmin         = "super_admin"
	RoleSalesManager       = "sales_manager"
	RoleSalesTeamLead      = "sales_team_lead"
	RoleSalesOfficer       = "sales_officer"
	RoleCustomerExperience = "customer_experience"
	RoleCredit             = "credit"
	RoleInternalControl    = "internal_control"
	RoleFinance            = "finance"
)

// Status constants
const (
	StatusActive    = "active"
	StatusPending   = "pending"
	StatusSuspended = "suspended"
)

// BeforeCreate hook for setting defaults
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleSalesOfficer
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	return nil
}

// IsSuperAdmin returns true if the user has the super admin role
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// IsActive returns true if user status is active
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// KnownRole reports whether the role tag is part of the fixed enumeration.
// Anything else is treated as no access at all.
func KnownRole(role string) bool {
	switch role {
	case RoleSuperAdmin, RoleSalesManager, RoleSalesTeamLead, RoleSalesOfficer,
		RoleCustomerExperience, RoleCredit, RoleInternalControl, RoleFinance:
		return true
	}
	return false
}

// UserResponse is the JSON response format for users
type UserResponse struct {
	ID           uint       `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	ReferralCode *string    `json:"referral_code,omitempty"`
	TeamLeadID   *uint      `json:"team_lead_id,omitempty"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Role:         u.Role,
		Status:       u.Status,
		ReferralCode: u.ReferralCode,
		TeamLeadID:   u.TeamLeadID,
		LastActiveAt: u.LastActiveAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
