package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
)

// UserService manages staff accounts. All mutating operations are super-admin
// only and gated at the router.
type UserService struct {
	repo    repository.UserRepository
	appRepo repository.ApplicationRepository
}

// NewUserService creates a new user service
func NewUserService(repo repository.UserRepository, appRepo repository.ApplicationRepository) *UserService {
	return &UserService{repo: repo, appRepo: appRepo}
}

// CreateUserInput carries the fields for a new staff account
type CreateUserInput struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FullName   string `json:"full_name" binding:"required"`
	Role       string `json:"role" binding:"required"`
	TeamLeadID *uint  `json:"team_lead_id"`
}

// UpdateUserInput carries the editable account fields. Nil pointers leave the
// stored value untouched.
type UpdateUserInput struct {
	FullName   *string `json:"full_name"`
	Role       *string `json:"role"`
	Status     *string `json:"status"`
	TeamLeadID *uint   `json:"team_lead_id"`
}

func (s *UserService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error) {
	return s.repo.List(ctx, query)
}

// Create provisions a staff account with a hashed password
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	if !models.KnownRole(input.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidationFailed, input.Role)
	}
	if input.TeamLeadID != nil {
		if err := s.checkTeamLead(ctx, *input.TeamLeadID); err != nil {
			return nil, err
		}
	}

	if _, err := s.repo.FindByEmail(ctx, input.Email); err == nil {
		return nil, fmt.Errorf("%w: email %s is taken", ErrDuplicate, input.Email)
	}

	hashed, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Email:             strings.ToLower(strings.TrimSpace(input.Email)),
		EncryptedPassword: hashed,
		FullName:          input.FullName,
		Role:              input.Role,
		Status:            models.StatusActive,
		TeamLeadID:        input.TeamLeadID,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update edits a staff account
func (s *UserService) Update(ctx context.Context, id uint, input UpdateUserInput) (*models.User, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Role != nil {
		if !models.KnownRole(*input.Role) {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidationFailed, *input.Role)
		}
		user.Role = *input.Role
	}
	if input.Status != nil {
		switch *input.Status {
		case models.StatusActive, models.StatusPending, models.StatusSuspended:
		default:
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidationFailed, *input.Status)
		}
		user.Status = *input.Status
	}
	if input.FullName != nil {
		user.FullName = *input.FullName
	}
	if input.TeamLeadID != nil {
		if err := s.checkTeamLead(ctx, *input.TeamLeadID); err != nil {
			return nil, err
		}
		user.TeamLeadID = input.TeamLeadID
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Suspend blocks the account from logging in
func (s *UserService) Suspend(ctx context.Context, id uint) error {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.Status = models.StatusSuspended
	return s.repo.Update(ctx, user)
}

// Activate re-enables a suspended or pending account
func (s *UserService) Activate(ctx context.Context, id uint) error {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.Status = models.StatusActive
	return s.repo.Update(ctx, user)
}

// checkTeamLead verifies the referenced lead exists and carries the team lead
// role
func (s *UserService) checkTeamLead(ctx context.Context, leadID uint) error {
	lead, err := s.repo.FindByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: team lead %d does not exist", ErrValidationFailed, leadID)
		}
		return err
	}
	if lead.Role != models.RoleSalesTeamLead {
		return fmt.Errorf("%w: user %s is not a sales team lead", ErrValidationFailed, lead.Email)
	}
	return nil
}

// Delete removes an account. Accounts still owning applications cannot be
// removed; reassign their queue first.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}

	query := &repository.ApplicationQuery{
		ListQuery: repository.NewListQuery(),
	}
	query.Scope.OwnerIDs = []uint{id}
	_, total, err := s.appRepo.List(ctx, query)
	if err != nil {
		return err
	}
	if total > 0 {
		return fmt.Errorf("%w: user %d still owns %d applications", ErrValidationFailed, id, total)
	}

	return s.repo.Delete(ctx, id)
}
