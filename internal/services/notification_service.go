package services

import (
	"context"
	"fmt"

	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
)

type NotificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
}

func NewNotificationService(repo repository.NotificationRepository, userRepo repository.UserRepository) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo}
}

func (s *NotificationService) FindByUser(ctx context.Context, userID uint, query *repository.ListQuery) ([]models.Notification, int64, error) {
	return s.repo.FindByUser(ctx, userID, query)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id uint, userID uint) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) NotifyUser(ctx context.Context, userID uint, title, message, notifType string, referenceID string) error {
	notification := &models.Notification{
		UserID:           userID,
		Title:            title,
		Message:          message,
		NotificationType: &notifType,
	}
	if referenceID != "" {
		notification.ReferenceID = &referenceID
	}
	return s.repo.Create(ctx, notification)
}

// NotifyApplicationDeclined tells the owning staff member their application
// was declined, echoing the decline comment
func (s *NotificationService) NotifyApplicationDeclined(ctx context.Context, ownerID uint, referenceID, comment string) error {
	return s.NotifyUser(ctx, ownerID,
		"Application declined",
		fmt.Sprintf("Application %s was declined: %s", referenceID, comment),
		models.NotificationTypeApplicationDeclined,
		referenceID,
	)
}

// NotifyApplicationReturned tells the owning staff member their application
// was returned for rework
func (s *NotificationService) NotifyApplicationReturned(ctx context.Context, ownerID uint, referenceID, comment string) error {
	return s.NotifyUser(ctx, ownerID,
		"Application returned",
		fmt.Sprintf("Application %s was returned: %s", referenceID, comment),
		models.NotificationTypeApplicationReturned,
		referenceID,
	)
}

// NotifyApplicationApproved tells the owning staff member their application
// reached its terminal approved state
func (s *NotificationService) NotifyApplicationApproved(ctx context.Context, ownerID uint, referenceID string) error {
	return s.NotifyUser(ctx, ownerID,
		"Application approved",
		fmt.Sprintf("Application %s has been approved", referenceID),
		models.NotificationTypeApplicationApproved,
		referenceID,
	)
}

// NotifyOwnerReassigned tells a staff member an application landed on their
// desk
func (s *NotificationService) NotifyOwnerReassigned(ctx context.Context, newOwnerID uint, referenceID string) error {
	return s.NotifyUser(ctx, newOwnerID,
		"Application assigned to you",
		fmt.Sprintf("You are now the owner of application %s", referenceID),
		models.NotificationTypeOwnerReassigned,
		referenceID,
	)
}

// NotifyStaleQueue reminds an owner about an application idling in their
// queue
func (s *NotificationService) NotifyStaleQueue(ctx context.Context, ownerID uint, referenceID, status string) error {
	return s.NotifyUser(ctx, ownerID,
		"Application needs attention",
		fmt.Sprintf("Application %s has been sitting in %s for a while", referenceID, status),
		models.NotificationTypeStaleQueue,
		referenceID,
	)
}
