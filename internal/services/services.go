package services

import (
	"github.com/noltfinance/nolt-ops-api/internal/config"
	"github.com/noltfinance/nolt-ops-api/internal/jobs"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
)

// Services holds all service instances
type Services struct {
	Auth         *AuthService
	User         *UserService
	Application  *ApplicationService
	Notification *NotificationService
	Audit        *AuditService
	Export       *ExportService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, cfg *config.Config) *Services {
	notificationSvc := NewNotificationService(repos.Notification, repos.User)
	applicationSvc := NewApplicationService(repos.Application, repos.User, repos.Audit, notificationSvc, worker)

	return &Services{
		Auth:         NewAuthService(repos.User, repos.RefreshToken, cfg),
		User:         NewUserService(repos.User, repos.Application),
		Application:  applicationSvc,
		Notification: notificationSvc,
		Audit:        NewAuditService(repos.Audit),
		Export:       NewExportService(applicationSvc),
	}
}
