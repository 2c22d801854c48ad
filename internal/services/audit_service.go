package services

import (
	"context"

	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/repository"
)

// AuditService exposes the global audit feed for the security log view.
// Per-application trails are served through ApplicationService so visibility
// rules apply; this feed is super-admin only and gated at the router.
type AuditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// SecurityLog lists recent audit entries across all applications, newest
// first, optionally filtered by action or actor
func (s *AuditService) SecurityLog(ctx context.Context, query *repository.AuditQuery) ([]models.AuditEntry, int64, error) {
	if query.ListQuery == nil {
		query.ListQuery = repository.NewListQuery()
	}
	return s.repo.ListRecent(ctx, query)
}

// SensitiveAccessLog lists only sensitive-field reveals
func (s *AuditService) SensitiveAccessLog(ctx context.Context, query *repository.AuditQuery) ([]models.AuditEntry, int64, error) {
	if query.ListQuery == nil {
		query.ListQuery = repository.NewListQuery()
	}
	query.Action = models.AuditActionSensitiveReveal
	return s.repo.ListRecent(ctx, query)
}
