package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noltfinance/nolt-ops-api/internal/models"
)

// AuditRepository defines the interface for audit trail access. Entries are
// append-only; there are no update or delete operations.
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	FindByApplication(ctx context.Context, applicationID uint) ([]models.AuditEntry, error)
	ListRecent(ctx context.Context, query *AuditQuery) ([]models.AuditEntry, int64, error)
}

// AuditQuery filters the global audit feed for the security log view
type AuditQuery struct {
	*ListQuery
	Action  string
	ActorID uint
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByApplication returns the full trail for one application, newest first.
// Ties on created_at fall back to insertion order.
func (r *auditRepository) FindByApplication(ctx context.Context, applicationID uint) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *auditRepository) ListRecent(ctx context.Context, query *AuditQuery) ([]models.AuditEntry, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.AuditEntry{})

	if query.Action != "" {
		db = db.Where("action = ?", query.Action)
	}
	if query.ActorID != 0 {
		db = db.Where("actor_id = ?", query.ActorID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Order("created_at DESC, id DESC")
	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	var entries []models.AuditEntry
	if err := db.Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
