package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/noltfinance/nolt-ops-api/internal/models"
	"github.com/noltfinance/nolt-ops-api/internal/policy"
)

// ErrStaleRecord is returned when an expected-status update matches no row,
// meaning another caller moved the application first.
var ErrStaleRecord = errors.New("application was modified by another user")

// ApplicationRepository defines the interface for application data access
type ApplicationRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Application, error)
	FindByIDWithAuditLog(ctx context.Context, id uint) (*models.Application, error)
	FindByReference(ctx context.Context, referenceID string) (*models.Application, error)
	Create(ctx context.Context, app *models.Application) error
	UpdateDetails(ctx context.Context, app *models.Application) error
	UpdateWithExpectedStatus(ctx context.Context, app *models.Application, expectedStatus string, entry *models.AuditEntry) error
	ReassignOwner(ctx context.Context, app *models.Application, newOwnerID uint, newOwnerName string, entry *models.AuditEntry) error
	List(ctx context.Context, query *ApplicationQuery) ([]models.Application, int64, error)
	FindStale(ctx context.Context, statuses []string, olderThanDays int) ([]models.Application, error)
	GetStats(ctx context.Context) (*ApplicationStats, error)
}

// ApplicationQuery extends ListQuery with queue-specific filters. Scope is the
// caller's visibility filter and is always applied, whatever else the query
// asks for.
type ApplicationQuery struct {
	*ListQuery
	Scope  policy.QueueFilter
	Type   string
	Status string
}

// ApplicationStats summarizes the queue for the dashboard
type ApplicationStats struct {
	Total          int64            `json:"total"`
	ByStatus       map[string]int64 `json:"by_status"`
	ByType         map[string]int64 `json:"by_type"`
	PendingReview  int64            `json:"pending_review"`
	AwaitingPayout int64            `json:"awaiting_payout"`
	FinalizedToday int64            `json:"finalized_today"`
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) FindByID(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	err := r.db.WithContext(ctx).First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) FindByIDWithAuditLog(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	err := r.db.WithContext(ctx).
		Preload("AuditEntries", func(db *gorm.DB) *gorm.DB {
			return db.Order("audit_entries.created_at DESC, audit_entries.id DESC")
		}).
		Preload("Owner").
		First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) FindByReference(ctx context.Context, referenceID string) (*models.Application, error) {
	var app models.Application
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) Create(ctx context.Context, app *models.Application) error {
	return r.db.WithContext(ctx).Create(app).Error
}

// UpdateDetails persists applicant-detail edits, guarded by the status the
// caller read. Only the applicant columns are written, so a concurrent
// transition can never be reverted by a detail edit; if the status moved in
// the meantime the record is stale and nothing is written.
func (r *applicationRepository) UpdateDetails(ctx context.Context, app *models.Application) error {
	result := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ? AND status = ?", app.ID, app.Status).
		Updates(map[string]interface{}{
			"applicant_name":  app.ApplicantName,
			"applicant_email": app.ApplicantEmail,
			"applicant_phone": app.ApplicantPhone,
			"address":         app.Address,
			"occupation":      app.Occupation,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleRecord
	}
	return nil
}

// UpdateWithExpectedStatus applies a status change guarded by the status the
// caller last observed, and appends the audit entry in the same transaction.
// If the guard matches no row the record is stale and nothing is written.
func (r *applicationRepository) UpdateWithExpectedStatus(ctx context.Context, app *models.Application, expectedStatus string, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", app.ID, expectedStatus).
			Updates(map[string]interface{}{
				"status":          app.Status,
				"eligible_amount": app.EligibleAmount,
				"payment_status":  app.PaymentStatus,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleRecord
		}

		entry.ApplicationID = app.ID
		return tx.Create(entry).Error
	})
}

// ReassignOwner changes accountability for the application and records it,
// atomically. The guard here is the owner rather than the status.
func (r *applicationRepository) ReassignOwner(ctx context.Context, app *models.Application, newOwnerID uint, newOwnerName string, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", app.ID, app.Status).
			Updates(map[string]interface{}{
				"owner_id":   newOwnerID,
				"owner_name": newOwnerName,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStaleRecord
		}

		app.OwnerID = &newOwnerID
		app.OwnerName = newOwnerName
		entry.ApplicationID = app.ID
		return tx.Create(entry).Error
	})
}

func (r *applicationRepository) List(ctx context.Context, query *ApplicationQuery) ([]models.Application, int64, error) {
	db := r.scoped(r.db.WithContext(ctx).Model(&models.Application{}), query.Scope)

	if query.Type != "" {
		db = db.Where("type = ?", query.Type)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.Search != "" {
		term := "%" + strings.ToLower(query.Search) + "%"
		db = db.Where("LOWER(reference_id) LIKE ? OR LOWER(applicant_name) LIKE ? OR LOWER(applicant_email) LIKE ?", term, term, term)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Order(sortClause(query.ListQuery))
	if query.PerPage > 0 {
		db = db.Offset((query.Page - 1) * query.PerPage).Limit(query.PerPage)
	}

	var apps []models.Application
	if err := db.Find(&apps).Error; err != nil {
		return nil, 0, err
	}
	return apps, total, nil
}

// FindStale returns applications that have sat in one of the given statuses
// for longer than the threshold
func (r *applicationRepository) FindStale(ctx context.Context, statuses []string, olderThanDays int) ([]models.Application, error) {
	var apps []models.Application
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Where(fmt.Sprintf("updated_at < NOW() - INTERVAL '%d days'", olderThanDays)).
		Find(&apps).Error
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *applicationRepository) GetStats(ctx context.Context) (*ApplicationStats, error) {
	stats := &ApplicationStats{
		ByStatus: make(map[string]int64),
		ByType:   make(map[string]int64),
	}

	if err := r.db.WithContext(ctx).Model(&models.Application{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byStatus []bucket
	if err := r.db.WithContext(ctx).Model(&models.Application{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Key] = b.Count
	}

	var byType []bucket
	if err := r.db.WithContext(ctx).Model(&models.Application{}).
		Select("type AS key, COUNT(*) AS count").
		Group("type").
		Scan(&byType).Error; err != nil {
		return nil, err
	}
	for _, b := range byType {
		stats.ByType[b.Key] = b.Count
	}

	stats.PendingReview = stats.ByStatus[models.StatusPendingReview]
	stats.AwaitingPayout = stats.ByStatus[models.StatusPendingDisbursement]

	if err := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("status IN ?", []string{models.StatusApproved, models.StatusDeclined}).
		Where("updated_at >= CURRENT_DATE").
		Count(&stats.FinalizedToday).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// scoped translates a visibility filter into WHERE clauses
func (r *applicationRepository) scoped(db *gorm.DB, scope policy.QueueFilter) *gorm.DB {
	if scope.All {
		return db
	}
	if len(scope.Statuses) == 0 && len(scope.Types) == 0 && len(scope.OwnerIDs) == 0 {
		// empty scope matches nothing
		return db.Where("1 = 0")
	}
	if len(scope.Types) > 0 {
		db = db.Where("type IN ?", scope.Types)
	}
	if len(scope.Statuses) > 0 {
		db = db.Where("status IN ?", scope.Statuses)
	}
	if len(scope.OwnerIDs) > 0 {
		db = db.Where("owner_id IN ?", scope.OwnerIDs)
	}
	return db
}

func sortClause(q *ListQuery) string {
	if q == nil || q.SortBy == "" {
		return "date_submitted DESC, id DESC"
	}
	column := q.SortBy
	switch column {
	case "date_submitted", "status", "type", "applicant_name", "created_at", "updated_at":
	default:
		return "date_submitted DESC, id DESC"
	}
	dir := "ASC"
	if strings.EqualFold(q.SortDir, "desc") {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, id DESC", column, dir)
}
