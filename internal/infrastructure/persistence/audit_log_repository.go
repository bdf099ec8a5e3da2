package persistence

import (
	"context"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/finledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements AuditLogRepository using GORM. The audit
// trail is append-only; this repository exposes no update or delete.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Append writes a new audit entry
func (r *GormAuditLogRepository) Append(ctx context.Context, entry *ledger.AuditEntry) error {
	model := models.AuditLogModelFromDomain(entry)
	return r.db.WithContext(ctx).Create(model).Error
}

// List returns a paginated listing of audit entries for a company
func (r *GormAuditLogRepository) List(ctx context.Context, companyID uuid.UUID, filter ledger.AuditFilter) (*shared.Paginated[*ledger.AuditEntry], error) {
	base := r.db.WithContext(ctx).Model(&models.AuditLogModel{}).
		Where("company_id = ?", companyID)
	if filter.EntityType != nil {
		base = base.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.EntityID != nil {
		base = base.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.Action != nil {
		base = base.Where("action = ?", *filter.Action)
	}
	if filter.Since != nil {
		base = base.Where("created_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		base = base.Where("created_at <= ?", *filter.Until)
	}
	if filter.Search != "" {
		base = base.Where("actor_email ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	orderBy := ValidateSortField(filter.OrderBy, AuditSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var logModels []models.AuditLogModel
	if err := base.Session(&gorm.Session{}).
		Order(orderBy + " " + orderDir).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logModels).Error; err != nil {
		return nil, err
	}

	entries := make([]*ledger.AuditEntry, len(logModels))
	for i := range logModels {
		entries[i] = logModels[i].ToDomain()
	}
	return shared.NewPaginated(entries, total, page, pageSize), nil
}

// Ensure GormAuditLogRepository implements AuditLogRepository
var _ ledger.AuditLogRepository = (*GormAuditLogRepository)(nil)
