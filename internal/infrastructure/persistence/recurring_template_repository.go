package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/finledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRecurringTemplateRepository implements RecurringTemplateRepository using GORM
type GormRecurringTemplateRepository struct {
	db *gorm.DB
}

// NewGormRecurringTemplateRepository creates a new GormRecurringTemplateRepository
func NewGormRecurringTemplateRepository(db *gorm.DB) *GormRecurringTemplateRepository {
	return &GormRecurringTemplateRepository{db: db}
}

// Save creates or updates a recurring template
func (r *GormRecurringTemplateRepository) Save(ctx context.Context, tmpl *ledger.RecurringTemplate) error {
	model := models.RecurringTemplateModelFromDomain(tmpl)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking on the version field
func (r *GormRecurringTemplateRepository) SaveWithLock(ctx context.Context, tmpl *ledger.RecurringTemplate) error {
	return saveTemplateWithLock(r.db.WithContext(ctx), tmpl)
}

// SaveWithGenerated persists the advanced template and its generated
// transaction in one database transaction so a sweep cannot generate without
// advancing the schedule.
func (r *GormRecurringTemplateRepository) SaveWithGenerated(ctx context.Context, tmpl *ledger.RecurringTemplate, txn *ledger.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveTemplateWithLock(tx, tmpl); err != nil {
			return err
		}
		return tx.Create(models.TransactionModelFromDomain(txn)).Error
	})
}

// saveTemplateWithLock updates the row guarded by the previous version,
// falling back to an insert when the aggregate is new.
func saveTemplateWithLock(tx *gorm.DB, tmpl *ledger.RecurringTemplate) error {
	model := models.RecurringTemplateModelFromDomain(tmpl)
	result := tx.Model(&models.RecurringTemplateModel{}).
		Where("id = ? AND version = ?", tmpl.ID, tmpl.Version-1).
		Select("*").
		Omit("created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.RecurringTemplateModel{}).
			Where("id = ?", tmpl.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return shared.ErrConcurrencyConflict
		}
		return tx.Create(model).Error
	}
	return nil
}

// FindByID finds a recurring template by ID within a company
func (r *GormRecurringTemplateRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*ledger.RecurringTemplate, error) {
	var model models.RecurringTemplateModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDue returns all active templates across companies whose next due date
// is at or before now. Used by the sweep.
func (r *GormRecurringTemplateRepository) FindDue(ctx context.Context, now time.Time) ([]*ledger.RecurringTemplate, error) {
	var tmplModels []models.RecurringTemplateModel
	if err := r.db.WithContext(ctx).
		Where("active = ? AND next_due_date <= ?", true, now).
		Order("next_due_date ASC").
		Find(&tmplModels).Error; err != nil {
		return nil, err
	}
	tmpls := make([]*ledger.RecurringTemplate, len(tmplModels))
	for i := range tmplModels {
		tmpls[i] = tmplModels[i].ToDomain()
	}
	return tmpls, nil
}

// List returns a paginated listing of recurring templates for a company
func (r *GormRecurringTemplateRepository) List(ctx context.Context, companyID uuid.UUID, filter ledger.RecurringTemplateFilter) (*shared.Paginated[*ledger.RecurringTemplate], error) {
	base := r.db.WithContext(ctx).Model(&models.RecurringTemplateModel{}).
		Where("company_id = ?", companyID)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		base = base.Where("description ILIKE ? OR supplier_name ILIKE ?", pattern, pattern)
	}
	if filter.Active != nil {
		base = base.Where("active = ?", *filter.Active)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	orderBy := ValidateSortField(filter.OrderBy, TemplateSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var tmplModels []models.RecurringTemplateModel
	if err := base.Session(&gorm.Session{}).
		Order(orderBy + " " + orderDir).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tmplModels).Error; err != nil {
		return nil, err
	}

	tmpls := make([]*ledger.RecurringTemplate, len(tmplModels))
	for i := range tmplModels {
		tmpls[i] = tmplModels[i].ToDomain()
	}
	return shared.NewPaginated(tmpls, total, page, pageSize), nil
}

// Delete removes a recurring template within a company
func (r *GormRecurringTemplateRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.RecurringTemplateModel{}, "company_id = ? AND id = ?", companyID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormRecurringTemplateRepository implements RecurringTemplateRepository
var _ ledger.RecurringTemplateRepository = (*GormRecurringTemplateRepository)(nil)
