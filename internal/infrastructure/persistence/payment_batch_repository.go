package persistence

import (
	"context"
	"errors"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/finledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPaymentBatchRepository implements PaymentBatchRepository using GORM
type GormPaymentBatchRepository struct {
	db *gorm.DB
}

// NewGormPaymentBatchRepository creates a new GormPaymentBatchRepository
func NewGormPaymentBatchRepository(db *gorm.DB) *GormPaymentBatchRepository {
	return &GormPaymentBatchRepository{db: db}
}

// Save creates or updates a payment batch
func (r *GormPaymentBatchRepository) Save(ctx context.Context, batch *ledger.PaymentBatch) error {
	model := models.PaymentBatchModelFromDomain(batch)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking on the version field
func (r *GormPaymentBatchRepository) SaveWithLock(ctx context.Context, batch *ledger.PaymentBatch) error {
	return saveBatchWithLock(r.db.WithContext(ctx), batch)
}

// SaveWithMembers persists the batch and its member transactions in one
// database transaction so batch decisions land atomically.
func (r *GormPaymentBatchRepository) SaveWithMembers(ctx context.Context, batch *ledger.PaymentBatch, txns []*ledger.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveBatchWithLock(tx, batch); err != nil {
			return err
		}
		for _, txn := range txns {
			if err := saveTransactionWithLock(tx, txn); err != nil {
				return err
			}
		}
		return nil
	})
}

// saveBatchWithLock updates the row guarded by the previous version, falling
// back to an insert when the aggregate is new.
func saveBatchWithLock(tx *gorm.DB, batch *ledger.PaymentBatch) error {
	model := models.PaymentBatchModelFromDomain(batch)
	result := tx.Model(&models.PaymentBatchModel{}).
		Where("id = ? AND version = ?", batch.ID, batch.Version-1).
		Select("*").
		Omit("created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.PaymentBatchModel{}).
			Where("id = ?", batch.ID).
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

// FindByID finds a payment batch by ID within a company
func (r *GormPaymentBatchRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*ledger.PaymentBatch, error) {
	var model models.PaymentBatchModel
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

// FindByApprovalToken resolves a magic-link token. The lookup is not scoped
// to a company; the token itself is the capability.
func (r *GormPaymentBatchRepository) FindByApprovalToken(ctx context.Context, token string) (*ledger.PaymentBatch, error) {
	if token == "" {
		return nil, nil
	}
	var model models.PaymentBatchModel
	if err := r.db.WithContext(ctx).
		Where("approval_token = ?", token).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a paginated listing of payment batches for a company
func (r *GormPaymentBatchRepository) List(ctx context.Context, companyID uuid.UUID, filter ledger.BatchFilter) (*shared.Paginated[*ledger.PaymentBatch], error) {
	base := r.db.WithContext(ctx).Model(&models.PaymentBatchModel{}).
		Where("company_id = ?", companyID)
	if filter.Search != "" {
		base = base.Where("name ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	orderBy := ValidateSortField(filter.OrderBy, BatchSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var batchModels []models.PaymentBatchModel
	if err := base.Session(&gorm.Session{}).
		Order(orderBy + " " + orderDir).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&batchModels).Error; err != nil {
		return nil, err
	}

	batches := make([]*ledger.PaymentBatch, len(batchModels))
	for i := range batchModels {
		batches[i] = batchModels[i].ToDomain()
	}
	return shared.NewPaginated(batches, total, page, pageSize), nil
}

// Delete removes a payment batch within a company
func (r *GormPaymentBatchRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.PaymentBatchModel{}, "company_id = ? AND id = ?", companyID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormPaymentBatchRepository implements PaymentBatchRepository
var _ ledger.PaymentBatchRepository = (*GormPaymentBatchRepository)(nil)
