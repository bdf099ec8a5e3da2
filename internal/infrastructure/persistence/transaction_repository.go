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

// GormTransactionRepository implements TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Save creates or updates a transaction
func (r *GormTransactionRepository) Save(ctx context.Context, txn *ledger.Transaction) error {
	model := models.TransactionModelFromDomain(txn)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking on the version field
func (r *GormTransactionRepository) SaveWithLock(ctx context.Context, txn *ledger.Transaction) error {
	return saveTransactionWithLock(r.db.WithContext(ctx), txn)
}

// SaveAll persists several transactions in one database transaction, each
// under optimistic locking. Fresh aggregates are inserted.
func (r *GormTransactionRepository) SaveAll(ctx context.Context, txns []*ledger.Transaction) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, txn := range txns {
			if err := saveTransactionWithLock(tx, txn); err != nil {
				return err
			}
		}
		return nil
	})
}

// saveTransactionWithLock updates the row guarded by the previous version.
// A zero-row update against an existing row means another writer got there
// first; against a missing row it means the aggregate is new and is inserted.
func saveTransactionWithLock(tx *gorm.DB, txn *ledger.Transaction) error {
	model := models.TransactionModelFromDomain(txn)
	result := tx.Model(&models.TransactionModel{}).
		Where("id = ? AND version = ?", txn.ID, txn.Version-1).
		Select("*").
		Omit("created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.TransactionModel{}).
			Where("id = ?", txn.ID).
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

// FindByID finds a transaction by ID within a company
func (r *GormTransactionRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*ledger.Transaction, error) {
	var model models.TransactionModel
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
func (r *GormTransactionRepository) FindByApprovalToken(ctx context.Context, token string) (*ledger.Transaction, error) {
	if token == "" {
		return nil, nil
	}
	var model models.TransactionModel
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

// FindByIDs finds the transactions with the given IDs within a company
func (r *GormTransactionRepository) FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*ledger.Transaction, error) {
	if len(ids) == 0 {
		return []*ledger.Transaction{}, nil
	}
	var txnModels []models.TransactionModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Find(&txnModels).Error; err != nil {
		return nil, err
	}
	txns := make([]*ledger.Transaction, len(txnModels))
	for i := range txnModels {
		txns[i] = txnModels[i].ToDomain()
	}
	return txns, nil
}

// FindByGroupID returns all installments of a series ordered by installment number
func (r *GormTransactionRepository) FindByGroupID(ctx context.Context, companyID, groupID uuid.UUID) ([]*ledger.Transaction, error) {
	var txnModels []models.TransactionModel
	if err := r.db.WithContext(ctx).
		Where("company_id = ? AND installment_group_id = ?", companyID, groupID).
		Order("installment_number ASC").
		Find(&txnModels).Error; err != nil {
		return nil, err
	}
	txns := make([]*ledger.Transaction, len(txnModels))
	for i := range txnModels {
		txns[i] = txnModels[i].ToDomain()
	}
	return txns, nil
}

// List returns a paginated listing of transactions for a company
func (r *GormTransactionRepository) List(ctx context.Context, companyID uuid.UUID, filter ledger.TransactionFilter) (*shared.Paginated[*ledger.Transaction], error) {
	base := r.db.WithContext(ctx).Model(&models.TransactionModel{}).
		Where("company_id = ?", companyID)
	base = applyTransactionFilter(base, filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	orderBy := ValidateSortField(filter.OrderBy, TransactionSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var txnModels []models.TransactionModel
	if err := base.Session(&gorm.Session{}).
		Order(orderBy + " " + orderDir).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txnModels).Error; err != nil {
		return nil, err
	}

	txns := make([]*ledger.Transaction, len(txnModels))
	for i := range txnModels {
		txns[i] = txnModels[i].ToDomain()
	}
	return shared.NewPaginated(txns, total, page, pageSize), nil
}

// Delete removes a transaction within a company
func (r *GormTransactionRepository) Delete(ctx context.Context, companyID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.TransactionModel{}, "company_id = ? AND id = ?", companyID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// applyTransactionFilter applies the optional listing criteria to the query
func applyTransactionFilter(query *gorm.DB, filter ledger.TransactionFilter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("description ILIKE ? OR supplier_name ILIKE ?", pattern, pattern)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}
	if filter.GroupID != nil {
		query = query.Where("installment_group_id = ?", *filter.GroupID)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date <= ?", *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		query = query.Where("due_date >= ?", *filter.DueAfter)
	}
	if filter.OverdueOnly {
		query = query.Where("due_date < ? AND status NOT IN ?", time.Now(),
			[]ledger.TransactionStatus{ledger.TransactionStatusPaid, ledger.TransactionStatusRejected})
	}
	return query
}

// normalizePage clamps page and page size to sane bounds
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}

// Ensure GormTransactionRepository implements TransactionRepository
var _ ledger.TransactionRepository = (*GormTransactionRepository)(nil)
