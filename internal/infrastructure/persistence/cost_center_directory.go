package persistence

import (
	"context"
	"errors"

	appledger "github.com/finledger/backend/internal/application/ledger"
	"github.com/finledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCostCenterDirectory implements the application layer's
// CostCenterDirectory port against the cost_centers projection table.
type GormCostCenterDirectory struct {
	db *gorm.DB
}

// NewGormCostCenterDirectory creates a new GormCostCenterDirectory
func NewGormCostCenterDirectory(db *gorm.DB) *GormCostCenterDirectory {
	return &GormCostCenterDirectory{db: db}
}

// Resolve looks up an active cost center of the company. Returns nil without
// error when the ID does not belong to one.
func (d *GormCostCenterDirectory) Resolve(ctx context.Context, companyID, id uuid.UUID) (*appledger.CostCenterInfo, error) {
	var model models.CostCenterModel
	if err := d.db.WithContext(ctx).
		Where("company_id = ? AND id = ? AND active = ?", companyID, id, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appledger.CostCenterInfo{
		ID:            model.ID,
		Name:          model.Name,
		ApproverEmail: model.ApproverEmail,
		ReleaserEmail: model.ReleaserEmail,
	}, nil
}

// IncrementUsage bumps the usage counter of each referenced cost center
func (d *GormCostCenterDirectory) IncrementUsage(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return d.db.WithContext(ctx).
		Model(&models.CostCenterModel{}).
		Where("company_id = ? AND id IN ?", companyID, ids).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
}

// DecrementUsage lowers the usage counter of each referenced cost center,
// never below zero
func (d *GormCostCenterDirectory) DecrementUsage(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return d.db.WithContext(ctx).
		Model(&models.CostCenterModel{}).
		Where("company_id = ? AND id IN ? AND usage_count > 0", companyID, ids).
		UpdateColumn("usage_count", gorm.Expr("usage_count - 1")).Error
}

// Ensure GormCostCenterDirectory implements CostCenterDirectory
var _ appledger.CostCenterDirectory = (*GormCostCenterDirectory)(nil)
