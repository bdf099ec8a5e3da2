package models

import (
	"github.com/google/uuid"
)

// CostCenterModel is the persistence projection of the company cost center
// registry. The ledger only reads routing info from it and keeps the usage
// counter in step; cost center management lives outside this module.
type CostCenterModel struct {
	BaseModel
	CompanyID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Name          string    `gorm:"type:varchar(200);not null"`
	ApproverEmail string    `gorm:"type:varchar(255)"`
	ReleaserEmail string    `gorm:"type:varchar(255)"`
	Active        bool      `gorm:"not null;index"`
	UsageCount    int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CostCenterModel) TableName() string {
	return "cost_centers"
}
