package persistence

import (
	"testing"
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared/valueobject"
	"github.com/finledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory SQLite database with the ledger schema
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.TransactionModel{},
		&models.PaymentBatchModel{},
		&models.RecurringTemplateModel{},
		&models.AuditLogModel{},
	))

	return db
}

// testAllocations returns a 100% allocation to a fresh cost center
func testAllocations() ledger.AllocationList {
	return ledger.AllocationList{
		{CostCenterID: uuid.New(), Percentage: decimal.NewFromInt(100)},
	}
}

// newTestPayable creates a draft payable due in 30 days
func newTestPayable(t *testing.T, companyID uuid.UUID, amount float64) *ledger.Transaction {
	t.Helper()

	txn, err := ledger.NewTransaction(
		companyID,
		ledger.TransactionTypePayable,
		"Office supplies",
		valueobject.NewMoneyBRLFromFloat(amount),
		time.Now().AddDate(0, 0, 30),
		testAllocations(),
		uuid.New(),
	)
	require.NoError(t, err)
	return txn
}
