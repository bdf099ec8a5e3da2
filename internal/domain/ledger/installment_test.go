package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstallmentSeries(t *testing.T) {
	companyID := uuid.New()
	firstDue := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	txns, err := NewInstallmentSeries(
		companyID,
		TransactionTypePayable,
		"New laptops",
		decimal.NewFromFloat(1000.00),
		3,
		firstDue,
		singleAllocation(),
		uuid.New(),
	)

	require.NoError(t, err)
	require.Len(t, txns, 3)

	// shared group, sequential numbering
	groupID := txns[0].Installment.GroupID
	for i, txn := range txns {
		require.NotNil(t, txn.Installment)
		assert.Equal(t, groupID, txn.Installment.GroupID)
		assert.Equal(t, i+1, txn.Installment.Number)
		assert.Equal(t, 3, txn.Installment.Total)
		assert.Equal(t, companyID, txn.CompanyID)
		assert.Equal(t, TransactionStatusDraft, txn.Status)
	}

	// amounts: truncated shares, remainder on the last
	assert.True(t, txns[0].Amount.Equal(decimal.NewFromFloat(333.33)))
	assert.True(t, txns[1].Amount.Equal(decimal.NewFromFloat(333.33)))
	assert.True(t, txns[2].Amount.Equal(decimal.NewFromFloat(333.34)))

	// descriptions carry the position
	assert.Equal(t, "New laptops (1/3)", txns[0].Description)
	assert.Equal(t, "New laptops (3/3)", txns[2].Description)

	// due dates clamp through february and snap back
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), txns[0].DueDate)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), txns[1].DueDate)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), txns[2].DueDate)
}

func TestNewInstallmentSeries_CountBounds(t *testing.T) {
	_, err := NewInstallmentSeries(
		uuid.New(), TransactionTypePayable, "New laptops",
		decimal.NewFromFloat(1000.00), 1,
		time.Now(), singleAllocation(), uuid.New(),
	)
	assert.Error(t, err)

	_, err = NewInstallmentSeries(
		uuid.New(), TransactionTypePayable, "New laptops",
		decimal.NewFromFloat(1000.00), MaxInstallments+1,
		time.Now(), singleAllocation(), uuid.New(),
	)
	assert.Error(t, err)
}

func TestNewInstallmentSeries_EachAllocationSums(t *testing.T) {
	allocations := AllocationList{
		{CostCenterID: uuid.New(), Percentage: decimal.NewFromInt(70)},
		{CostCenterID: uuid.New(), Percentage: decimal.NewFromInt(30)},
	}

	txns, err := NewInstallmentSeries(
		uuid.New(), TransactionTypePayable, "Machinery",
		decimal.NewFromFloat(999.99), 4,
		time.Now(), allocations, uuid.New(),
	)

	require.NoError(t, err)
	seriesSum := decimal.Zero
	for _, txn := range txns {
		allocSum := decimal.Zero
		for _, a := range txn.Allocations {
			allocSum = allocSum.Add(a.Amount)
		}
		assert.True(t, allocSum.Equal(txn.Amount), "allocation invariant on installment %d", txn.Installment.Number)
		seriesSum = seriesSum.Add(txn.Amount)
	}
	assert.True(t, seriesSum.Equal(decimal.NewFromFloat(999.99)))
}
