package ledger

import (
	"fmt"
	"time"

	"github.com/finledger/backend/internal/domain/shared"
	"github.com/finledger/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxInstallments bounds the size of an installment series
const MaxInstallments = 120

// NewInstallmentSeries splits a purchase into count monthly transactions
// sharing one group ID. The total is divided with cent truncation and the
// rounding remainder goes to the last installment, so the series always
// sums to total exactly. Due dates advance month by month from firstDueDate
// with short months clamped.
func NewInstallmentSeries(
	companyID uuid.UUID,
	txType TransactionType,
	description string,
	total decimal.Decimal,
	count int,
	firstDueDate time.Time,
	allocations AllocationList,
	createdBy uuid.UUID,
) ([]*Transaction, error) {
	if count < 2 {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "An installment series needs at least 2 installments")
	}
	if count > MaxInstallments {
		return nil, shared.NewDomainError("VALIDATION_FAILED",
			fmt.Sprintf("Installment count cannot exceed %d", MaxInstallments))
	}

	amounts, err := SplitInstallments(total, count)
	if err != nil {
		return nil, err
	}

	groupID := uuid.New()
	anchorDay := firstDueDate.Day()
	dueDate := firstDueDate

	txns := make([]*Transaction, count)
	for i := 0; i < count; i++ {
		txn, err := NewTransaction(
			companyID,
			txType,
			fmt.Sprintf("%s (%d/%d)", description, i+1, count),
			valueobject.NewMoneyBRL(amounts[i]),
			dueDate,
			allocations,
			createdBy,
		)
		if err != nil {
			return nil, err
		}
		txn.Installment = &InstallmentInfo{Number: i + 1, Total: count, GroupID: groupID}
		txns[i] = txn
		dueDate = addMonthsClamped(dueDate, 1, anchorDay)
	}
	return txns, nil
}
