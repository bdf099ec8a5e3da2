package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/finledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// CostCenterAllocation assigns a percentage of a transaction's amount to a
// cost center. Amount is derived from the percentage at generation time.
type CostCenterAllocation struct {
	CostCenterID uuid.UUID       `json:"cost_center_id"`
	Percentage   decimal.Decimal `json:"percentage"`
	Amount       decimal.Decimal `json:"amount"`
}

// AllocationList is an ordered list of cost center allocations.
// It is stored as a JSONB column.
type AllocationList []CostCenterAllocation

// Validate checks the allocation invariant: every percentage is positive,
// percentages sum to exactly 100 and amounts sum to exactly total.
func (l AllocationList) Validate(total decimal.Decimal) error {
	if len(l) == 0 {
		return shared.NewDomainError("ALLOCATION_INVALID", "At least one cost center allocation is required")
	}
	pctSum := decimal.Zero
	amountSum := decimal.Zero
	for _, a := range l {
		if a.CostCenterID == uuid.Nil {
			return shared.NewDomainError("ALLOCATION_INVALID", "Cost center ID cannot be empty")
		}
		if !a.Percentage.IsPositive() {
			return shared.NewDomainError("ALLOCATION_INVALID", "Allocation percentage must be positive")
		}
		pctSum = pctSum.Add(a.Percentage)
		amountSum = amountSum.Add(a.Amount)
	}
	if !pctSum.Equal(oneHundred) {
		return shared.NewDomainError("ALLOCATION_INVALID",
			fmt.Sprintf("Allocation percentages sum to %s, expected 100", pctSum))
	}
	if !amountSum.Equal(total) {
		return shared.NewDomainError("ALLOCATION_INVALID",
			fmt.Sprintf("Allocation amounts sum to %s, expected %s", amountSum, total))
	}
	return nil
}

// Recompute derives each allocation's amount from its percentage of total.
// Amounts are truncated to cents and the rounding remainder goes to the
// last allocation so the amounts always sum to total exactly.
func (l AllocationList) Recompute(total decimal.Decimal) (AllocationList, error) {
	if len(l) == 0 {
		return nil, shared.NewDomainError("ALLOCATION_INVALID", "At least one cost center allocation is required")
	}
	pctSum := decimal.Zero
	for _, a := range l {
		if !a.Percentage.IsPositive() {
			return nil, shared.NewDomainError("ALLOCATION_INVALID", "Allocation percentage must be positive")
		}
		pctSum = pctSum.Add(a.Percentage)
	}
	if !pctSum.Equal(oneHundred) {
		return nil, shared.NewDomainError("ALLOCATION_INVALID",
			fmt.Sprintf("Allocation percentages sum to %s, expected 100", pctSum))
	}

	out := make(AllocationList, len(l))
	assigned := decimal.Zero
	for i, a := range l {
		out[i] = a
		if i == len(l)-1 {
			out[i].Amount = total.Sub(assigned)
			break
		}
		out[i].Amount = total.Mul(a.Percentage).Div(oneHundred).Truncate(2)
		assigned = assigned.Add(out[i].Amount)
	}
	return out, nil
}

// Recomputable checks the percentage half of the invariant without
// requiring amounts, used where the split is stored as percentages only.
func (l AllocationList) Recomputable() error {
	if len(l) == 0 {
		return shared.NewDomainError("ALLOCATION_INVALID", "At least one cost center allocation is required")
	}
	pctSum := decimal.Zero
	for _, a := range l {
		if a.CostCenterID == uuid.Nil {
			return shared.NewDomainError("ALLOCATION_INVALID", "Cost center ID cannot be empty")
		}
		if !a.Percentage.IsPositive() {
			return shared.NewDomainError("ALLOCATION_INVALID", "Allocation percentage must be positive")
		}
		pctSum = pctSum.Add(a.Percentage)
	}
	if !pctSum.Equal(oneHundred) {
		return shared.NewDomainError("ALLOCATION_INVALID",
			fmt.Sprintf("Allocation percentages sum to %s, expected 100", pctSum))
	}
	return nil
}

// Percentages returns a copy of the list with amounts zeroed, suitable for
// reapplying the same split to a different total.
func (l AllocationList) Percentages() AllocationList {
	out := make(AllocationList, len(l))
	for i, a := range l {
		out[i] = CostCenterAllocation{CostCenterID: a.CostCenterID, Percentage: a.Percentage}
	}
	return out
}

// CostCenterIDs returns the distinct cost center IDs in order of appearance
func (l AllocationList) CostCenterIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(l))
	ids := make([]uuid.UUID, 0, len(l))
	for _, a := range l {
		if _, ok := seen[a.CostCenterID]; ok {
			continue
		}
		seen[a.CostCenterID] = struct{}{}
		ids = append(ids, a.CostCenterID)
	}
	return ids
}

// Value implements driver.Valuer for JSONB storage
func (l AllocationList) Value() (driver.Value, error) {
	if l == nil {
		l = AllocationList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB storage
func (l *AllocationList) Scan(value interface{}) error {
	if value == nil {
		*l = AllocationList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported type for AllocationList")
	}
}

// SplitInstallments divides total into n amounts, truncating each share to
// cents and assigning the rounding remainder to the last installment so the
// shares always sum to total exactly.
func SplitInstallments(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < 1 {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Installment count must be at least 1")
	}
	if total.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Amount cannot be negative")
	}
	per := total.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	amounts := make([]decimal.Decimal, n)
	assigned := decimal.Zero
	for i := 0; i < n-1; i++ {
		amounts[i] = per
		assigned = assigned.Add(per)
	}
	amounts[n-1] = total.Sub(assigned)
	return amounts, nil
}
