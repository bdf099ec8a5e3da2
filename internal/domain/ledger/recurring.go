package ledger

import (
	"fmt"
	"time"

	"github.com/finledger/backend/internal/domain/shared"
	"github.com/finledger/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecurrenceFrequency is the unit of a template's generation cadence. The
// effective period is frequency times interval.
type RecurrenceFrequency string

const (
	FrequencyDaily   RecurrenceFrequency = "DAILY"
	FrequencyWeekly  RecurrenceFrequency = "WEEKLY"
	FrequencyMonthly RecurrenceFrequency = "MONTHLY"
	FrequencyYearly  RecurrenceFrequency = "YEARLY"
)

// IsValid checks if the frequency is a valid RecurrenceFrequency
func (f RecurrenceFrequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// String returns the string representation of RecurrenceFrequency
func (f RecurrenceFrequency) String() string {
	return string(f)
}

// RecurringTemplate generates draft transactions on a fixed cadence. The
// template itself never enters the approval flow; each generated
// transaction starts its own lifecycle.
type RecurringTemplate struct {
	shared.CompanyAggregateRoot
	Type         TransactionType
	Description  string
	SupplierName string
	Notes        string
	Amount       decimal.Decimal
	Allocations  AllocationList

	Frequency   RecurrenceFrequency
	Interval    int
	NextDueDate time.Time
	// AnchorDay is the day-of-month the schedule was created on. Month
	// advances clamp to shorter months but snap back to this day, so a
	// schedule anchored on the 31st lands on Feb 28 and then Mar 31.
	AnchorDay int
	EndDate   *time.Time
	Active    bool

	LastGeneratedAt *time.Time
	GeneratedCount  int
}

// NewRecurringTemplate creates a new active recurring template starting at
// firstDueDate.
func NewRecurringTemplate(
	companyID uuid.UUID,
	txType TransactionType,
	description string,
	amount decimal.Decimal,
	allocations AllocationList,
	frequency RecurrenceFrequency,
	interval int,
	firstDueDate time.Time,
	endDate *time.Time,
	createdBy uuid.UUID,
) (*RecurringTemplate, error) {
	if !txType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Transaction type is not valid")
	}
	if description == "" {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Description cannot be empty")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Amount cannot be negative")
	}
	if !frequency.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Recurrence frequency is not valid")
	}
	if interval < 1 {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Recurrence interval must be at least 1")
	}
	if firstDueDate.IsZero() {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "First due date is required")
	}
	if endDate != nil && endDate.Before(firstDueDate) {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "End date cannot precede the first due date")
	}
	if err := allocations.Percentages().Recomputable(); err != nil {
		return nil, err
	}

	return &RecurringTemplate{
		CompanyAggregateRoot: shared.NewCompanyAggregateRootWithCreator(companyID, createdBy),
		Type:                 txType,
		Description:          description,
		Amount:               amount,
		Allocations:          allocations.Percentages(),
		Frequency:            frequency,
		Interval:             interval,
		NextDueDate:          firstDueDate,
		AnchorDay:            firstDueDate.Day(),
		EndDate:              endDate,
		Active:               true,
	}, nil
}

// IsDue reports whether the template should generate on a sweep running at
// now: active and the next due date has arrived.
func (r *RecurringTemplate) IsDue(now time.Time) bool {
	return r.Active && !r.NextDueDate.After(now)
}

// HasEnded reports whether the schedule's end date has passed
func (r *RecurringTemplate) HasEnded(now time.Time) bool {
	return r.EndDate != nil && r.EndDate.Before(now)
}

// GenerateTransaction creates the next draft transaction from the template
// and advances the schedule. At most one transaction is generated per call;
// a template that fell multiple periods behind catches up one sweep at a
// time.
func (r *RecurringTemplate) GenerateTransaction(now time.Time, createdBy uuid.UUID) (*Transaction, error) {
	if !r.Active {
		return nil, shared.NewDomainError("INVALID_STATE", "Recurring template is not active")
	}
	if r.NextDueDate.After(now) {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Template is not due until %s", r.NextDueDate.Format("2006-01-02")))
	}

	txn, err := NewTransaction(
		r.CompanyID,
		r.Type,
		r.Description,
		valueobject.NewMoneyBRL(r.Amount),
		r.NextDueDate,
		r.Allocations,
		createdBy,
	)
	if err != nil {
		return nil, err
	}
	txn.SupplierName = r.SupplierName
	txn.Notes = r.Notes

	r.advance()
	r.GeneratedCount++
	generatedAt := now
	r.LastGeneratedAt = &generatedAt
	if r.EndDate != nil && r.NextDueDate.After(*r.EndDate) {
		r.Active = false
	}
	r.markUpdated()

	return txn, nil
}

// Deactivate stops the template from generating further transactions
func (r *RecurringTemplate) Deactivate() {
	r.Active = false
	r.markUpdated()
}

// Activate resumes generation
func (r *RecurringTemplate) Activate() error {
	if r.EndDate != nil && r.NextDueDate.After(*r.EndDate) {
		return shared.NewDomainError("INVALID_STATE", "Template schedule has already ended")
	}
	r.Active = true
	r.markUpdated()
	return nil
}

// RecurringTemplateUpdate carries the updatable template fields. Nil
// pointers leave the current value untouched.
type RecurringTemplateUpdate struct {
	Description  *string
	SupplierName *string
	Notes        *string
	Amount       *decimal.Decimal
	Allocations  AllocationList
	EndDate      *time.Time
}

// ApplyUpdate applies field changes to the template. Changes affect future
// generations only; transactions already generated are untouched.
func (r *RecurringTemplate) ApplyUpdate(u RecurringTemplateUpdate) error {
	if u.Description != nil {
		if *u.Description == "" {
			return shared.NewDomainError("VALIDATION_FAILED", "Description cannot be empty")
		}
		r.Description = *u.Description
	}
	if u.SupplierName != nil {
		r.SupplierName = *u.SupplierName
	}
	if u.Notes != nil {
		r.Notes = *u.Notes
	}
	if u.Amount != nil {
		if u.Amount.IsNegative() {
			return shared.NewDomainError("VALIDATION_FAILED", "Amount cannot be negative")
		}
		r.Amount = *u.Amount
	}
	if u.Allocations != nil {
		if err := u.Allocations.Percentages().Recomputable(); err != nil {
			return err
		}
		r.Allocations = u.Allocations.Percentages()
	}
	if u.EndDate != nil {
		r.EndDate = u.EndDate
	}
	r.markUpdated()
	return nil
}

// advance moves the schedule one period forward
func (r *RecurringTemplate) advance() {
	switch r.Frequency {
	case FrequencyDaily:
		r.NextDueDate = r.NextDueDate.AddDate(0, 0, r.Interval)
	case FrequencyWeekly:
		r.NextDueDate = r.NextDueDate.AddDate(0, 0, 7*r.Interval)
	case FrequencyMonthly:
		r.NextDueDate = addMonthsClamped(r.NextDueDate, r.Interval, r.AnchorDay)
	case FrequencyYearly:
		r.NextDueDate = addMonthsClamped(r.NextDueDate, 12*r.Interval, r.AnchorDay)
	}
}

// addMonthsClamped adds months to t, landing on anchorDay or the last day
// of the target month when it is shorter. Unlike time.AddDate this never
// spills into the following month (Jan 31 + 1 month is Feb 28, not Mar 3).
func addMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	year, month, _ := t.Date()
	targetMonth := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := targetMonth.AddDate(0, 1, -1).Day()
	day := anchorDay
	if day > lastDay {
		day = lastDay
	}
	hour, min, sec := t.Clock()
	return time.Date(targetMonth.Year(), targetMonth.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func (r *RecurringTemplate) markUpdated() {
	r.Touch()
	r.IncrementVersion()
}
