package ledger

import (
	"fmt"
	"time"

	"github.com/finledger/backend/internal/domain/shared"
	"github.com/finledger/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType distinguishes money owed by the company from money owed to it
type TransactionType string

const (
	TransactionTypePayable    TransactionType = "PAYABLE"
	TransactionTypeReceivable TransactionType = "RECEIVABLE"
)

// IsValid checks if the type is a valid TransactionType
func (t TransactionType) IsValid() bool {
	return t == TransactionTypePayable || t == TransactionTypeReceivable
}

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// TransactionStatus represents the lifecycle state of a transaction
type TransactionStatus string

const (
	TransactionStatusDraft           TransactionStatus = "DRAFT"
	TransactionStatusPendingApproval TransactionStatus = "PENDING_APPROVAL"
	TransactionStatusApproved        TransactionStatus = "APPROVED"
	TransactionStatusPaid            TransactionStatus = "PAID"
	TransactionStatusRejected        TransactionStatus = "REJECTED"
)

// IsValid checks if the status is a valid TransactionStatus
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusDraft, TransactionStatusPendingApproval,
		TransactionStatusApproved, TransactionStatusPaid, TransactionStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of TransactionStatus
func (s TransactionStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the transaction is in a terminal state.
// A rejected transaction can only leave this state through an explicit
// edit that resets it to draft, which is not a lifecycle transition.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusPaid || s == TransactionStatusRejected
}

// InstallmentInfo links a transaction to its sibling installments.
// Siblings share one GroupID and represent a single logical purchase.
type InstallmentInfo struct {
	Number  int       `json:"number"`
	Total   int       `json:"total"`
	GroupID uuid.UUID `json:"group_id"`
}

// Transaction is a single payable or receivable obligation with its own
// approval and settlement lifecycle. It is the aggregate root of the
// transaction state machine.
type Transaction struct {
	shared.CompanyAggregateRoot
	Type         TransactionType
	Description  string
	SupplierName string
	Notes        string

	Amount         decimal.Decimal
	OriginalAmount *decimal.Decimal // set only when an approver overrides the amount
	FinalAmount    *decimal.Decimal // set only at settlement
	Discount       decimal.Decimal
	Interest       decimal.Decimal

	Status      TransactionStatus
	DueDate     time.Time
	PaymentDate *time.Time

	Allocations AllocationList

	BatchID             *uuid.UUID
	BatchAdjustedAmount *decimal.Decimal // adjusted amount applied during batch approval
	Installment         *InstallmentInfo

	ApprovalToken ApprovalToken
	// SubmittedByEmail is the requester who routed the transaction; the
	// outcome notification goes back to this address.
	SubmittedByEmail string

	ApprovedBy      *uuid.UUID
	ApprovedByEmail string
	ApprovedAt      *time.Time
	ReleasedBy      *uuid.UUID
	ReleasedByEmail string
	ReleasedAt      *time.Time
	RejectedBy      *uuid.UUID
	RejectedByEmail string
	RejectedAt      *time.Time
	RejectionReason string
}

// NewTransaction creates a new transaction. Payables start as draft and go
// through the approval chain; receivables are considered already committed
// once entered, since no internal approval governs money owed to the
// company, so they start approved.
func NewTransaction(
	companyID uuid.UUID,
	txType TransactionType,
	description string,
	amount valueobject.Money,
	dueDate time.Time,
	allocations AllocationList,
	createdBy uuid.UUID,
) (*Transaction, error) {
	if !txType.IsValid() {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Transaction type is not valid")
	}
	if description == "" {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Description cannot be empty")
	}
	if amount.Amount().IsNegative() {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Amount cannot be negative")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Due date is required")
	}

	computed, err := allocations.Recompute(amount.Amount())
	if err != nil {
		return nil, err
	}

	status := TransactionStatusDraft
	if txType == TransactionTypeReceivable {
		status = TransactionStatusApproved
	}

	t := &Transaction{
		CompanyAggregateRoot: shared.NewCompanyAggregateRootWithCreator(companyID, createdBy),
		Type:                 txType,
		Description:          description,
		Amount:               amount.Amount(),
		Discount:             decimal.Zero,
		Interest:             decimal.Zero,
		Status:               status,
		DueDate:              dueDate,
		Allocations:          computed,
	}

	t.AddDomainEvent(NewTransactionCreatedEvent(t))

	return t, nil
}

// Token implements TokenHolder
func (t *Transaction) Token() ApprovalToken {
	return t.ApprovalToken
}

// AwaitingTokenAction implements TokenHolder. A transaction token is only
// actionable while the transaction is still pending approval.
func (t *Transaction) AwaitingTokenAction() bool {
	return t.Status == TransactionStatusPendingApproval
}

// SubmitForApproval transitions draft -> pending_approval, attaching the
// freshly minted token in the same mutation as the status change so a
// pending transaction always carries a usable token.
func (t *Transaction) SubmitForApproval(token ApprovalToken) error {
	if t.Status != TransactionStatusDraft {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot submit transaction in %s status for approval", t.Status))
	}
	if !token.IsPresent() {
		return shared.NewDomainError("VALIDATION_FAILED", "A token is required to submit for approval")
	}

	t.Status = TransactionStatusPendingApproval
	t.ApprovalToken = token
	t.markUpdated()

	t.AddDomainEvent(NewTransactionSubmittedEvent(t))

	return nil
}

// Approve transitions pending_approval -> approved and consumes the token
// in the same mutation. A non-nil amountOverride replaces the amount; the
// previous amount is preserved under OriginalAmount and the allocation is
// recomputed so history is never silently rewritten.
func (t *Transaction) Approve(actor Actor, amountOverride *decimal.Decimal) error {
	if t.Status != TransactionStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot approve transaction in %s status", t.Status))
	}

	if amountOverride != nil && !amountOverride.Equal(t.Amount) {
		if amountOverride.IsNegative() {
			return shared.NewDomainError("VALIDATION_FAILED", "Amount override cannot be negative")
		}
		original := t.Amount
		t.OriginalAmount = &original
		t.Amount = *amountOverride
		computed, err := t.Allocations.Recompute(t.Amount)
		if err != nil {
			return err
		}
		t.Allocations = computed
	}

	now := time.Now()
	t.Status = TransactionStatusApproved
	t.ApprovalToken = t.ApprovalToken.Cleared()
	t.ApprovedBy = actor.ID
	t.ApprovedByEmail = actor.Email
	t.ApprovedAt = &now
	t.markUpdated()

	t.AddDomainEvent(NewTransactionApprovedEvent(t, actor))

	return nil
}

// Reject transitions pending_approval -> rejected with a mandatory reason,
// consuming the token in the same mutation.
func (t *Transaction) Reject(actor Actor, reason string) error {
	if t.Status != TransactionStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reject transaction in %s status", t.Status))
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_FAILED", "Rejection reason is required")
	}

	now := time.Now()
	t.Status = TransactionStatusRejected
	t.ApprovalToken = t.ApprovalToken.Cleared()
	t.RejectedBy = actor.ID
	t.RejectedByEmail = actor.Email
	t.RejectedAt = &now
	t.RejectionReason = reason
	t.markUpdated()

	t.AddDomainEvent(NewTransactionRejectedEvent(t, actor, reason))

	return nil
}

// Settle transitions approved -> paid, recording the actual payment. The
// difference between finalAmount and amount becomes a discount (paid less)
// or interest (paid more); the two are mutually exclusive and never negative.
func (t *Transaction) Settle(actor Actor, paymentDate time.Time, finalAmount decimal.Decimal) error {
	if t.Status != TransactionStatusApproved {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot settle transaction in %s status", t.Status))
	}
	if finalAmount.IsNegative() {
		return shared.NewDomainError("VALIDATION_FAILED", "Final amount cannot be negative")
	}
	if paymentDate.IsZero() {
		return shared.NewDomainError("VALIDATION_FAILED", "Payment date is required")
	}

	t.FinalAmount = &finalAmount
	if finalAmount.LessThan(t.Amount) {
		t.Discount = t.Amount.Sub(finalAmount)
		t.Interest = decimal.Zero
	} else {
		t.Interest = finalAmount.Sub(t.Amount)
		t.Discount = decimal.Zero
	}

	now := time.Now()
	t.Status = TransactionStatusPaid
	t.PaymentDate = &paymentDate
	t.ReleasedBy = actor.ID
	t.ReleasedByEmail = actor.Email
	t.ReleasedAt = &now
	t.markUpdated()

	t.AddDomainEvent(NewTransactionSettledEvent(t, actor))

	return nil
}

// AttachToBatch records membership in a payment batch. A transaction can
// belong to at most one batch and only while it is a draft.
func (t *Transaction) AttachToBatch(batchID uuid.UUID) error {
	if t.Status != TransactionStatusDraft {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot add transaction in %s status to a batch", t.Status))
	}
	if t.BatchID != nil {
		return shared.NewDomainError("INVALID_STATE", "Transaction already belongs to a batch")
	}
	if t.ApprovalToken.IsPresent() {
		return shared.NewDomainError("INVALID_STATE", "Transaction routed via magic link cannot join a batch")
	}
	t.BatchID = &batchID
	t.markUpdated()
	return nil
}

// DetachFromBatch clears batch membership
func (t *Transaction) DetachFromBatch() {
	t.BatchID = nil
	t.BatchAdjustedAmount = nil
	t.markUpdated()
}

// ApproveViaBatch marks a batch member approved during batch approval. A
// non-nil adjustedAmount is stored alongside the preserved original amount.
func (t *Transaction) ApproveViaBatch(actor Actor, adjustedAmount *decimal.Decimal) error {
	if t.Status != TransactionStatusDraft {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot batch-approve transaction in %s status", t.Status))
	}
	if t.BatchID == nil {
		return shared.NewDomainError("INVALID_STATE", "Transaction does not belong to a batch")
	}
	if adjustedAmount != nil {
		if adjustedAmount.IsNegative() {
			return shared.NewDomainError("VALIDATION_FAILED", "Adjusted amount cannot be negative")
		}
		t.BatchAdjustedAmount = adjustedAmount
	}

	now := time.Now()
	t.Status = TransactionStatusApproved
	t.ApprovedBy = actor.ID
	t.ApprovedByEmail = actor.Email
	t.ApprovedAt = &now
	t.markUpdated()

	t.AddDomainEvent(NewTransactionApprovedEvent(t, actor))

	return nil
}

// RejectFromBatch returns a batch member to draft with the rejection reason
// kept for reference. The transaction leaves the batch; the batch itself is
// unaffected.
func (t *Transaction) RejectFromBatch(actor Actor, reason string) error {
	if t.BatchID == nil {
		return shared.NewDomainError("INVALID_STATE", "Transaction does not belong to a batch")
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_FAILED", "Rejection reason is required")
	}

	now := time.Now()
	t.Status = TransactionStatusDraft
	t.BatchID = nil
	t.BatchAdjustedAmount = nil
	t.RejectedBy = actor.ID
	t.RejectedByEmail = actor.Email
	t.RejectedAt = &now
	t.RejectionReason = reason
	t.markUpdated()

	t.AddDomainEvent(NewTransactionRejectedEvent(t, actor, reason))

	return nil
}

// MarkPaidViaBatch marks a batch member paid during batch payment
// confirmation, recording the confirming actor as the releaser.
func (t *Transaction) MarkPaidViaBatch(actor Actor, paymentDate time.Time) error {
	if t.Status != TransactionStatusApproved {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot mark transaction in %s status as paid", t.Status))
	}
	if t.BatchID == nil {
		return shared.NewDomainError("INVALID_STATE", "Transaction does not belong to a batch")
	}

	settled := t.Amount
	if t.BatchAdjustedAmount != nil {
		settled = *t.BatchAdjustedAmount
	}
	t.FinalAmount = &settled
	if settled.LessThan(t.Amount) {
		t.Discount = t.Amount.Sub(settled)
		t.Interest = decimal.Zero
	} else {
		t.Interest = settled.Sub(t.Amount)
		t.Discount = decimal.Zero
	}

	now := time.Now()
	t.Status = TransactionStatusPaid
	t.PaymentDate = &paymentDate
	t.ReleasedBy = actor.ID
	t.ReleasedByEmail = actor.Email
	t.ReleasedAt = &now
	t.markUpdated()

	t.AddDomainEvent(NewTransactionSettledEvent(t, actor))

	return nil
}

// TransactionUpdate carries the updatable non-status fields. Nil pointers
// leave the current value untouched.
type TransactionUpdate struct {
	Description  *string
	SupplierName *string
	Notes        *string
	DueDate      *time.Time
	Amount       *decimal.Decimal
	Allocations  AllocationList // nil = unchanged; amounts recomputed from percentages
}

// SeriesSafe strips the fields excluded from series-scope propagation.
// Due dates and amounts stay installment-specific: propagating due dates
// across a series is ambiguous and propagating amounts would break the
// group-sum invariant.
func (u TransactionUpdate) SeriesSafe() TransactionUpdate {
	return TransactionUpdate{
		Description:  u.Description,
		SupplierName: u.SupplierName,
		Notes:        u.Notes,
		Allocations:  u.Allocations,
	}
}

// ApplyUpdate applies non-status field changes in any lifecycle state,
// recomputing the allocation invariant when the amount or the allocation
// split changes.
func (t *Transaction) ApplyUpdate(u TransactionUpdate) error {
	if u.Description != nil {
		if *u.Description == "" {
			return shared.NewDomainError("VALIDATION_FAILED", "Description cannot be empty")
		}
		t.Description = *u.Description
	}
	if u.SupplierName != nil {
		t.SupplierName = *u.SupplierName
	}
	if u.Notes != nil {
		t.Notes = *u.Notes
	}
	if u.DueDate != nil {
		if u.DueDate.IsZero() {
			return shared.NewDomainError("VALIDATION_FAILED", "Due date cannot be empty")
		}
		t.DueDate = *u.DueDate
	}
	if u.Amount != nil {
		if u.Amount.IsNegative() {
			return shared.NewDomainError("VALIDATION_FAILED", "Amount cannot be negative")
		}
		t.Amount = *u.Amount
	}

	allocations := t.Allocations
	if u.Allocations != nil {
		allocations = u.Allocations
	}
	computed, err := allocations.Recompute(t.Amount)
	if err != nil {
		return err
	}
	t.Allocations = computed
	t.markUpdated()

	return nil
}

// CanDelete reports whether the transaction may be removed. Members of a
// batch that already left the open stage are frozen.
func (t *Transaction) CanDelete(batchStatus *BatchStatus) error {
	if t.BatchID != nil && batchStatus != nil && *batchStatus != BatchStatusOpen {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot delete a transaction attached to a routed batch")
	}
	return nil
}

// EffectiveAmount returns the amount the transaction settles at: the batch
// adjustment when present, otherwise the (possibly overridden) amount.
func (t *Transaction) EffectiveAmount() decimal.Decimal {
	if t.BatchAdjustedAmount != nil {
		return *t.BatchAdjustedAmount
	}
	return t.Amount
}

// IsOverdue returns true if the transaction is past due and not settled
func (t *Transaction) IsOverdue(now time.Time) bool {
	if t.Status == TransactionStatusPaid || t.Status == TransactionStatusRejected {
		return false
	}
	return t.DueDate.Before(now)
}

// Snapshot returns the auditable field values as a flat map, used to
// compute field-level diffs for the audit trail.
func (t *Transaction) Snapshot() map[string]any {
	snap := map[string]any{
		"type":        string(t.Type),
		"description": t.Description,
		"supplier":    t.SupplierName,
		"notes":       t.Notes,
		"amount":      t.Amount.String(),
		"status":      string(t.Status),
		"due_date":    t.DueDate.Format("2006-01-02"),
	}
	allocs := make([]map[string]string, len(t.Allocations))
	for i, a := range t.Allocations {
		allocs[i] = map[string]string{
			"cost_center_id": a.CostCenterID.String(),
			"percentage":     a.Percentage.String(),
			"amount":         a.Amount.String(),
		}
	}
	snap["allocations"] = allocs
	if t.BatchID != nil {
		snap["batch_id"] = t.BatchID.String()
	}
	if t.FinalAmount != nil {
		snap["final_amount"] = t.FinalAmount.String()
	}
	return snap
}

func (t *Transaction) markUpdated() {
	t.Touch()
	t.IncrementVersion()
}
