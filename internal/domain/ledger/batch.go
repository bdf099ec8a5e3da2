package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus represents the lifecycle state of a payment batch
type BatchStatus string

const (
	BatchStatusOpen                 BatchStatus = "OPEN"
	BatchStatusPendingApproval      BatchStatus = "PENDING_APPROVAL"
	BatchStatusApproved             BatchStatus = "APPROVED"
	BatchStatusPendingAuthorization BatchStatus = "PENDING_AUTHORIZATION"
	BatchStatusAuthorized           BatchStatus = "AUTHORIZED"
	BatchStatusPaid                 BatchStatus = "PAID"
	BatchStatusRejected             BatchStatus = "REJECTED"
)

// IsValid checks if the status is a valid BatchStatus
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusOpen, BatchStatusPendingApproval, BatchStatusApproved,
		BatchStatusPendingAuthorization, BatchStatusAuthorized,
		BatchStatusPaid, BatchStatusRejected:
		return true
	}
	return false
}

// String returns the string representation of BatchStatus
func (s BatchStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the batch is in a terminal state
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusPaid || s == BatchStatusRejected
}

// UUIDList is an ordered list of IDs stored as a JSONB column
type UUIDList []uuid.UUID

// Contains returns true if id is in the list
func (l UUIDList) Contains(id uuid.UUID) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer for JSONB storage
func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		l = UUIDList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB storage
func (l *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*l = UUIDList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported type for UUIDList")
	}
}

// RejectedMember records a transaction that was removed from a batch during
// approval, with the approver's reason.
type RejectedMember struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Reason        string    `json:"reason"`
}

// RejectedMemberList is stored as a JSONB column
type RejectedMemberList []RejectedMember

// Value implements driver.Valuer for JSONB storage
func (l RejectedMemberList) Value() (driver.Value, error) {
	if l == nil {
		l = RejectedMemberList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB storage
func (l *RejectedMemberList) Scan(value interface{}) error {
	if value == nil {
		*l = RejectedMemberList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported type for RejectedMemberList")
	}
}

// PaymentBatch groups draft payables for a single approval and payment
// authorization round. Members stay draft until the batch approval decides
// their fate; the batch then moves through authorization to payment as one
// unit.
type PaymentBatch struct {
	shared.CompanyAggregateRoot
	Name   string
	Status BatchStatus

	TransactionIDs  UUIDList
	RejectedMembers RejectedMemberList
	TotalAmount     decimal.Decimal

	ScheduledPaymentDate *time.Time

	// Routing: who the pending stage was sent to. The token slot is
	// shared across both stages, one active token at a time.
	// SubmittedByEmail is the requester of the latest routing; outcome
	// notifications go back to this address.
	ApproverEmail          string
	AuthorizerEmail        string
	SubmittedByEmail       string
	SentForApprovalAt      *time.Time
	SentForAuthorizationAt *time.Time
	ApprovalToken          ApprovalToken

	ApprovedBy        *uuid.UUID
	ApprovedByEmail   string
	ApprovedAt        *time.Time
	ApproverComment   string
	AuthorizedBy      *uuid.UUID
	AuthorizedByEmail string
	AuthorizedAt      *time.Time
	PaidBy            *uuid.UUID
	PaidByEmail       string
	PaidAt            *time.Time
	RejectedBy        *uuid.UUID
	RejectedByEmail   string
	RejectedAt        *time.Time
	RejectionReason   string
}

// NewPaymentBatch creates a new open payment batch
func NewPaymentBatch(companyID uuid.UUID, name string, createdBy uuid.UUID) (*PaymentBatch, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Batch name cannot be empty")
	}

	b := &PaymentBatch{
		CompanyAggregateRoot: shared.NewCompanyAggregateRootWithCreator(companyID, createdBy),
		Name:                 name,
		Status:               BatchStatusOpen,
		TransactionIDs:       UUIDList{},
		RejectedMembers:      RejectedMemberList{},
		TotalAmount:          decimal.Zero,
	}

	b.AddDomainEvent(NewBatchCreatedEvent(b))

	return b, nil
}

// Token implements TokenHolder
func (b *PaymentBatch) Token() ApprovalToken {
	return b.ApprovalToken
}

// AwaitingTokenAction implements TokenHolder. Batches carry a token in both
// of their external stages: approval and payment authorization.
func (b *PaymentBatch) AwaitingTokenAction() bool {
	return b.Status == BatchStatusPendingApproval || b.Status == BatchStatusPendingAuthorization
}

// AddMember records a transaction joining the batch. Membership can only
// change while the batch is open.
func (b *PaymentBatch) AddMember(transactionID uuid.UUID, amount decimal.Decimal) error {
	if b.Status != BatchStatusOpen {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot add transactions to a batch in %s status", b.Status))
	}
	if b.TransactionIDs.Contains(transactionID) {
		return shared.NewDomainError("INVALID_STATE", "Transaction is already in this batch")
	}
	b.TransactionIDs = append(b.TransactionIDs, transactionID)
	b.TotalAmount = b.TotalAmount.Add(amount)
	b.markUpdated()
	return nil
}

// RemoveMember records a transaction leaving the batch while it is open
func (b *PaymentBatch) RemoveMember(transactionID uuid.UUID, amount decimal.Decimal) error {
	if b.Status != BatchStatusOpen {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot remove transactions from a batch in %s status", b.Status))
	}
	if !b.TransactionIDs.Contains(transactionID) {
		return shared.NewDomainError("NOT_FOUND", "Transaction is not in this batch")
	}
	b.removeID(transactionID)
	b.TotalAmount = b.TotalAmount.Sub(amount)
	b.markUpdated()
	return nil
}

// SubmitForApproval transitions open -> pending_approval, attaching the
// freshly minted token and the approver routing in the same mutation. An
// empty batch cannot be routed.
func (b *PaymentBatch) SubmitForApproval(token ApprovalToken, approverEmail string) error {
	if b.Status != BatchStatusOpen {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot submit batch in %s status for approval", b.Status))
	}
	if len(b.TransactionIDs) == 0 {
		return shared.NewDomainError("VALIDATION_FAILED", "Cannot submit an empty batch for approval")
	}
	if approverEmail == "" {
		return shared.NewDomainError("VALIDATION_FAILED", "Approver email is required")
	}
	if !token.IsPresent() {
		return shared.NewDomainError("VALIDATION_FAILED", "A token is required to submit for approval")
	}

	now := time.Now()
	b.Status = BatchStatusPendingApproval
	b.ApprovalToken = token
	b.ApproverEmail = approverEmail
	b.SentForApprovalAt = &now
	b.markUpdated()

	b.AddDomainEvent(NewBatchSubmittedEvent(b))

	return nil
}

// RecordMemberDecision applies a per-member approval decision: a rejected
// member moves to the rejected list and leaves the total; an adjusted member
// shifts the total by the difference. Only callable during pending approval,
// before Approve seals the batch.
func (b *PaymentBatch) RecordMemberDecision(transactionID uuid.UUID, previousAmount decimal.Decimal, decision MemberDecision) error {
	if b.Status != BatchStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot record member decisions on a batch in %s status", b.Status))
	}
	if !b.TransactionIDs.Contains(transactionID) {
		return shared.NewDomainError("NOT_FOUND", "Transaction is not in this batch")
	}

	if decision.Rejected {
		b.removeID(transactionID)
		b.RejectedMembers = append(b.RejectedMembers, RejectedMember{
			TransactionID: transactionID,
			Reason:        decision.RejectionReason,
		})
		b.TotalAmount = b.TotalAmount.Sub(previousAmount)
	} else if decision.AdjustedAmount != nil {
		b.TotalAmount = b.TotalAmount.Sub(previousAmount).Add(*decision.AdjustedAmount)
	}
	b.markUpdated()
	return nil
}

// MemberDecision is the approver's verdict on one batch member
type MemberDecision struct {
	Rejected        bool
	RejectionReason string
	AdjustedAmount  *decimal.Decimal
}

// Approve transitions pending_approval -> approved, consuming the token. At
// least one member must have survived the per-member decisions.
func (b *PaymentBatch) Approve(actor Actor, comment string) error {
	if b.Status != BatchStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot approve batch in %s status", b.Status))
	}
	if len(b.TransactionIDs) == 0 {
		return shared.NewDomainError("VALIDATION_FAILED",
			"Cannot approve a batch with all members rejected; reject the batch instead")
	}

	now := time.Now()
	b.Status = BatchStatusApproved
	b.ApprovalToken = b.ApprovalToken.Cleared()
	b.ApprovedBy = actor.ID
	b.ApprovedByEmail = actor.Email
	b.ApprovedAt = &now
	if comment != "" {
		b.ApproverComment = comment
	}
	b.markUpdated()

	b.AddDomainEvent(NewBatchApprovedEvent(b, actor))

	return nil
}

// ReturnToManager transitions pending_approval -> open, undoing the routing
// without a verdict. The token and approver assignment are cleared and the
// reason is prefixed onto the approver comment; membership is unchanged.
func (b *PaymentBatch) ReturnToManager(actor Actor, reason string) error {
	if b.Status != BatchStatusPendingApproval {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot return batch in %s status to manager", b.Status))
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_FAILED", "Return reason is required")
	}

	b.Status = BatchStatusOpen
	b.ApprovalToken = b.ApprovalToken.Cleared()
	b.ApproverEmail = ""
	b.SentForApprovalAt = nil
	if b.ApproverComment != "" {
		b.ApproverComment = reason + "; " + b.ApproverComment
	} else {
		b.ApproverComment = reason
	}
	b.markUpdated()

	b.AddDomainEvent(NewBatchReturnedEvent(b, actor, reason))

	return nil
}

// Reject transitions either pending stage -> rejected with a mandatory
// reason, consuming the token. All members return to draft outside the
// batch; the caller releases them.
func (b *PaymentBatch) Reject(actor Actor, reason string) error {
	if b.Status != BatchStatusPendingApproval && b.Status != BatchStatusPendingAuthorization {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot reject batch in %s status", b.Status))
	}
	if reason == "" {
		return shared.NewDomainError("VALIDATION_FAILED", "Rejection reason is required")
	}

	now := time.Now()
	b.Status = BatchStatusRejected
	b.ApprovalToken = b.ApprovalToken.Cleared()
	b.RejectedBy = actor.ID
	b.RejectedByEmail = actor.Email
	b.RejectedAt = &now
	b.RejectionReason = reason
	b.markUpdated()

	b.AddDomainEvent(NewBatchRejectedEvent(b, actor, reason))

	return nil
}

// SubmitForAuthorization transitions approved -> pending_authorization,
// reusing the shared token slot for the payment authorizer's token.
func (b *PaymentBatch) SubmitForAuthorization(token ApprovalToken, authorizerEmail string) error {
	if b.Status != BatchStatusApproved {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot submit batch in %s status for authorization", b.Status))
	}
	if authorizerEmail == "" {
		return shared.NewDomainError("VALIDATION_FAILED", "Authorizer email is required")
	}
	if !token.IsPresent() {
		return shared.NewDomainError("VALIDATION_FAILED", "A token is required to submit for authorization")
	}

	now := time.Now()
	b.Status = BatchStatusPendingAuthorization
	b.ApprovalToken = token
	b.AuthorizerEmail = authorizerEmail
	b.SentForAuthorizationAt = &now
	b.markUpdated()

	b.AddDomainEvent(NewBatchSubmittedForAuthorizationEvent(b))

	return nil
}

// Authorize transitions pending_authorization -> authorized, consuming the
// token and optionally recording the scheduled payment date.
func (b *PaymentBatch) Authorize(actor Actor, scheduledPaymentDate *time.Time) error {
	if b.Status != BatchStatusPendingAuthorization {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot authorize batch in %s status", b.Status))
	}

	now := time.Now()
	b.Status = BatchStatusAuthorized
	b.ApprovalToken = b.ApprovalToken.Cleared()
	b.AuthorizedBy = actor.ID
	b.AuthorizedByEmail = actor.Email
	b.AuthorizedAt = &now
	b.ScheduledPaymentDate = scheduledPaymentDate
	b.markUpdated()

	b.AddDomainEvent(NewBatchAuthorizedEvent(b, actor))

	return nil
}

// ConfirmPayment transitions authorized -> paid. Every surviving member is
// settled at its effective amount by the caller in the same commit.
func (b *PaymentBatch) ConfirmPayment(actor Actor, paymentDate time.Time) error {
	if b.Status != BatchStatusAuthorized {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot confirm payment of batch in %s status", b.Status))
	}
	if paymentDate.IsZero() {
		return shared.NewDomainError("VALIDATION_FAILED", "Payment date is required")
	}

	now := time.Now()
	b.Status = BatchStatusPaid
	b.PaidBy = actor.ID
	b.PaidByEmail = actor.Email
	b.PaidAt = &now
	b.markUpdated()

	b.AddDomainEvent(NewBatchPaidEvent(b, actor))

	return nil
}

// CanDelete reports whether the batch may be removed. Only open and
// rejected batches can be deleted; anything in between is part of an
// approval round in flight.
func (b *PaymentBatch) CanDelete() error {
	if b.Status != BatchStatusOpen && b.Status != BatchStatusRejected {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot delete batch in %s status", b.Status))
	}
	return nil
}

func (b *PaymentBatch) removeID(transactionID uuid.UUID) {
	out := make(UUIDList, 0, len(b.TransactionIDs))
	for _, id := range b.TransactionIDs {
		if id != transactionID {
			out = append(out, id)
		}
	}
	b.TransactionIDs = out
}

func (b *PaymentBatch) markUpdated() {
	b.Touch()
	b.IncrementVersion()
}
