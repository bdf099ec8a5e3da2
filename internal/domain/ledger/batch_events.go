package ledger

import (
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types for the payment batch aggregate
const (
	EventBatchCreated                   = "ledger.batch.created"
	EventBatchSubmitted                 = "ledger.batch.submitted"
	EventBatchApproved                  = "ledger.batch.approved"
	EventBatchSubmittedForAuthorization = "ledger.batch.submitted_for_authorization"
	EventBatchAuthorized                = "ledger.batch.authorized"
	EventBatchPaid                      = "ledger.batch.paid"
	EventBatchRejected                  = "ledger.batch.rejected"
	EventBatchReturned                  = "ledger.batch.returned"
)

// BatchCreatedEvent is published when a payment batch is opened
type BatchCreatedEvent struct {
	shared.BaseDomainEvent
	Name string `json:"name"`
}

// NewBatchCreatedEvent creates a BatchCreatedEvent
func NewBatchCreatedEvent(b *PaymentBatch) *BatchCreatedEvent {
	return &BatchCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchCreated, "PaymentBatch", b.GetID(), b.CompanyID),
		Name:            b.Name,
	}
}

// BatchSubmittedEvent is published when a batch is routed for approval
type BatchSubmittedEvent struct {
	shared.BaseDomainEvent
	Name        string          `json:"name"`
	MemberCount int             `json:"member_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewBatchSubmittedEvent creates a BatchSubmittedEvent
func NewBatchSubmittedEvent(b *PaymentBatch) *BatchSubmittedEvent {
	return &BatchSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchSubmitted, "PaymentBatch", b.GetID(), b.CompanyID),
		Name:            b.Name,
		MemberCount:     len(b.TransactionIDs),
		TotalAmount:     b.TotalAmount,
	}
}

// BatchApprovedEvent is published when a batch approval round completes
type BatchApprovedEvent struct {
	shared.BaseDomainEvent
	ApproverEmail string          `json:"approver_email"`
	MemberCount   int             `json:"member_count"`
	RejectedCount int             `json:"rejected_count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// NewBatchApprovedEvent creates a BatchApprovedEvent
func NewBatchApprovedEvent(b *PaymentBatch, actor Actor) *BatchApprovedEvent {
	return &BatchApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchApproved, "PaymentBatch", b.GetID(), b.CompanyID),
		ApproverEmail:   actor.Email,
		MemberCount:     len(b.TransactionIDs),
		RejectedCount:   len(b.RejectedMembers),
		TotalAmount:     b.TotalAmount,
	}
}

// BatchSubmittedForAuthorizationEvent is published when an approved batch is
// routed to the payment authorizer
type BatchSubmittedForAuthorizationEvent struct {
	shared.BaseDomainEvent
	Name        string          `json:"name"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewBatchSubmittedForAuthorizationEvent creates a BatchSubmittedForAuthorizationEvent
func NewBatchSubmittedForAuthorizationEvent(b *PaymentBatch) *BatchSubmittedForAuthorizationEvent {
	return &BatchSubmittedForAuthorizationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchSubmittedForAuthorization, "PaymentBatch", b.GetID(), b.CompanyID),
		Name:            b.Name,
		TotalAmount:     b.TotalAmount,
	}
}

// BatchAuthorizedEvent is published when payment of a batch is authorized
type BatchAuthorizedEvent struct {
	shared.BaseDomainEvent
	AuthorizerEmail string          `json:"authorizer_email"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// NewBatchAuthorizedEvent creates a BatchAuthorizedEvent
func NewBatchAuthorizedEvent(b *PaymentBatch, actor Actor) *BatchAuthorizedEvent {
	return &BatchAuthorizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchAuthorized, "PaymentBatch", b.GetID(), b.CompanyID),
		AuthorizerEmail: actor.Email,
		TotalAmount:     b.TotalAmount,
	}
}

// BatchPaidEvent is published when payment of a batch is confirmed
type BatchPaidEvent struct {
	shared.BaseDomainEvent
	ConfirmerEmail string          `json:"confirmer_email"`
	MemberCount    int             `json:"member_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// NewBatchPaidEvent creates a BatchPaidEvent
func NewBatchPaidEvent(b *PaymentBatch, actor Actor) *BatchPaidEvent {
	return &BatchPaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchPaid, "PaymentBatch", b.GetID(), b.CompanyID),
		ConfirmerEmail:  actor.Email,
		MemberCount:     len(b.TransactionIDs),
		TotalAmount:     b.TotalAmount,
	}
}

// BatchReturnedEvent is published when an approver sends a batch back to
// the manager without a verdict
type BatchReturnedEvent struct {
	shared.BaseDomainEvent
	ReturnerEmail string `json:"returner_email"`
	Reason        string `json:"reason"`
}

// NewBatchReturnedEvent creates a BatchReturnedEvent
func NewBatchReturnedEvent(b *PaymentBatch, actor Actor, reason string) *BatchReturnedEvent {
	return &BatchReturnedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchReturned, "PaymentBatch", b.GetID(), b.CompanyID),
		ReturnerEmail:   actor.Email,
		Reason:          reason,
	}
}

// BatchRejectedEvent is published when a batch is rejected at either stage
type BatchRejectedEvent struct {
	shared.BaseDomainEvent
	RejecterEmail string `json:"rejecter_email"`
	Reason        string `json:"reason"`
}

// NewBatchRejectedEvent creates a BatchRejectedEvent
func NewBatchRejectedEvent(b *PaymentBatch, actor Actor, reason string) *BatchRejectedEvent {
	return &BatchRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchRejected, "PaymentBatch", b.GetID(), b.CompanyID),
		RejecterEmail:   actor.Email,
		Reason:          reason,
	}
}
