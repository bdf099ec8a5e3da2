package ledger

import (
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event types for the transaction aggregate
const (
	EventTransactionCreated   = "ledger.transaction.created"
	EventTransactionSubmitted = "ledger.transaction.submitted"
	EventTransactionApproved  = "ledger.transaction.approved"
	EventTransactionRejected  = "ledger.transaction.rejected"
	EventTransactionSettled   = "ledger.transaction.settled"
)

// TransactionCreatedEvent is published when a transaction is entered
type TransactionCreatedEvent struct {
	shared.BaseDomainEvent
	TransactionType TransactionType `json:"transaction_type"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
}

// NewTransactionCreatedEvent creates a TransactionCreatedEvent
func NewTransactionCreatedEvent(t *Transaction) *TransactionCreatedEvent {
	return &TransactionCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTransactionCreated, "Transaction", t.GetID(), t.CompanyID),
		TransactionType: t.Type,
		Description:     t.Description,
		Amount:          t.Amount,
	}
}

// TransactionSubmittedEvent is published when a transaction is routed to an
// external approver via magic link
type TransactionSubmittedEvent struct {
	shared.BaseDomainEvent
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// NewTransactionSubmittedEvent creates a TransactionSubmittedEvent
func NewTransactionSubmittedEvent(t *Transaction) *TransactionSubmittedEvent {
	return &TransactionSubmittedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTransactionSubmitted, "Transaction", t.GetID(), t.CompanyID),
		Description:     t.Description,
		Amount:          t.Amount,
	}
}

// TransactionApprovedEvent is published when a transaction is approved,
// either individually or as part of a batch
type TransactionApprovedEvent struct {
	shared.BaseDomainEvent
	ApproverEmail string          `json:"approver_email"`
	Amount        decimal.Decimal `json:"amount"`
}

// NewTransactionApprovedEvent creates a TransactionApprovedEvent
func NewTransactionApprovedEvent(t *Transaction, actor Actor) *TransactionApprovedEvent {
	return &TransactionApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTransactionApproved, "Transaction", t.GetID(), t.CompanyID),
		ApproverEmail:   actor.Email,
		Amount:          t.EffectiveAmount(),
	}
}

// TransactionRejectedEvent is published when a transaction is rejected
type TransactionRejectedEvent struct {
	shared.BaseDomainEvent
	RejecterEmail string `json:"rejecter_email"`
	Reason        string `json:"reason"`
}

// NewTransactionRejectedEvent creates a TransactionRejectedEvent
func NewTransactionRejectedEvent(t *Transaction, actor Actor, reason string) *TransactionRejectedEvent {
	return &TransactionRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTransactionRejected, "Transaction", t.GetID(), t.CompanyID),
		RejecterEmail:   actor.Email,
		Reason:          reason,
	}
}

// TransactionSettledEvent is published when a transaction is paid
type TransactionSettledEvent struct {
	shared.BaseDomainEvent
	ReleaserEmail string          `json:"releaser_email"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	Discount      decimal.Decimal `json:"discount"`
	Interest      decimal.Decimal `json:"interest"`
}

// NewTransactionSettledEvent creates a TransactionSettledEvent
func NewTransactionSettledEvent(t *Transaction, actor Actor) *TransactionSettledEvent {
	final := t.Amount
	if t.FinalAmount != nil {
		final = *t.FinalAmount
	}
	return &TransactionSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTransactionSettled, "Transaction", t.GetID(), t.CompanyID),
		ReleaserEmail:   actor.Email,
		FinalAmount:     final,
		Discount:        t.Discount,
		Interest:        t.Interest,
	}
}
