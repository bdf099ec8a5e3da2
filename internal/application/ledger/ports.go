package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApprovalRequestKind tells the dispatcher which kind of decision the
// recipient is being asked to make
type ApprovalRequestKind string

const (
	ApprovalKindTransaction        ApprovalRequestKind = "transaction"
	ApprovalKindBatch              ApprovalRequestKind = "batch"
	ApprovalKindBatchAuthorization ApprovalRequestKind = "batch_authorization"
)

// ApprovalRequest carries everything the dispatcher needs to send a
// magic-link email to an external approver.
type ApprovalRequest struct {
	Kind           ApprovalRequestKind
	RecipientEmail string
	CompanyID      uuid.UUID
	Description    string
	Amount         decimal.Decimal
	MemberCount    int
	Token          string
	ExpiresAt      time.Time
}

// StatusUpdate tells the requester how their routed transaction or batch
// came out of the external decision.
type StatusUpdate struct {
	Kind           ApprovalRequestKind
	RecipientEmail string
	CompanyID      uuid.UUID
	Description    string
	Status         string
	Amount         decimal.Decimal
	Reason         string
}

// NotificationDispatcher sends approval requests to external approvers and
// outcome notifications back to the requester. Delivery is best effort:
// the state transition succeeds even when the email does not go out, and
// the caller logs the failure.
type NotificationDispatcher interface {
	DispatchApprovalRequest(ctx context.Context, req ApprovalRequest) error
	DispatchStatusUpdate(ctx context.Context, upd StatusUpdate) error
}

// CostCenterInfo is the routing and display projection of a cost center
type CostCenterInfo struct {
	ID            uuid.UUID
	Name          string
	ApproverEmail string
	ReleaserEmail string
}

// CostCenterDirectory resolves cost center references against the company
// registry and keeps its usage counters in step with transaction
// create/delete. Cost center management itself lives outside this module.
type CostCenterDirectory interface {
	// Resolve returns nil without error when the ID does not belong to
	// an active cost center of the company.
	Resolve(ctx context.Context, companyID, id uuid.UUID) (*CostCenterInfo, error)
	IncrementUsage(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) error
	DecrementUsage(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) error
}

// SweepLock serializes recurrence sweeps across instances. Acquire returns
// ok=false without error when another instance holds the lock.
type SweepLock interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}
