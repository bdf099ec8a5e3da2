package ledger

import (
	"context"
	"time"

	"github.com/finledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TransactionFilter carries the optional criteria for transaction listings
type TransactionFilter struct {
	shared.Filter
	Type        *TransactionType
	Status      *TransactionStatus
	BatchID     *uuid.UUID
	GroupID     *uuid.UUID
	DueBefore   *time.Time
	DueAfter    *time.Time
	OverdueOnly bool
}

// TransactionRepository persists transactions
type TransactionRepository interface {
	Save(ctx context.Context, txn *Transaction) error
	// SaveWithLock persists using optimistic locking on the version field
	SaveWithLock(ctx context.Context, txn *Transaction) error
	// SaveAll persists several transactions in one database transaction,
	// each under optimistic locking. Used for installment series creation
	// and series-scope edits.
	SaveAll(ctx context.Context, txns []*Transaction) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*Transaction, error)
	// FindByApprovalToken resolves a magic-link token without company
	// scoping; the token itself is the capability.
	FindByApprovalToken(ctx context.Context, token string) (*Transaction, error)
	FindByIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) ([]*Transaction, error)
	// FindByGroupID returns all installments of a series ordered by
	// installment number.
	FindByGroupID(ctx context.Context, companyID, groupID uuid.UUID) ([]*Transaction, error)
	List(ctx context.Context, companyID uuid.UUID, filter TransactionFilter) (*shared.Paginated[*Transaction], error)
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

// BatchFilter carries the optional criteria for batch listings
type BatchFilter struct {
	shared.Filter
	Status *BatchStatus
}

// PaymentBatchRepository persists payment batches
type PaymentBatchRepository interface {
	Save(ctx context.Context, batch *PaymentBatch) error
	// SaveWithLock persists using optimistic locking on the version field
	SaveWithLock(ctx context.Context, batch *PaymentBatch) error
	// SaveWithMembers persists the batch and its member transactions in
	// one database transaction so batch decisions land atomically.
	SaveWithMembers(ctx context.Context, batch *PaymentBatch, txns []*Transaction) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*PaymentBatch, error)
	// FindByApprovalToken resolves a magic-link token without company
	// scoping; the token itself is the capability.
	FindByApprovalToken(ctx context.Context, token string) (*PaymentBatch, error)
	List(ctx context.Context, companyID uuid.UUID, filter BatchFilter) (*shared.Paginated[*PaymentBatch], error)
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

// RecurringTemplateFilter carries the optional criteria for template listings
type RecurringTemplateFilter struct {
	shared.Filter
	Active *bool
}

// RecurringTemplateRepository persists recurring templates
type RecurringTemplateRepository interface {
	Save(ctx context.Context, tmpl *RecurringTemplate) error
	// SaveWithLock persists using optimistic locking on the version field
	SaveWithLock(ctx context.Context, tmpl *RecurringTemplate) error
	// SaveWithGenerated persists the advanced template and its generated
	// transaction in one database transaction so a sweep cannot generate
	// without advancing the schedule.
	SaveWithGenerated(ctx context.Context, tmpl *RecurringTemplate, txn *Transaction) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*RecurringTemplate, error)
	// FindDue returns all active templates across companies whose next
	// due date is at or before now. Used by the sweep.
	FindDue(ctx context.Context, now time.Time) ([]*RecurringTemplate, error)
	List(ctx context.Context, companyID uuid.UUID, filter RecurringTemplateFilter) (*shared.Paginated[*RecurringTemplate], error)
	Delete(ctx context.Context, companyID, id uuid.UUID) error
}

// AuditFilter carries the optional criteria for audit trail queries
type AuditFilter struct {
	shared.Filter
	EntityType *string
	EntityID   *uuid.UUID
	Action     *string
	Since      *time.Time
	Until      *time.Time
}

// AuditLogRepository persists the append-only audit trail
type AuditLogRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, companyID uuid.UUID, filter AuditFilter) (*shared.Paginated[*AuditEntry], error)
}
