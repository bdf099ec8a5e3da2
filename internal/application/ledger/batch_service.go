package ledger

import (
	"context"
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchService provides application-level payment batch operations
type BatchService struct {
	batchRepo ledger.PaymentBatchRepository
	txnRepo   ledger.TransactionRepository
	audit     *AuditRecorder
}

// NewBatchService creates a new BatchService
func NewBatchService(
	batchRepo ledger.PaymentBatchRepository,
	txnRepo ledger.TransactionRepository,
	audit *AuditRecorder,
) *BatchService {
	return &BatchService{
		batchRepo: batchRepo,
		txnRepo:   txnRepo,
		audit:     audit,
	}
}

// CreateBatchRequest represents a request to create a payment batch
type CreateBatchRequest struct {
	Name      string     `json:"name" binding:"required"`
	CreatedBy *uuid.UUID `json:"-"` // Set from JWT context, not from request body
}

// BatchMembersRequest lists transactions to add to or remove from a batch
type BatchMembersRequest struct {
	TransactionIDs []uuid.UUID  `json:"transaction_ids" binding:"required,min=1"`
	Actor          ledger.Actor `json:"-"`
}

// ConfirmBatchPaymentRequest confirms payment of an authorized batch
type ConfirmBatchPaymentRequest struct {
	PaymentDate time.Time    `json:"payment_date" binding:"required"`
	Actor       ledger.Actor `json:"-"`
}

// PaymentBatchResponse represents a payment batch in API responses
type PaymentBatchResponse struct {
	ID                     uuid.UUID                 `json:"id"`
	CompanyID              uuid.UUID                 `json:"company_id"`
	Name                   string                    `json:"name"`
	Status                 string                    `json:"status"`
	TransactionIDs         []uuid.UUID               `json:"transaction_ids"`
	RejectedMembers        ledger.RejectedMemberList `json:"rejected_members,omitempty"`
	TotalAmount            decimal.Decimal           `json:"total_amount"`
	ScheduledPaymentDate   *time.Time                `json:"scheduled_payment_date,omitempty"`
	ApproverEmail          string                    `json:"approver_email,omitempty"`
	AuthorizerEmail        string                    `json:"authorizer_email,omitempty"`
	SentForApprovalAt      *time.Time                `json:"sent_for_approval_at,omitempty"`
	SentForAuthorizationAt *time.Time                `json:"sent_for_authorization_at,omitempty"`
	TokenExpiresAt         *time.Time                `json:"token_expires_at,omitempty"`
	ApprovedByEmail        string                    `json:"approved_by_email,omitempty"`
	ApprovedAt             *time.Time                `json:"approved_at,omitempty"`
	ApproverComment        string                    `json:"approver_comment,omitempty"`
	AuthorizedByEmail      string                    `json:"authorized_by_email,omitempty"`
	AuthorizedAt           *time.Time                `json:"authorized_at,omitempty"`
	PaidByEmail            string                    `json:"paid_by_email,omitempty"`
	PaidAt                 *time.Time                `json:"paid_at,omitempty"`
	RejectedByEmail        string                    `json:"rejected_by_email,omitempty"`
	RejectedAt             *time.Time                `json:"rejected_at,omitempty"`
	RejectionReason        string                    `json:"rejection_reason,omitempty"`
	CreatedAt              time.Time                 `json:"created_at"`
	UpdatedAt              time.Time                 `json:"updated_at"`
	Version                int                       `json:"version"`
}

// BatchListFilter defines filtering options for batch list queries
type BatchListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// CreateBatch creates a new empty payment batch
func (s *BatchService) CreateBatch(ctx context.Context, companyID uuid.UUID, req CreateBatchRequest) (*PaymentBatchResponse, error) {
	createdBy := uuid.Nil
	if req.CreatedBy != nil {
		createdBy = *req.CreatedBy
	}

	batch, err := ledger.NewPaymentBatch(companyID, req.Name, createdBy)
	if err != nil {
		return nil, err
	}
	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "batch", batch.GetID(), ledger.AuditActionCreated, ledger.Actor{ID: req.CreatedBy}))

	return toPaymentBatchResponse(batch), nil
}

// GetBatch gets a payment batch by ID
func (s *BatchService) GetBatch(ctx context.Context, companyID, id uuid.UUID) (*PaymentBatchResponse, error) {
	batch, err := s.findBatch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return toPaymentBatchResponse(batch), nil
}

// ListBatches lists payment batches with filtering and pagination
func (s *BatchService) ListBatches(ctx context.Context, companyID uuid.UUID, filter BatchListFilter) (*shared.Paginated[*PaymentBatchResponse], error) {
	domainFilter := ledger.BatchFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			Search:   filter.Search,
		},
	}
	if filter.Status != "" {
		st := ledger.BatchStatus(filter.Status)
		domainFilter.Status = &st
	}

	page, err := s.batchRepo.List(ctx, companyID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]*PaymentBatchResponse, len(page.Items))
	for i, batch := range page.Items {
		items[i] = toPaymentBatchResponse(batch)
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// AddTransactions adds draft transactions to an open batch. The batch total
// and every member's batch reference move in one commit.
func (s *BatchService) AddTransactions(ctx context.Context, companyID, id uuid.UUID, req BatchMembersRequest) (*PaymentBatchResponse, error) {
	batch, err := s.findBatch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	txns, err := s.txnRepo.FindByIDs(ctx, companyID, req.TransactionIDs)
	if err != nil {
		return nil, err
	}
	if len(txns) != len(req.TransactionIDs) {
		return nil, shared.NewDomainError("NOT_FOUND", "One or more transactions not found")
	}

	for _, txn := range txns {
		if txn.Type != ledger.TransactionTypePayable {
			return nil, shared.NewDomainError("VALIDATION_FAILED", "Only payables can join a payment batch")
		}
		if err := txn.AttachToBatch(batch.GetID()); err != nil {
			return nil, err
		}
		if err := batch.AddMember(txn.GetID(), txn.Amount); err != nil {
			return nil, err
		}
	}

	if err := s.batchRepo.SaveWithMembers(ctx, batch, txns); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "batch", batch.GetID(), ledger.AuditActionUpdated, req.Actor).
		WithNote("Added transactions"))

	return toPaymentBatchResponse(batch), nil
}

// RemoveTransactions removes members from an open batch
func (s *BatchService) RemoveTransactions(ctx context.Context, companyID, id uuid.UUID, req BatchMembersRequest) (*PaymentBatchResponse, error) {
	batch, err := s.findBatch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	txns, err := s.txnRepo.FindByIDs(ctx, companyID, req.TransactionIDs)
	if err != nil {
		return nil, err
	}
	if len(txns) != len(req.TransactionIDs) {
		return nil, shared.NewDomainError("NOT_FOUND", "One or more transactions not found")
	}

	for _, txn := range txns {
		if err := batch.RemoveMember(txn.GetID(), txn.Amount); err != nil {
			return nil, err
		}
		txn.DetachFromBatch()
	}

	if err := s.batchRepo.SaveWithMembers(ctx, batch, txns); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "batch", batch.GetID(), ledger.AuditActionUpdated, req.Actor).
		WithNote("Removed transactions"))

	return toPaymentBatchResponse(batch), nil
}

// ConfirmPayment marks an authorized batch paid and settles every member at
// its effective amount in the same commit.
func (s *BatchService) ConfirmPayment(ctx context.Context, companyID, id uuid.UUID, req ConfirmBatchPaymentRequest) (*PaymentBatchResponse, error) {
	batch, err := s.findBatch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	members, err := s.txnRepo.FindByIDs(ctx, companyID, batch.TransactionIDs)
	if err != nil {
		return nil, err
	}

	if err := batch.ConfirmPayment(req.Actor, req.PaymentDate); err != nil {
		return nil, err
	}
	for _, m := range members {
		if err := m.MarkPaidViaBatch(req.Actor, req.PaymentDate); err != nil {
			return nil, err
		}
	}

	if err := s.batchRepo.SaveWithMembers(ctx, batch, members); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "batch", batch.GetID(), ledger.AuditActionPaid, req.Actor))

	return toPaymentBatchResponse(batch), nil
}

// DeleteBatch removes an open or rejected batch, detaching any remaining
// members in the same commit.
func (s *BatchService) DeleteBatch(ctx context.Context, companyID, id uuid.UUID, actor ledger.Actor) error {
	batch, err := s.findBatch(ctx, companyID, id)
	if err != nil {
		return err
	}
	if err := batch.CanDelete(); err != nil {
		return err
	}

	members, err := s.txnRepo.FindByIDs(ctx, companyID, batch.TransactionIDs)
	if err != nil {
		return err
	}
	for _, m := range members {
		m.DetachFromBatch()
	}
	if len(members) > 0 {
		if err := s.txnRepo.SaveAll(ctx, members); err != nil {
			return err
		}
	}

	if err := s.batchRepo.Delete(ctx, companyID, id); err != nil {
		return err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "batch", id, ledger.AuditActionDeleted, actor))

	return nil
}

func (s *BatchService) findBatch(ctx context.Context, companyID, id uuid.UUID) (*ledger.PaymentBatch, error) {
	batch, err := s.batchRepo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Payment batch not found")
	}
	return batch, nil
}

func toPaymentBatchResponse(batch *ledger.PaymentBatch) *PaymentBatchResponse {
	resp := &PaymentBatchResponse{
		ID:                     batch.GetID(),
		CompanyID:              batch.CompanyID,
		Name:                   batch.Name,
		Status:                 batch.Status.String(),
		TransactionIDs:         batch.TransactionIDs,
		RejectedMembers:        batch.RejectedMembers,
		TotalAmount:            batch.TotalAmount,
		ScheduledPaymentDate:   batch.ScheduledPaymentDate,
		ApproverEmail:          batch.ApproverEmail,
		AuthorizerEmail:        batch.AuthorizerEmail,
		SentForApprovalAt:      batch.SentForApprovalAt,
		SentForAuthorizationAt: batch.SentForAuthorizationAt,
		ApprovedByEmail:        batch.ApprovedByEmail,
		ApprovedAt:             batch.ApprovedAt,
		ApproverComment:        batch.ApproverComment,
		AuthorizedByEmail:      batch.AuthorizedByEmail,
		AuthorizedAt:           batch.AuthorizedAt,
		PaidByEmail:            batch.PaidByEmail,
		PaidAt:                 batch.PaidAt,
		RejectedByEmail:        batch.RejectedByEmail,
		RejectedAt:             batch.RejectedAt,
		RejectionReason:        batch.RejectionReason,
		CreatedAt:              batch.GetCreatedAt(),
		UpdatedAt:              batch.GetUpdatedAt(),
		Version:                batch.GetVersion(),
	}
	if batch.ApprovalToken.IsPresent() {
		resp.TokenExpiresAt = batch.ApprovalToken.ExpiresAt
	}
	return resp
}
