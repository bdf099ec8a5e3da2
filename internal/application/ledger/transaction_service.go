package ledger

import (
	"context"
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/finledger/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpdateScope selects whether an edit touches one installment or the whole
// series it belongs to
type UpdateScope string

const (
	UpdateScopeSingle UpdateScope = "single"
	UpdateScopeSeries UpdateScope = "series"
)

// TransactionService provides application-level transaction operations
type TransactionService struct {
	txnRepo     ledger.TransactionRepository
	batchRepo   ledger.PaymentBatchRepository
	costCenters CostCenterDirectory
	audit       *AuditRecorder
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(
	txnRepo ledger.TransactionRepository,
	batchRepo ledger.PaymentBatchRepository,
	costCenters CostCenterDirectory,
	audit *AuditRecorder,
) *TransactionService {
	return &TransactionService{
		txnRepo:     txnRepo,
		batchRepo:   batchRepo,
		costCenters: costCenters,
		audit:       audit,
	}
}

// AllocationInput is one cost center split line in a request
type AllocationInput struct {
	CostCenterID uuid.UUID       `json:"cost_center_id" binding:"required"`
	Percentage   decimal.Decimal `json:"percentage" binding:"required"`
}

// CreateTransactionRequest represents a request to create a transaction or
// an installment series
type CreateTransactionRequest struct {
	Type         string            `json:"type" binding:"required,oneof=PAYABLE RECEIVABLE"`
	Description  string            `json:"description" binding:"required"`
	SupplierName string            `json:"supplier_name"`
	Notes        string            `json:"notes"`
	Amount       decimal.Decimal   `json:"amount" binding:"required"`
	DueDate      time.Time         `json:"due_date" binding:"required"`
	Allocations  []AllocationInput `json:"allocations" binding:"required,min=1,dive"`
	// Installments greater than 1 creates a series sharing a group ID
	Installments int `json:"installments"`
	// SubmitForApproval routes the transaction (the first installment of a
	// series) to its approver right after creation
	SubmitForApproval bool       `json:"submit_for_approval"`
	CreatedBy         *uuid.UUID `json:"-"` // Set from JWT context, not from request body
	CreatorEmail      string     `json:"-"`
}

// UpdateTransactionRequest represents a request to update transaction fields
type UpdateTransactionRequest struct {
	Description  *string           `json:"description"`
	SupplierName *string           `json:"supplier_name"`
	Notes        *string           `json:"notes"`
	DueDate      *time.Time        `json:"due_date"`
	Amount       *decimal.Decimal  `json:"amount"`
	Allocations  []AllocationInput `json:"allocations"`
	Scope        string            `json:"scope"` // single (default) or series
	Actor        ledger.Actor      `json:"-"`
}

// SettleTransactionRequest represents a request to settle a transaction
type SettleTransactionRequest struct {
	PaymentDate time.Time       `json:"payment_date" binding:"required"`
	FinalAmount decimal.Decimal `json:"final_amount" binding:"required"`
	Actor       ledger.Actor    `json:"-"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID                  uuid.UUID               `json:"id"`
	CompanyID           uuid.UUID               `json:"company_id"`
	Type                string                  `json:"type"`
	Description         string                  `json:"description"`
	SupplierName        string                  `json:"supplier_name,omitempty"`
	Notes               string                  `json:"notes,omitempty"`
	Amount              decimal.Decimal         `json:"amount"`
	OriginalAmount      *decimal.Decimal        `json:"original_amount,omitempty"`
	FinalAmount         *decimal.Decimal        `json:"final_amount,omitempty"`
	Discount            decimal.Decimal         `json:"discount"`
	Interest            decimal.Decimal         `json:"interest"`
	Status              string                  `json:"status"`
	DueDate             time.Time               `json:"due_date"`
	PaymentDate         *time.Time              `json:"payment_date,omitempty"`
	Allocations         ledger.AllocationList   `json:"allocations"`
	BatchID             *uuid.UUID              `json:"batch_id,omitempty"`
	BatchAdjustedAmount *decimal.Decimal        `json:"batch_adjusted_amount,omitempty"`
	Installment         *ledger.InstallmentInfo `json:"installment,omitempty"`
	TokenExpiresAt      *time.Time              `json:"token_expires_at,omitempty"`
	ApprovedByEmail     string                  `json:"approved_by_email,omitempty"`
	ApprovedAt          *time.Time              `json:"approved_at,omitempty"`
	ReleasedByEmail     string                  `json:"released_by_email,omitempty"`
	ReleasedAt          *time.Time              `json:"released_at,omitempty"`
	RejectedByEmail     string                  `json:"rejected_by_email,omitempty"`
	RejectedAt          *time.Time              `json:"rejected_at,omitempty"`
	RejectionReason     string                  `json:"rejection_reason,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
	Version             int                     `json:"version"`
}

// TransactionListFilter defines filtering options for transaction list queries
type TransactionListFilter struct {
	Search      string     `form:"search"`
	Type        string     `form:"type"`
	Status      string     `form:"status"`
	BatchID     *uuid.UUID `form:"batch_id"`
	GroupID     *uuid.UUID `form:"group_id"`
	DueBefore   *time.Time `form:"due_before"`
	DueAfter    *time.Time `form:"due_after"`
	OverdueOnly bool       `form:"overdue_only"`
	Page        int        `form:"page"`
	PageSize    int        `form:"page_size"`
}

// CreateTransaction creates a single transaction, or an installment series
// when Installments is greater than 1. A series is persisted atomically.
func (s *TransactionService) CreateTransaction(ctx context.Context, companyID uuid.UUID, req CreateTransactionRequest) ([]*TransactionResponse, error) {
	allocations := toAllocationList(req.Allocations)
	if err := s.resolveCostCenters(ctx, companyID, allocations); err != nil {
		return nil, err
	}

	createdBy := uuid.Nil
	if req.CreatedBy != nil {
		createdBy = *req.CreatedBy
	}

	var txns []*ledger.Transaction
	if req.Installments > 1 {
		series, err := ledger.NewInstallmentSeries(
			companyID,
			ledger.TransactionType(req.Type),
			req.Description,
			req.Amount,
			req.Installments,
			req.DueDate,
			allocations,
			createdBy,
		)
		if err != nil {
			return nil, err
		}
		txns = series
	} else {
		txn, err := ledger.NewTransaction(
			companyID,
			ledger.TransactionType(req.Type),
			req.Description,
			valueobject.NewMoneyBRL(req.Amount),
			req.DueDate,
			allocations,
			createdBy,
		)
		if err != nil {
			return nil, err
		}
		txns = []*ledger.Transaction{txn}
	}

	for _, txn := range txns {
		txn.SupplierName = req.SupplierName
		txn.Notes = req.Notes
	}

	if err := s.txnRepo.SaveAll(ctx, txns); err != nil {
		return nil, err
	}
	if err := s.costCenters.IncrementUsage(ctx, companyID, allocations.CostCenterIDs()); err != nil {
		return nil, err
	}

	actor := ledger.Actor{ID: req.CreatedBy, Email: req.CreatorEmail}
	responses := make([]*TransactionResponse, len(txns))
	for i, txn := range txns {
		s.audit.Record(ctx, ledger.NewAuditEntry(companyID, "transaction", txn.GetID(), ledger.AuditActionCreated, actor))
		responses[i] = toTransactionResponse(txn)
	}
	return responses, nil
}

// GetTransaction gets a transaction by ID
func (s *TransactionService) GetTransaction(ctx context.Context, companyID, id uuid.UUID) (*TransactionResponse, error) {
	txn, err := s.findTransaction(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return toTransactionResponse(txn), nil
}

// ListTransactions lists transactions with filtering and pagination
func (s *TransactionService) ListTransactions(ctx context.Context, companyID uuid.UUID, filter TransactionListFilter) (*shared.Paginated[*TransactionResponse], error) {
	domainFilter := ledger.TransactionFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			Search:   filter.Search,
		},
		BatchID:     filter.BatchID,
		GroupID:     filter.GroupID,
		DueBefore:   filter.DueBefore,
		DueAfter:    filter.DueAfter,
		OverdueOnly: filter.OverdueOnly,
	}
	if filter.Type != "" {
		t := ledger.TransactionType(filter.Type)
		domainFilter.Type = &t
	}
	if filter.Status != "" {
		st := ledger.TransactionStatus(filter.Status)
		domainFilter.Status = &st
	}

	page, err := s.txnRepo.List(ctx, companyID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]*TransactionResponse, len(page.Items))
	for i, txn := range page.Items {
		items[i] = toTransactionResponse(txn)
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// GetSeries returns all installments sharing the transaction's group,
// ordered by installment number.
func (s *TransactionService) GetSeries(ctx context.Context, companyID, id uuid.UUID) ([]*TransactionResponse, error) {
	txn, err := s.findTransaction(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if txn.Installment == nil {
		return []*TransactionResponse{toTransactionResponse(txn)}, nil
	}

	series, err := s.txnRepo.FindByGroupID(ctx, companyID, txn.Installment.GroupID)
	if err != nil {
		return nil, err
	}
	responses := make([]*TransactionResponse, len(series))
	for i, member := range series {
		responses[i] = toTransactionResponse(member)
	}
	return responses, nil
}

// UpdateTransaction updates transaction fields. With series scope the safe
// subset of the change propagates to every sibling installment and the
// whole series is saved atomically.
func (s *TransactionService) UpdateTransaction(ctx context.Context, companyID, id uuid.UUID, req UpdateTransactionRequest) (*TransactionResponse, error) {
	txn, err := s.findTransaction(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	update := ledger.TransactionUpdate{
		Description:  req.Description,
		SupplierName: req.SupplierName,
		Notes:        req.Notes,
		DueDate:      req.DueDate,
		Amount:       req.Amount,
	}
	if req.Allocations != nil {
		update.Allocations = toAllocationList(req.Allocations)
		if err := s.resolveCostCenters(ctx, companyID, update.Allocations); err != nil {
			return nil, err
		}
	}

	scope := UpdateScope(req.Scope)
	if scope == "" {
		scope = UpdateScopeSingle
	}
	if scope == UpdateScopeSeries && txn.Installment == nil {
		return nil, shared.NewDomainError("VALIDATION_FAILED", "Transaction is not part of an installment series")
	}

	if scope == UpdateScopeSeries {
		series, err := s.txnRepo.FindByGroupID(ctx, companyID, txn.Installment.GroupID)
		if err != nil {
			return nil, err
		}
		// only the edited row and later installments take the change;
		// earlier siblings stay as issued
		seriesUpdate := update.SeriesSafe()
		touched := make([]*ledger.Transaction, 0, len(series))
		var edited *ledger.Transaction
		for _, member := range series {
			memberUpdate := seriesUpdate
			if member.GetID() == txn.GetID() {
				memberUpdate = update
				edited = member
			} else if member.DueDate.Before(txn.DueDate) {
				continue
			}
			before := member.Snapshot()
			if err := member.ApplyUpdate(memberUpdate); err != nil {
				return nil, err
			}
			s.recordUpdate(ctx, companyID, member, before, req.Actor)
			touched = append(touched, member)
		}
		if err := s.txnRepo.SaveAll(ctx, touched); err != nil {
			return nil, err
		}
		if edited != nil {
			return toTransactionResponse(edited), nil
		}
		return toTransactionResponse(txn), nil
	}

	before := txn.Snapshot()
	if err := txn.ApplyUpdate(update); err != nil {
		return nil, err
	}
	if err := s.txnRepo.SaveWithLock(ctx, txn); err != nil {
		return nil, err
	}
	s.recordUpdate(ctx, companyID, txn, before, req.Actor)

	return toTransactionResponse(txn), nil
}

// SettleTransaction records payment of an approved transaction
func (s *TransactionService) SettleTransaction(ctx context.Context, companyID, id uuid.UUID, req SettleTransactionRequest) (*TransactionResponse, error) {
	txn, err := s.findTransaction(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	if err := txn.Settle(req.Actor, req.PaymentDate, req.FinalAmount); err != nil {
		return nil, err
	}
	if err := s.txnRepo.SaveWithLock(ctx, txn); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "transaction", txn.GetID(), ledger.AuditActionSettled, req.Actor))

	return toTransactionResponse(txn), nil
}

// DeleteTransaction removes a transaction. Members of a batch that already
// left the open stage cannot be deleted.
func (s *TransactionService) DeleteTransaction(ctx context.Context, companyID, id uuid.UUID, actor ledger.Actor) error {
	txn, err := s.findTransaction(ctx, companyID, id)
	if err != nil {
		return err
	}

	var batchStatus *ledger.BatchStatus
	if txn.BatchID != nil {
		batch, err := s.batchRepo.FindByID(ctx, companyID, *txn.BatchID)
		if err != nil {
			return err
		}
		if batch != nil {
			batchStatus = &batch.Status
			if batch.Status == ledger.BatchStatusOpen {
				if err := batch.RemoveMember(txn.GetID(), txn.Amount); err != nil {
					return err
				}
				if err := s.batchRepo.SaveWithLock(ctx, batch); err != nil {
					return err
				}
			}
		}
	}
	if err := txn.CanDelete(batchStatus); err != nil {
		return err
	}

	if err := s.txnRepo.Delete(ctx, companyID, id); err != nil {
		return err
	}
	if err := s.costCenters.DecrementUsage(ctx, companyID, txn.Allocations.CostCenterIDs()); err != nil {
		return err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "transaction", id, ledger.AuditActionDeleted, actor))

	return nil
}

func (s *TransactionService) resolveCostCenters(ctx context.Context, companyID uuid.UUID, allocations ledger.AllocationList) error {
	for _, id := range allocations.CostCenterIDs() {
		info, err := s.costCenters.Resolve(ctx, companyID, id)
		if err != nil {
			return err
		}
		if info == nil {
			return shared.NewDomainError("VALIDATION_FAILED",
				"Allocation references an unknown cost center")
		}
	}
	return nil
}

func (s *TransactionService) findTransaction(ctx context.Context, companyID, id uuid.UUID) (*ledger.Transaction, error) {
	txn, err := s.txnRepo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Transaction not found")
	}
	return txn, nil
}

func (s *TransactionService) recordUpdate(ctx context.Context, companyID uuid.UUID, txn *ledger.Transaction, before map[string]any, actor ledger.Actor) {
	changes := ledger.DiffSnapshots(before, txn.Snapshot())
	if len(changes) == 0 {
		return
	}
	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "transaction", txn.GetID(), ledger.AuditActionUpdated, actor).
		WithChanges(changes))
}

func toAllocationList(inputs []AllocationInput) ledger.AllocationList {
	out := make(ledger.AllocationList, len(inputs))
	for i, in := range inputs {
		out[i] = ledger.CostCenterAllocation{
			CostCenterID: in.CostCenterID,
			Percentage:   in.Percentage,
		}
	}
	return out
}

func toTransactionResponse(txn *ledger.Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		ID:                  txn.GetID(),
		CompanyID:           txn.CompanyID,
		Type:                txn.Type.String(),
		Description:         txn.Description,
		SupplierName:        txn.SupplierName,
		Notes:               txn.Notes,
		Amount:              txn.Amount,
		OriginalAmount:      txn.OriginalAmount,
		FinalAmount:         txn.FinalAmount,
		Discount:            txn.Discount,
		Interest:            txn.Interest,
		Status:              txn.Status.String(),
		DueDate:             txn.DueDate,
		PaymentDate:         txn.PaymentDate,
		Allocations:         txn.Allocations,
		BatchID:             txn.BatchID,
		BatchAdjustedAmount: txn.BatchAdjustedAmount,
		Installment:         txn.Installment,
		ApprovedByEmail:     txn.ApprovedByEmail,
		ApprovedAt:          txn.ApprovedAt,
		ReleasedByEmail:     txn.ReleasedByEmail,
		ReleasedAt:          txn.ReleasedAt,
		RejectedByEmail:     txn.RejectedByEmail,
		RejectedAt:          txn.RejectedAt,
		RejectionReason:     txn.RejectionReason,
		CreatedAt:           txn.GetCreatedAt(),
		UpdatedAt:           txn.GetUpdatedAt(),
		Version:             txn.GetVersion(),
	}
	// the token value itself never leaves through authenticated reads
	if txn.ApprovalToken.IsPresent() {
		resp.TokenExpiresAt = txn.ApprovalToken.ExpiresAt
	}
	return resp
}
