package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ApprovalService owns token issuance and every magic-link operation. The
// unauthenticated surface goes through exactly the same domain validations
// as the authenticated one; the token is the only difference in capability.
type ApprovalService struct {
	txnRepo       ledger.TransactionRepository
	batchRepo     ledger.PaymentBatchRepository
	costCenters   CostCenterDirectory
	dispatcher    NotificationDispatcher
	audit         *AuditRecorder
	logger        *zap.Logger
	txnTokenTTL   time.Duration
	batchTokenTTL time.Duration
	now           func() time.Time
}

// NewApprovalService creates a new ApprovalService. TTLs are configured per
// call site; zero values fall back to the defaults.
func NewApprovalService(
	txnRepo ledger.TransactionRepository,
	batchRepo ledger.PaymentBatchRepository,
	costCenters CostCenterDirectory,
	dispatcher NotificationDispatcher,
	audit *AuditRecorder,
	logger *zap.Logger,
	txnTokenTTL time.Duration,
	batchTokenTTL time.Duration,
) *ApprovalService {
	if txnTokenTTL <= 0 {
		txnTokenTTL = ledger.DefaultTransactionTokenTTL
	}
	if batchTokenTTL <= 0 {
		batchTokenTTL = ledger.DefaultBatchTokenTTL
	}
	return &ApprovalService{
		txnRepo:       txnRepo,
		batchRepo:     batchRepo,
		costCenters:   costCenters,
		dispatcher:    dispatcher,
		audit:         audit,
		logger:        logger,
		txnTokenTTL:   txnTokenTTL,
		batchTokenTTL: batchTokenTTL,
		now:           time.Now,
	}
}

// WithClock overrides the service clock, used by tests to simulate expiry
func (s *ApprovalService) WithClock(now func() time.Time) *ApprovalService {
	s.now = now
	return s
}

// SubmitTransactionRequest routes a transaction to an external approver
type SubmitTransactionRequest struct {
	// ApproverEmail overrides the cost center's designated approver
	ApproverEmail string       `json:"approver_email"`
	Actor         ledger.Actor `json:"-"`
}

// SubmitBatchRequest routes a batch to its stage approver or authorizer
type SubmitBatchRequest struct {
	RecipientEmail string       `json:"recipient_email" binding:"required,email"`
	Actor          ledger.Actor `json:"-"`
}

// ApproveByTokenRequest carries the approver's decision. AmountOverride
// applies to transactions; MemberDecisions and ScheduledPaymentDate apply
// to batches at their respective stages.
type ApproveByTokenRequest struct {
	Email                string                `json:"email"`
	Comment              string                `json:"comment"`
	AmountOverride       *decimal.Decimal      `json:"amount_override"`
	MemberDecisions      []MemberDecisionInput `json:"member_decisions"`
	ScheduledPaymentDate *time.Time            `json:"scheduled_payment_date"`
}

// MemberDecisionInput is the approver's verdict on one batch member
type MemberDecisionInput struct {
	TransactionID   uuid.UUID        `json:"transaction_id" binding:"required"`
	Rejected        bool             `json:"rejected"`
	RejectionReason string           `json:"rejection_reason"`
	AdjustedAmount  *decimal.Decimal `json:"adjusted_amount"`
}

// RejectByTokenRequest carries a rejection with its mandatory reason
type RejectByTokenRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason" binding:"required"`
}

// ReturnByTokenRequest sends a pending batch back to its manager
type ReturnByTokenRequest struct {
	Email  string `json:"email"`
	Reason string `json:"reason" binding:"required"`
}

// BatchMemberView is one member transaction as shown to the approver
type BatchMemberView struct {
	ID           uuid.UUID       `json:"id"`
	Description  string          `json:"description"`
	SupplierName string          `json:"supplier_name,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
}

// BatchStateView is the batch projection behind a magic link
type BatchStateView struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Status          string            `json:"status"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ApproverComment string            `json:"approver_comment,omitempty"`
	Members         []BatchMemberView `json:"members"`
}

// ApprovalStateResponse is what a magic-link holder sees before deciding
type ApprovalStateResponse struct {
	Kind        string               `json:"kind"`
	ExpiresAt   *time.Time           `json:"expires_at,omitempty"`
	Transaction *TransactionResponse `json:"transaction,omitempty"`
	Batch       *BatchStateView      `json:"batch,omitempty"`
}

// SubmitTransaction routes a draft transaction to an external approver: the
// token is attached in the same write as the status change, and only after
// that write lands is the notification dispatched.
func (s *ApprovalService) SubmitTransaction(ctx context.Context, companyID, id uuid.UUID, req SubmitTransactionRequest) (*TransactionResponse, error) {
	txn, err := s.txnRepo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Transaction not found")
	}
	if txn.BatchID != nil {
		return nil, shared.NewDomainError("INVALID_STATE",
			"Transaction in a batch is routed through the batch, not individually")
	}

	approverEmail := req.ApproverEmail
	if approverEmail == "" {
		approverEmail, err = s.defaultApprover(ctx, companyID, txn.Allocations)
		if err != nil {
			return nil, err
		}
	}

	token := ledger.MintApprovalToken(s.txnTokenTTL)
	if err := txn.SubmitForApproval(token); err != nil {
		return nil, err
	}
	txn.SubmittedByEmail = req.Actor.Email
	if err := s.txnRepo.SaveWithLock(ctx, txn); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "transaction", txn.GetID(), ledger.AuditActionSubmitted, req.Actor).
		WithNote("Routed to "+approverEmail))

	s.dispatch(ctx, ApprovalRequest{
		Kind:           ApprovalKindTransaction,
		RecipientEmail: approverEmail,
		CompanyID:      companyID,
		Description:    txn.Description,
		Amount:         txn.Amount,
		Token:          token.Value,
		ExpiresAt:      *token.ExpiresAt,
	})

	return toTransactionResponse(txn), nil
}

// SubmitBatch routes an open batch to its stage-one approver
func (s *ApprovalService) SubmitBatch(ctx context.Context, companyID, id uuid.UUID, req SubmitBatchRequest) (*PaymentBatchResponse, error) {
	batch, err := s.findBatch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	token := ledger.MintApprovalToken(s.batchTokenTTL)
	if err := batch.SubmitForApproval(token, req.RecipientEmail); err != nil {
		return nil, err
	}
	batch.SubmittedByEmail = req.Actor.Email
	if err := s.batchRepo.SaveWithLock(ctx, batch); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "batch", batch.GetID(), ledger.AuditActionSubmitted, req.Actor).
		WithNote("Routed to "+req.RecipientEmail))

	s.dispatch(ctx, ApprovalRequest{
		Kind:           ApprovalKindBatch,
		RecipientEmail: req.RecipientEmail,
		CompanyID:      companyID,
		Description:    batch.Name,
		Amount:         batch.TotalAmount,
		MemberCount:    len(batch.TransactionIDs),
		Token:          token.Value,
		ExpiresAt:      *token.ExpiresAt,
	})

	return toPaymentBatchResponse(batch), nil
}

// SubmitBatchForAuthorization routes an approved batch to its stage-two
// authorizer, reusing the shared token slot.
func (s *ApprovalService) SubmitBatchForAuthorization(ctx context.Context, companyID, id uuid.UUID, req SubmitBatchRequest) (*PaymentBatchResponse, error) {
	batch, err := s.findBatch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	token := ledger.MintApprovalToken(s.batchTokenTTL)
	if err := batch.SubmitForAuthorization(token, req.RecipientEmail); err != nil {
		return nil, err
	}
	batch.SubmittedByEmail = req.Actor.Email
	if err := s.batchRepo.SaveWithLock(ctx, batch); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "batch", batch.GetID(), ledger.AuditActionSubmitted, req.Actor).
		WithNote("Routed for authorization to "+req.RecipientEmail))

	s.dispatch(ctx, ApprovalRequest{
		Kind:           ApprovalKindBatchAuthorization,
		RecipientEmail: req.RecipientEmail,
		CompanyID:      companyID,
		Description:    batch.Name,
		Amount:         batch.TotalAmount,
		MemberCount:    len(batch.TransactionIDs),
		Token:          token.Value,
		ExpiresAt:      *token.ExpiresAt,
	})

	return toPaymentBatchResponse(batch), nil
}

// GetStateByToken resolves a magic-link token to the entity awaiting a
// decision. Expiry is checked before status so a stale link reports
// TOKEN_EXPIRED rather than INVALID_STATE.
func (s *ApprovalService) GetStateByToken(ctx context.Context, token string) (*ApprovalStateResponse, error) {
	txn, batch, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if txn != nil {
		return &ApprovalStateResponse{
			Kind:        string(ApprovalKindTransaction),
			ExpiresAt:   txn.ApprovalToken.ExpiresAt,
			Transaction: toTransactionResponse(txn),
		}, nil
	}

	kind := ApprovalKindBatch
	if batch.Status == ledger.BatchStatusPendingAuthorization {
		kind = ApprovalKindBatchAuthorization
	}
	members, err := s.txnRepo.FindByIDs(ctx, batch.CompanyID, batch.TransactionIDs)
	if err != nil {
		return nil, err
	}
	view := &BatchStateView{
		ID:              batch.GetID(),
		Name:            batch.Name,
		Status:          batch.Status.String(),
		TotalAmount:     batch.TotalAmount,
		ApproverComment: batch.ApproverComment,
		Members:         make([]BatchMemberView, len(members)),
	}
	for i, m := range members {
		view.Members[i] = BatchMemberView{
			ID:           m.GetID(),
			Description:  m.Description,
			SupplierName: m.SupplierName,
			Amount:       m.EffectiveAmount(),
			DueDate:      m.DueDate,
		}
	}
	return &ApprovalStateResponse{
		Kind:      string(kind),
		ExpiresAt: batch.ApprovalToken.ExpiresAt,
		Batch:     view,
	}, nil
}

// ApproveByToken consumes a token with a positive verdict. For a pending
// transaction this approves it, optionally overriding the amount. For a
// batch pending approval this applies the per-member decisions and approves
// the survivors atomically; for a batch pending authorization it authorizes
// payment.
func (s *ApprovalService) ApproveByToken(ctx context.Context, token string, req ApproveByTokenRequest) (*ApprovalStateResponse, error) {
	txn, batch, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	actor := ledger.ExternalActor(req.Email)

	if txn != nil {
		if err := txn.Approve(actor, req.AmountOverride); err != nil {
			return nil, err
		}
		if err := s.txnRepo.SaveWithLock(ctx, txn); err != nil {
			return nil, consumeConflict(err)
		}
		s.audit.Record(ctx, ledger.
			NewAuditEntry(txn.CompanyID, "transaction", txn.GetID(), ledger.AuditActionApproved, actor).
			WithNote(req.Comment))
		s.notifyStatus(ctx, StatusUpdate{
			Kind:           ApprovalKindTransaction,
			RecipientEmail: txn.SubmittedByEmail,
			CompanyID:      txn.CompanyID,
			Description:    txn.Description,
			Status:         txn.Status.String(),
			Amount:         txn.Amount,
		})
		return &ApprovalStateResponse{
			Kind:        string(ApprovalKindTransaction),
			Transaction: toTransactionResponse(txn),
		}, nil
	}

	if batch.Status == ledger.BatchStatusPendingAuthorization {
		return s.authorizeBatch(ctx, batch, actor, req.ScheduledPaymentDate)
	}
	return s.approveBatch(ctx, batch, actor, req)
}

// RejectByToken consumes a token with a negative verdict. A rejected batch
// releases its members back to draft in the same commit.
func (s *ApprovalService) RejectByToken(ctx context.Context, token string, req RejectByTokenRequest) (*ApprovalStateResponse, error) {
	txn, batch, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	actor := ledger.ExternalActor(req.Email)

	if txn != nil {
		if err := txn.Reject(actor, req.Reason); err != nil {
			return nil, err
		}
		if err := s.txnRepo.SaveWithLock(ctx, txn); err != nil {
			return nil, consumeConflict(err)
		}
		s.audit.Record(ctx, ledger.
			NewAuditEntry(txn.CompanyID, "transaction", txn.GetID(), ledger.AuditActionRejected, actor).
			WithNote(req.Reason))
		s.notifyStatus(ctx, StatusUpdate{
			Kind:           ApprovalKindTransaction,
			RecipientEmail: txn.SubmittedByEmail,
			CompanyID:      txn.CompanyID,
			Description:    txn.Description,
			Status:         txn.Status.String(),
			Amount:         txn.Amount,
			Reason:         req.Reason,
		})
		return &ApprovalStateResponse{
			Kind:        string(ApprovalKindTransaction),
			Transaction: toTransactionResponse(txn),
		}, nil
	}

	members, err := s.txnRepo.FindByIDs(ctx, batch.CompanyID, batch.TransactionIDs)
	if err != nil {
		return nil, err
	}
	if err := batch.Reject(actor, req.Reason); err != nil {
		return nil, err
	}
	for _, m := range members {
		m.DetachFromBatch()
	}
	if err := s.batchRepo.SaveWithMembers(ctx, batch, members); err != nil {
		return nil, consumeConflict(err)
	}
	s.audit.Record(ctx, ledger.
		NewAuditEntry(batch.CompanyID, "batch", batch.GetID(), ledger.AuditActionRejected, actor).
		WithNote(req.Reason))
	s.notifyStatus(ctx, StatusUpdate{
		Kind:           ApprovalKindBatch,
		RecipientEmail: batch.SubmittedByEmail,
		CompanyID:      batch.CompanyID,
		Description:    batch.Name,
		Status:         batch.Status.String(),
		Amount:         batch.TotalAmount,
		Reason:         req.Reason,
	})
	return s.batchState(batch), nil
}

// RejectMemberByToken removes a single member from a batch pending approval
// without consuming the token: the member goes back to draft with the reason
// recorded, the batch total shrinks, and the rest of the batch stays with
// the approver for a later verdict.
func (s *ApprovalService) RejectMemberByToken(ctx context.Context, token string, memberID uuid.UUID, req RejectByTokenRequest) (*ApprovalStateResponse, error) {
	txn, batch, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if txn != nil {
		return nil, shared.NewDomainError("INVALID_STATE",
			"Only batch members can be rejected individually")
	}

	members, err := s.txnRepo.FindByIDs(ctx, batch.CompanyID, batch.TransactionIDs)
	if err != nil {
		return nil, err
	}
	var member *ledger.Transaction
	for _, m := range members {
		if m.GetID() == memberID {
			member = m
			break
		}
	}
	if member == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Transaction is not in this batch")
	}

	actor := ledger.ExternalActor(req.Email)
	if err := batch.RecordMemberDecision(memberID, member.EffectiveAmount(), ledger.MemberDecision{
		Rejected:        true,
		RejectionReason: req.Reason,
	}); err != nil {
		return nil, err
	}
	if err := member.RejectFromBatch(actor, req.Reason); err != nil {
		return nil, err
	}
	if err := s.batchRepo.SaveWithMembers(ctx, batch, []*ledger.Transaction{member}); err != nil {
		return nil, consumeConflict(err)
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(batch.CompanyID, "transaction", memberID, ledger.AuditActionRejected, actor).
		WithNote(req.Reason))
	s.notifyStatus(ctx, StatusUpdate{
		Kind:           ApprovalKindTransaction,
		RecipientEmail: batch.SubmittedByEmail,
		CompanyID:      batch.CompanyID,
		Description:    member.Description,
		Status:         member.Status.String(),
		Amount:         member.Amount,
		Reason:         req.Reason,
	})
	return s.batchState(batch), nil
}

// ReturnByToken sends a batch pending approval back to its manager without
// a verdict, consuming the token.
func (s *ApprovalService) ReturnByToken(ctx context.Context, token string, req ReturnByTokenRequest) (*ApprovalStateResponse, error) {
	txn, batch, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if txn != nil {
		return nil, shared.NewDomainError("INVALID_STATE",
			"Only batches can be returned to the manager")
	}

	actor := ledger.ExternalActor(req.Email)
	if err := batch.ReturnToManager(actor, req.Reason); err != nil {
		return nil, err
	}
	if err := s.batchRepo.SaveWithLock(ctx, batch); err != nil {
		return nil, consumeConflict(err)
	}
	s.audit.Record(ctx, ledger.
		NewAuditEntry(batch.CompanyID, "batch", batch.GetID(), ledger.AuditActionUpdated, actor).
		WithNote("Returned to manager: "+req.Reason))
	s.notifyStatus(ctx, StatusUpdate{
		Kind:           ApprovalKindBatch,
		RecipientEmail: batch.SubmittedByEmail,
		CompanyID:      batch.CompanyID,
		Description:    batch.Name,
		Status:         batch.Status.String(),
		Amount:         batch.TotalAmount,
		Reason:         req.Reason,
	})
	return s.batchState(batch), nil
}

func (s *ApprovalService) approveBatch(ctx context.Context, batch *ledger.PaymentBatch, actor ledger.Actor, req ApproveByTokenRequest) (*ApprovalStateResponse, error) {
	members, err := s.txnRepo.FindByIDs(ctx, batch.CompanyID, batch.TransactionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*ledger.Transaction, len(members))
	for _, m := range members {
		byID[m.GetID()] = m
	}

	// validate the decision set before touching anything: a request naming
	// the same member twice would otherwise shift the total twice
	decided := make(map[uuid.UUID]MemberDecisionInput, len(req.MemberDecisions))
	for _, d := range req.MemberDecisions {
		if _, ok := byID[d.TransactionID]; !ok {
			return nil, shared.NewDomainError("NOT_FOUND", "Decision references a transaction not in this batch")
		}
		if _, dup := decided[d.TransactionID]; dup {
			return nil, shared.NewDomainError("VALIDATION_FAILED",
				"More than one decision for the same transaction")
		}
		decided[d.TransactionID] = d
	}

	touched := make([]*ledger.Transaction, 0, len(members))
	for _, d := range req.MemberDecisions {
		member := byID[d.TransactionID]
		if err := batch.RecordMemberDecision(d.TransactionID, member.EffectiveAmount(), ledger.MemberDecision{
			Rejected:        d.Rejected,
			RejectionReason: d.RejectionReason,
			AdjustedAmount:  d.AdjustedAmount,
		}); err != nil {
			return nil, err
		}
		if d.Rejected {
			if err := member.RejectFromBatch(actor, d.RejectionReason); err != nil {
				return nil, err
			}
			touched = append(touched, member)
		}
	}

	// survivors are approved, carrying any adjusted amount
	for _, m := range members {
		d, wasDecided := decided[m.GetID()]
		if wasDecided && d.Rejected {
			continue
		}
		var adjusted *decimal.Decimal
		if wasDecided {
			adjusted = d.AdjustedAmount
		}
		if err := m.ApproveViaBatch(actor, adjusted); err != nil {
			return nil, err
		}
		touched = append(touched, m)
	}

	if err := batch.Approve(actor, req.Comment); err != nil {
		return nil, err
	}
	if err := s.batchRepo.SaveWithMembers(ctx, batch, touched); err != nil {
		return nil, consumeConflict(err)
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(batch.CompanyID, "batch", batch.GetID(), ledger.AuditActionApproved, actor).
		WithNote(req.Comment))
	s.notifyStatus(ctx, StatusUpdate{
		Kind:           ApprovalKindBatch,
		RecipientEmail: batch.SubmittedByEmail,
		CompanyID:      batch.CompanyID,
		Description:    batch.Name,
		Status:         batch.Status.String(),
		Amount:         batch.TotalAmount,
	})

	return s.batchState(batch), nil
}

func (s *ApprovalService) authorizeBatch(ctx context.Context, batch *ledger.PaymentBatch, actor ledger.Actor, scheduled *time.Time) (*ApprovalStateResponse, error) {
	if err := batch.Authorize(actor, scheduled); err != nil {
		return nil, err
	}
	if err := s.batchRepo.SaveWithLock(ctx, batch); err != nil {
		return nil, consumeConflict(err)
	}
	s.audit.Record(ctx, ledger.
		NewAuditEntry(batch.CompanyID, "batch", batch.GetID(), ledger.AuditActionAuthorized, actor))
	s.notifyStatus(ctx, StatusUpdate{
		Kind:           ApprovalKindBatchAuthorization,
		RecipientEmail: batch.SubmittedByEmail,
		CompanyID:      batch.CompanyID,
		Description:    batch.Name,
		Status:         batch.Status.String(),
		Amount:         batch.TotalAmount,
	})
	return s.batchState(batch), nil
}

// resolveToken finds the entity owning a token, transaction first, then
// batch, and validates expiry before status per the token contract.
func (s *ApprovalService) resolveToken(ctx context.Context, token string) (*ledger.Transaction, *ledger.PaymentBatch, error) {
	if token == "" {
		return nil, nil, shared.ErrTokenNotFound
	}

	txn, err := s.txnRepo.FindByApprovalToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if txn != nil {
		if err := ledger.ValidateToken(txn, s.now()); err != nil {
			return nil, nil, err
		}
		return txn, nil, nil
	}

	batch, err := s.batchRepo.FindByApprovalToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if batch == nil {
		return nil, nil, shared.ErrTokenNotFound
	}
	if err := ledger.ValidateToken(batch, s.now()); err != nil {
		return nil, nil, err
	}
	return nil, batch, nil
}

func (s *ApprovalService) findBatch(ctx context.Context, companyID, id uuid.UUID) (*ledger.PaymentBatch, error) {
	batch, err := s.batchRepo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Payment batch not found")
	}
	return batch, nil
}

func (s *ApprovalService) batchState(batch *ledger.PaymentBatch) *ApprovalStateResponse {
	return &ApprovalStateResponse{
		Kind: string(ApprovalKindBatch),
		Batch: &BatchStateView{
			ID:              batch.GetID(),
			Name:            batch.Name,
			Status:          batch.Status.String(),
			TotalAmount:     batch.TotalAmount,
			ApproverComment: batch.ApproverComment,
		},
	}
}

// defaultApprover picks the designated approver of the first allocated cost
// center.
func (s *ApprovalService) defaultApprover(ctx context.Context, companyID uuid.UUID, allocations ledger.AllocationList) (string, error) {
	ids := allocations.CostCenterIDs()
	if len(ids) == 0 {
		return "", shared.NewDomainError("VALIDATION_FAILED", "Transaction has no cost center to route through")
	}
	info, err := s.costCenters.Resolve(ctx, companyID, ids[0])
	if err != nil {
		return "", err
	}
	if info == nil || info.ApproverEmail == "" {
		return "", shared.NewDomainError("VALIDATION_FAILED",
			"No approver email configured for the transaction's cost center")
	}
	return info.ApproverEmail, nil
}

// dispatch sends the approval request, downgrading failures to a warning
// so a broken mailer never aborts the transition that minted the token.
func (s *ApprovalService) dispatch(ctx context.Context, req ApprovalRequest) {
	if err := s.dispatcher.DispatchApprovalRequest(ctx, req); err != nil {
		s.logger.Warn("approval notification not delivered",
			zap.String("kind", string(req.Kind)),
			zap.String("recipient", req.RecipientEmail),
			zap.Error(err))
	}
}

// notifyStatus tells the requester the outcome of their routing, best
// effort like dispatch. Skipped when no requester email was recorded.
func (s *ApprovalService) notifyStatus(ctx context.Context, upd StatusUpdate) {
	if upd.RecipientEmail == "" {
		return
	}
	if err := s.dispatcher.DispatchStatusUpdate(ctx, upd); err != nil {
		s.logger.Warn("status update not delivered",
			zap.String("kind", string(upd.Kind)),
			zap.String("recipient", upd.RecipientEmail),
			zap.Error(err))
	}
}

// consumeConflict translates a lost version race on a token-consuming write.
// The losing request reads as the decision already being recorded, not as a
// transient conflict worth retrying, because the token it held is spent.
func consumeConflict(err error) error {
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		return shared.NewDomainError("INVALID_STATE",
			"The decision was already recorded by another request")
	}
	return err
}
