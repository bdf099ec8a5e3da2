package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/finledger/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type approvalFixture struct {
	txns      *fakeTxnRepo
	batches   *fakeBatchRepo
	auditRepo *fakeAuditRepo
	directory *fakeDirectory
	mailer    *fakeDispatcher
	svc       *ApprovalService
	companyID uuid.UUID
	ccID      uuid.UUID
}

func newApprovalFixture(t *testing.T) *approvalFixture {
	t.Helper()
	txns := newFakeTxnRepo()
	batches := newFakeBatchRepo(txns)
	auditRepo := &fakeAuditRepo{}
	directory := newFakeDirectory()
	mailer := &fakeDispatcher{}
	svc := NewApprovalService(
		txns, batches, directory, mailer,
		NewAuditRecorder(auditRepo, testLogger()), testLogger(), 0, 0,
	)
	return &approvalFixture{
		txns:      txns,
		batches:   batches,
		auditRepo: auditRepo,
		directory: directory,
		mailer:    mailer,
		svc:       svc,
		companyID: uuid.New(),
		ccID:      directory.add("approver@example.com"),
	}
}

func (f *approvalFixture) allocations() ledger.AllocationList {
	return ledger.AllocationList{
		{CostCenterID: f.ccID, Percentage: decimal.NewFromInt(100)},
	}
}

func (f *approvalFixture) draftPayable(t *testing.T, amount float64) *ledger.Transaction {
	t.Helper()
	txn, err := ledger.NewTransaction(
		f.companyID,
		ledger.TransactionTypePayable,
		"Office supplies",
		valueobject.NewMoneyBRLFromFloat(amount),
		time.Now().Add(30*24*time.Hour),
		f.allocations(),
		uuid.New(),
	)
	require.NoError(t, err)
	require.NoError(t, f.txns.Save(context.Background(), txn))
	return txn
}

// pendingBatch builds a batch in pending approval with one member per amount
// and returns the batch together with its token value.
func (f *approvalFixture) pendingBatch(t *testing.T, amounts ...float64) (*ledger.PaymentBatch, []*ledger.Transaction, string) {
	t.Helper()
	ctx := context.Background()

	batch, err := ledger.NewPaymentBatch(f.companyID, "Week 35 payments", uuid.New())
	require.NoError(t, err)

	members := make([]*ledger.Transaction, len(amounts))
	for i, amount := range amounts {
		txn := f.draftPayable(t, amount)
		require.NoError(t, txn.AttachToBatch(batch.GetID()))
		require.NoError(t, batch.AddMember(txn.GetID(), txn.Amount))
		members[i] = txn
	}
	require.NoError(t, f.batches.SaveWithMembers(ctx, batch, members))

	resp, err := f.svc.SubmitBatch(ctx, f.companyID, batch.GetID(), SubmitBatchRequest{
		RecipientEmail: "cfo@example.com",
		Actor:          ledger.Actor{Email: "manager@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, ledger.BatchStatusPendingApproval.String(), resp.Status)

	return batch, members, batch.ApprovalToken.Value
}

func requireDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, code, de.Code)
}

func TestSubmitTransaction_MintsTokenAndNotifies(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 1500.00)

	resp, err := f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{})

	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionStatusPendingApproval.String(), resp.Status)
	assert.NotNil(t, resp.TokenExpiresAt)
	assert.True(t, txn.ApprovalToken.IsPresent())

	// routed to the cost center's designated approver
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "approver@example.com", f.mailer.sent[0].RecipientEmail)
	assert.Equal(t, txn.ApprovalToken.Value, f.mailer.sent[0].Token)
	assert.Equal(t, []string{ledger.AuditActionSubmitted}, f.auditRepo.actions())
}

func TestSubmitTransaction_ExplicitApproverOverridesDefault(t *testing.T) {
	f := newApprovalFixture(t)
	txn := f.draftPayable(t, 500.00)

	_, err := f.svc.SubmitTransaction(context.Background(), f.companyID, txn.GetID(), SubmitTransactionRequest{
		ApproverEmail: "director@example.com",
	})

	require.NoError(t, err)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "director@example.com", f.mailer.sent[0].RecipientEmail)
}

func TestSubmitTransaction_BatchMemberRefused(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 900.00)

	batch, err := ledger.NewPaymentBatch(f.companyID, "Week 35 payments", uuid.New())
	require.NoError(t, err)
	require.NoError(t, txn.AttachToBatch(batch.GetID()))
	require.NoError(t, f.batches.Save(ctx, batch))

	_, err = f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{})
	requireDomainCode(t, err, "INVALID_STATE")
}

func TestSubmitTransaction_NotificationFailureDoesNotAbort(t *testing.T) {
	f := newApprovalFixture(t)
	f.mailer.failErr = errors.New("smtp connection refused")
	txn := f.draftPayable(t, 1500.00)

	resp, err := f.svc.SubmitTransaction(context.Background(), f.companyID, txn.GetID(), SubmitTransactionRequest{})

	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionStatusPendingApproval.String(), resp.Status)
	assert.True(t, txn.ApprovalToken.IsPresent())
}

func TestApproveByToken_Transaction(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 1500.00)

	_, err := f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{})
	require.NoError(t, err)
	token := txn.ApprovalToken.Value

	state, err := f.svc.ApproveByToken(ctx, token, ApproveByTokenRequest{Email: "approver@example.com"})

	require.NoError(t, err)
	require.NotNil(t, state.Transaction)
	assert.Equal(t, ledger.TransactionStatusApproved.String(), state.Transaction.Status)
	assert.Equal(t, "approver@example.com", txn.ApprovedByEmail)
	assert.False(t, txn.ApprovalToken.IsPresent())

	// the consumed token no longer resolves
	_, err = f.svc.ApproveByToken(ctx, token, ApproveByTokenRequest{Email: "approver@example.com"})
	requireDomainCode(t, err, "TOKEN_NOT_FOUND")
}

func TestApproveByToken_TransactionAmountOverride(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 1500.00)

	_, err := f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{})
	require.NoError(t, err)

	override := decimal.NewFromFloat(1200.00)
	state, err := f.svc.ApproveByToken(ctx, txn.ApprovalToken.Value, ApproveByTokenRequest{
		Email:          "approver@example.com",
		AmountOverride: &override,
	})

	require.NoError(t, err)
	assert.True(t, state.Transaction.Amount.Equal(override))
	require.NotNil(t, state.Transaction.OriginalAmount)
	assert.True(t, state.Transaction.OriginalAmount.Equal(decimal.NewFromFloat(1500.00)))
}

func TestRejectByToken_TransactionRequiresReason(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 1500.00)

	_, err := f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{})
	require.NoError(t, err)

	_, err = f.svc.RejectByToken(ctx, txn.ApprovalToken.Value, RejectByTokenRequest{Email: "approver@example.com"})
	requireDomainCode(t, err, "VALIDATION_FAILED")

	state, err := f.svc.RejectByToken(ctx, txn.ApprovalToken.Value, RejectByTokenRequest{
		Email:  "approver@example.com",
		Reason: "Duplicate invoice",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.TransactionStatusRejected.String(), state.Transaction.Status)
	assert.Equal(t, "Duplicate invoice", txn.RejectionReason)
}

func TestGetStateByToken_UnknownToken(t *testing.T) {
	f := newApprovalFixture(t)

	_, err := f.svc.GetStateByToken(context.Background(), "no-such-token")
	requireDomainCode(t, err, "TOKEN_NOT_FOUND")

	_, err = f.svc.GetStateByToken(context.Background(), "")
	requireDomainCode(t, err, "TOKEN_NOT_FOUND")
}

func TestGetStateByToken_BatchIncludesMembers(t *testing.T) {
	f := newApprovalFixture(t)
	_, _, token := f.pendingBatch(t, 100.00, 200.00)

	state, err := f.svc.GetStateByToken(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, string(ApprovalKindBatch), state.Kind)
	require.NotNil(t, state.Batch)
	assert.Len(t, state.Batch.Members, 2)
	assert.True(t, state.Batch.TotalAmount.Equal(decimal.NewFromFloat(300.00)))
}

func TestApproveByToken_ExpiredBatchToken(t *testing.T) {
	f := newApprovalFixture(t)
	batch, _, token := f.pendingBatch(t, 100.00)

	// 48h tokens are stale an hour past their lifetime
	f.svc.WithClock(func() time.Time { return time.Now().Add(49 * time.Hour) })

	_, err := f.svc.ApproveByToken(context.Background(), token, ApproveByTokenRequest{Email: "cfo@example.com"})

	requireDomainCode(t, err, "TOKEN_EXPIRED")
	assert.Equal(t, ledger.BatchStatusPendingApproval, batch.Status)
	assert.True(t, batch.ApprovalToken.IsPresent())
}

func TestApproveByToken_BatchAllMembersAccepted(t *testing.T) {
	f := newApprovalFixture(t)
	batch, members, token := f.pendingBatch(t, 100.00, 200.00)

	state, err := f.svc.ApproveByToken(context.Background(), token, ApproveByTokenRequest{
		Email:   "cfo@example.com",
		Comment: "Looks good",
	})

	require.NoError(t, err)
	assert.Equal(t, ledger.BatchStatusApproved.String(), state.Batch.Status)
	assert.Equal(t, "Looks good", batch.ApproverComment)
	assert.False(t, batch.ApprovalToken.IsPresent())
	for _, m := range members {
		assert.Equal(t, ledger.TransactionStatusApproved, m.Status)
		assert.Equal(t, "cfo@example.com", m.ApprovedByEmail)
	}
}

func TestApproveByToken_BatchMemberDecisions(t *testing.T) {
	f := newApprovalFixture(t)
	batch, members, token := f.pendingBatch(t, 100.00, 200.00, 300.00)
	adjusted := decimal.NewFromFloat(150.00)

	state, err := f.svc.ApproveByToken(context.Background(), token, ApproveByTokenRequest{
		Email: "cfo@example.com",
		MemberDecisions: []MemberDecisionInput{
			{TransactionID: members[0].GetID(), Rejected: true, RejectionReason: "Missing receipt"},
			{TransactionID: members[1].GetID(), AdjustedAmount: &adjusted},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, ledger.BatchStatusApproved.String(), state.Batch.Status)

	// rejected member is back in draft outside the batch
	assert.Equal(t, ledger.TransactionStatusDraft, members[0].Status)
	assert.Nil(t, members[0].BatchID)
	assert.Equal(t, "Missing receipt", members[0].RejectionReason)

	// adjusted member keeps its original amount alongside the adjustment
	assert.Equal(t, ledger.TransactionStatusApproved, members[1].Status)
	require.NotNil(t, members[1].BatchAdjustedAmount)
	assert.True(t, members[1].BatchAdjustedAmount.Equal(adjusted))
	assert.True(t, members[1].Amount.Equal(decimal.NewFromFloat(200.00)))

	// untouched member approved as-is; total reflects both decisions
	assert.Equal(t, ledger.TransactionStatusApproved, members[2].Status)
	assert.True(t, batch.TotalAmount.Equal(decimal.NewFromFloat(450.00)))
	assert.Len(t, batch.RejectedMembers, 1)
	assert.Len(t, batch.TransactionIDs, 2)
}

func TestApproveByToken_BatchAllMembersRejectedRefused(t *testing.T) {
	f := newApprovalFixture(t)
	_, members, token := f.pendingBatch(t, 100.00)

	_, err := f.svc.ApproveByToken(context.Background(), token, ApproveByTokenRequest{
		Email: "cfo@example.com",
		MemberDecisions: []MemberDecisionInput{
			{TransactionID: members[0].GetID(), Rejected: true, RejectionReason: "Wrong supplier"},
		},
	})

	requireDomainCode(t, err, "VALIDATION_FAILED")
}

func TestApproveByToken_BatchDuplicateDecisionsRefused(t *testing.T) {
	f := newApprovalFixture(t)
	batch, members, token := f.pendingBatch(t, 100.00)
	adjusted := decimal.NewFromFloat(80.00)

	_, err := f.svc.ApproveByToken(context.Background(), token, ApproveByTokenRequest{
		Email: "cfo@example.com",
		MemberDecisions: []MemberDecisionInput{
			{TransactionID: members[0].GetID(), AdjustedAmount: &adjusted},
			{TransactionID: members[0].GetID(), AdjustedAmount: &adjusted},
		},
	})

	requireDomainCode(t, err, "VALIDATION_FAILED")
	// nothing moved: the adjustment was not applied once, let alone twice
	assert.Equal(t, ledger.BatchStatusPendingApproval, batch.Status)
	assert.True(t, batch.TotalAmount.Equal(decimal.NewFromFloat(100.00)))
	assert.Equal(t, ledger.TransactionStatusDraft, members[0].Status)
}

func TestRejectMemberByToken_KeepsBatchPending(t *testing.T) {
	f := newApprovalFixture(t)
	batch, members, token := f.pendingBatch(t, 100.00, 200.00)

	state, err := f.svc.RejectMemberByToken(context.Background(), token, members[0].GetID(), RejectByTokenRequest{
		Email:  "cfo@example.com",
		Reason: "Missing receipt",
	})

	require.NoError(t, err)
	assert.Equal(t, ledger.BatchStatusPendingApproval.String(), state.Batch.Status)
	assert.True(t, batch.ApprovalToken.IsPresent())

	// the member is back in draft outside the batch and the total shrank
	assert.Equal(t, ledger.TransactionStatusDraft, members[0].Status)
	assert.Nil(t, members[0].BatchID)
	assert.Equal(t, "Missing receipt", members[0].RejectionReason)
	assert.True(t, batch.TotalAmount.Equal(decimal.NewFromFloat(200.00)))
	assert.Len(t, batch.TransactionIDs, 1)
	assert.Len(t, batch.RejectedMembers, 1)

	// the approver keeps deciding on the remainder with the same token
	_, err = f.svc.GetStateByToken(context.Background(), token)
	require.NoError(t, err)
}

func TestRejectMemberByToken_UnknownMember(t *testing.T) {
	f := newApprovalFixture(t)
	_, _, token := f.pendingBatch(t, 100.00)

	_, err := f.svc.RejectMemberByToken(context.Background(), token, uuid.New(), RejectByTokenRequest{
		Email:  "cfo@example.com",
		Reason: "Missing receipt",
	})
	requireDomainCode(t, err, "NOT_FOUND")
}

func TestRejectMemberByToken_TransactionTokenRefused(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 500.00)

	_, err := f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{})
	require.NoError(t, err)

	_, err = f.svc.RejectMemberByToken(ctx, txn.ApprovalToken.Value, txn.GetID(), RejectByTokenRequest{
		Email:  "approver@example.com",
		Reason: "Not applicable",
	})
	requireDomainCode(t, err, "INVALID_STATE")
}

func TestApproveByToken_NotifiesRequester(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 1500.00)

	_, err := f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{
		Actor: ledger.Actor{Email: "manager@example.com"},
	})
	require.NoError(t, err)
	token := txn.ApprovalToken.Value

	_, err = f.svc.ApproveByToken(ctx, token, ApproveByTokenRequest{Email: "approver@example.com"})
	require.NoError(t, err)

	require.Len(t, f.mailer.updates, 1)
	upd := f.mailer.updates[0]
	assert.Equal(t, "manager@example.com", upd.RecipientEmail)
	assert.Equal(t, ledger.TransactionStatusApproved.String(), upd.Status)
}

func TestRejectByToken_BatchNotifiesRequester(t *testing.T) {
	f := newApprovalFixture(t)
	_, _, token := f.pendingBatch(t, 100.00)

	_, err := f.svc.RejectByToken(context.Background(), token, RejectByTokenRequest{
		Email:  "cfo@example.com",
		Reason: "Budget freeze",
	})
	require.NoError(t, err)

	require.Len(t, f.mailer.updates, 1)
	upd := f.mailer.updates[0]
	assert.Equal(t, "manager@example.com", upd.RecipientEmail)
	assert.Equal(t, ledger.BatchStatusRejected.String(), upd.Status)
	assert.Equal(t, "Budget freeze", upd.Reason)
}

func TestApproveByToken_NoRequesterRecordedSkipsUpdate(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 1500.00)

	_, err := f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{})
	require.NoError(t, err)

	_, err = f.svc.ApproveByToken(ctx, txn.ApprovalToken.Value, ApproveByTokenRequest{Email: "approver@example.com"})
	require.NoError(t, err)
	assert.Empty(t, f.mailer.updates)
}

func TestApproveByToken_LostRaceReadsAsAlreadyDecided(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 1500.00)

	_, err := f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{})
	require.NoError(t, err)
	token := txn.ApprovalToken.Value

	// another request consumed the token between the read and the write
	f.txns.lockErr = shared.ErrConcurrencyConflict

	_, err = f.svc.ApproveByToken(ctx, token, ApproveByTokenRequest{Email: "approver@example.com"})
	requireDomainCode(t, err, "INVALID_STATE")
}

func TestRejectByToken_BatchLostRaceReadsAsAlreadyDecided(t *testing.T) {
	f := newApprovalFixture(t)
	_, _, token := f.pendingBatch(t, 100.00)

	f.batches.lockErr = shared.ErrConcurrencyConflict

	_, err := f.svc.RejectByToken(context.Background(), token, RejectByTokenRequest{
		Email:  "cfo@example.com",
		Reason: "Budget freeze",
	})
	requireDomainCode(t, err, "INVALID_STATE")
}

func TestRejectByToken_BatchReleasesMembers(t *testing.T) {
	f := newApprovalFixture(t)
	batch, members, token := f.pendingBatch(t, 100.00, 200.00)

	state, err := f.svc.RejectByToken(context.Background(), token, RejectByTokenRequest{
		Email:  "cfo@example.com",
		Reason: "Budget freeze",
	})

	require.NoError(t, err)
	assert.Equal(t, ledger.BatchStatusRejected.String(), state.Batch.Status)
	assert.Equal(t, "Budget freeze", batch.RejectionReason)
	for _, m := range members {
		assert.Equal(t, ledger.TransactionStatusDraft, m.Status)
		assert.Nil(t, m.BatchID)
	}
}

func TestReturnByToken_BatchBackToOpen(t *testing.T) {
	f := newApprovalFixture(t)
	batch, members, token := f.pendingBatch(t, 100.00)

	state, err := f.svc.ReturnByToken(context.Background(), token, ReturnByTokenRequest{
		Email:  "cfo@example.com",
		Reason: "Need invoices attached",
	})

	require.NoError(t, err)
	assert.Equal(t, ledger.BatchStatusOpen.String(), state.Batch.Status)
	assert.Equal(t, "Need invoices attached", batch.ApproverComment)
	assert.Empty(t, batch.ApproverEmail)
	assert.False(t, batch.ApprovalToken.IsPresent())

	// membership survives the return
	assert.Len(t, batch.TransactionIDs, 1)
	assert.NotNil(t, members[0].BatchID)
}

func TestReturnByToken_TransactionRefused(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	txn := f.draftPayable(t, 1500.00)

	_, err := f.svc.SubmitTransaction(ctx, f.companyID, txn.GetID(), SubmitTransactionRequest{})
	require.NoError(t, err)

	_, err = f.svc.ReturnByToken(ctx, txn.ApprovalToken.Value, ReturnByTokenRequest{
		Email:  "approver@example.com",
		Reason: "Not applicable",
	})
	requireDomainCode(t, err, "INVALID_STATE")
}

func TestBatchFullLifecycle(t *testing.T) {
	f := newApprovalFixture(t)
	ctx := context.Background()
	batch, members, token := f.pendingBatch(t, 100.00, 200.00)

	// stage one: approval
	_, err := f.svc.ApproveByToken(ctx, token, ApproveByTokenRequest{Email: "cfo@example.com"})
	require.NoError(t, err)
	require.Equal(t, ledger.BatchStatusApproved, batch.Status)

	// stage two: routed to the money holder
	_, err = f.svc.SubmitBatchForAuthorization(ctx, f.companyID, batch.GetID(), SubmitBatchRequest{
		RecipientEmail: "owner@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, ledger.BatchStatusPendingAuthorization, batch.Status)
	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, ApprovalKindBatchAuthorization, f.mailer.sent[1].Kind)

	scheduled := time.Now().Add(72 * time.Hour)
	state, err := f.svc.ApproveByToken(ctx, batch.ApprovalToken.Value, ApproveByTokenRequest{
		Email:                "owner@example.com",
		ScheduledPaymentDate: &scheduled,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.BatchStatusAuthorized.String(), state.Batch.Status)
	assert.Equal(t, "owner@example.com", batch.AuthorizedByEmail)
	require.NotNil(t, batch.ScheduledPaymentDate)

	// members were approved at stage one and stay approved until payment
	for _, m := range members {
		assert.Equal(t, ledger.TransactionStatusApproved, m.Status)
	}
}
