package ledger

import (
	"testing"
	"time"

	"github.com/finledger/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleAllocation() AllocationList {
	return AllocationList{
		{CostCenterID: uuid.New(), Percentage: decimal.NewFromInt(100)},
	}
}

func newDraftPayable(t *testing.T) *Transaction {
	t.Helper()
	txn, err := NewTransaction(
		uuid.New(),
		TransactionTypePayable,
		"Office supplies",
		valueobject.NewMoneyBRLFromFloat(1500.00),
		time.Now().Add(30*24*time.Hour),
		singleAllocation(),
		uuid.New(),
	)
	require.NoError(t, err)
	return txn
}

func newPendingPayable(t *testing.T) *Transaction {
	t.Helper()
	txn := newDraftPayable(t)
	require.NoError(t, txn.SubmitForApproval(MintApprovalToken(DefaultTransactionTokenTTL)))
	return txn
}

// Test TransactionStatus enum

func TestTransactionStatus_IsValid(t *testing.T) {
	tests := []struct {
		status   TransactionStatus
		expected bool
	}{
		{TransactionStatusDraft, true},
		{TransactionStatusPendingApproval, true},
		{TransactionStatusApproved, true},
		{TransactionStatusPaid, true},
		{TransactionStatusRejected, true},
		{TransactionStatus("INVALID"), false},
		{TransactionStatus(""), false},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.IsValid())
		})
	}
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   TransactionStatus
		expected bool
	}{
		{TransactionStatusDraft, false},
		{TransactionStatusPendingApproval, false},
		{TransactionStatusApproved, false},
		{TransactionStatusPaid, true},
		{TransactionStatusRejected, true},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.IsTerminal())
		})
	}
}

// Test transaction creation

func TestNewTransaction_PayableStartsDraft(t *testing.T) {
	companyID := uuid.New()
	createdBy := uuid.New()
	dueDate := time.Now().Add(30 * 24 * time.Hour)

	txn, err := NewTransaction(
		companyID,
		TransactionTypePayable,
		"Office supplies",
		valueobject.NewMoneyBRLFromFloat(1500.00),
		dueDate,
		singleAllocation(),
		createdBy,
	)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, txn.GetID())
	assert.Equal(t, companyID, txn.CompanyID)
	assert.Equal(t, TransactionStatusDraft, txn.Status)
	assert.True(t, txn.Amount.Equal(decimal.NewFromFloat(1500.00)))
	assert.Nil(t, txn.OriginalAmount)
	assert.False(t, txn.ApprovalToken.IsPresent())

	events := txn.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTransactionCreated, events[0].EventType())
}

func TestNewTransaction_ReceivableStartsApproved(t *testing.T) {
	txn, err := NewTransaction(
		uuid.New(),
		TransactionTypeReceivable,
		"Consulting invoice",
		valueobject.NewMoneyBRLFromFloat(8000.00),
		time.Now().Add(15*24*time.Hour),
		singleAllocation(),
		uuid.New(),
	)

	require.NoError(t, err)
	assert.Equal(t, TransactionStatusApproved, txn.Status)
}

func TestNewTransaction_EmptyDescription(t *testing.T) {
	txn, err := NewTransaction(
		uuid.New(),
		TransactionTypePayable,
		"",
		valueobject.NewMoneyBRLFromFloat(100.00),
		time.Now(),
		singleAllocation(),
		uuid.New(),
	)

	assert.Error(t, err)
	assert.Nil(t, txn)
	assert.Contains(t, err.Error(), "Description cannot be empty")
}

func TestNewTransaction_NegativeAmount(t *testing.T) {
	txn, err := NewTransaction(
		uuid.New(),
		TransactionTypePayable,
		"Office supplies",
		valueobject.NewMoneyBRLFromFloat(-100.00),
		time.Now(),
		singleAllocation(),
		uuid.New(),
	)

	assert.Error(t, err)
	assert.Nil(t, txn)
}

func TestNewTransaction_InvalidAllocation(t *testing.T) {
	allocations := AllocationList{
		{CostCenterID: uuid.New(), Percentage: decimal.NewFromInt(60)},
	}

	txn, err := NewTransaction(
		uuid.New(),
		TransactionTypePayable,
		"Office supplies",
		valueobject.NewMoneyBRLFromFloat(100.00),
		time.Now(),
		allocations,
		uuid.New(),
	)

	assert.Error(t, err)
	assert.Nil(t, txn)
	assert.Contains(t, err.Error(), "ALLOCATION_INVALID")
}

// Test approval flow

func TestTransaction_SubmitForApproval(t *testing.T) {
	txn := newDraftPayable(t)
	token := MintApprovalToken(DefaultTransactionTokenTTL)

	err := txn.SubmitForApproval(token)

	require.NoError(t, err)
	assert.Equal(t, TransactionStatusPendingApproval, txn.Status)
	assert.Equal(t, token.Value, txn.ApprovalToken.Value)
	assert.True(t, txn.AwaitingTokenAction())
}

func TestTransaction_SubmitForApproval_NotDraft(t *testing.T) {
	txn := newPendingPayable(t)

	err := txn.SubmitForApproval(MintApprovalToken(DefaultTransactionTokenTTL))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATE")
}

func TestTransaction_Approve(t *testing.T) {
	txn := newPendingPayable(t)
	approver := ExternalActor("cfo@example.com")

	err := txn.Approve(approver, nil)

	require.NoError(t, err)
	assert.Equal(t, TransactionStatusApproved, txn.Status)
	assert.False(t, txn.ApprovalToken.IsPresent(), "token must be consumed with the approval")
	assert.Equal(t, "cfo@example.com", txn.ApprovedByEmail)
	assert.Nil(t, txn.ApprovedBy)
	assert.NotNil(t, txn.ApprovedAt)
	assert.Nil(t, txn.OriginalAmount)
}

func TestTransaction_Approve_WithAmountOverride(t *testing.T) {
	txn := newPendingPayable(t)
	override := decimal.NewFromFloat(1200.00)

	err := txn.Approve(ExternalActor(""), &override)

	require.NoError(t, err)
	require.NotNil(t, txn.OriginalAmount)
	assert.True(t, txn.OriginalAmount.Equal(decimal.NewFromFloat(1500.00)))
	assert.True(t, txn.Amount.Equal(override))
	assert.Equal(t, ExternalActorEmail, txn.ApprovedByEmail)

	// allocation amounts follow the overridden total
	sum := decimal.Zero
	for _, a := range txn.Allocations {
		sum = sum.Add(a.Amount)
	}
	assert.True(t, sum.Equal(override))
}

func TestTransaction_Approve_NotPending(t *testing.T) {
	txn := newDraftPayable(t)

	err := txn.Approve(ExternalActor(""), nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATE")
}

func TestTransaction_Reject_RequiresReason(t *testing.T) {
	txn := newPendingPayable(t)

	err := txn.Reject(ExternalActor("cfo@example.com"), "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Rejection reason is required")
	assert.Equal(t, TransactionStatusPendingApproval, txn.Status)
}

func TestTransaction_Reject(t *testing.T) {
	txn := newPendingPayable(t)

	err := txn.Reject(ExternalActor("cfo@example.com"), "Duplicate invoice")

	require.NoError(t, err)
	assert.Equal(t, TransactionStatusRejected, txn.Status)
	assert.Equal(t, "Duplicate invoice", txn.RejectionReason)
	assert.False(t, txn.ApprovalToken.IsPresent())
	assert.False(t, txn.AwaitingTokenAction())
}

// Test settlement

func TestTransaction_Settle_WithDiscount(t *testing.T) {
	txn := newPendingPayable(t)
	require.NoError(t, txn.Approve(ExternalActor(""), nil))
	releaser := UserActor(uuid.New(), "treasury@example.com")
	paymentDate := time.Now()

	err := txn.Settle(releaser, paymentDate, decimal.NewFromFloat(1450.00))

	require.NoError(t, err)
	assert.Equal(t, TransactionStatusPaid, txn.Status)
	assert.True(t, txn.Discount.Equal(decimal.NewFromFloat(50.00)))
	assert.True(t, txn.Interest.IsZero())
	require.NotNil(t, txn.FinalAmount)
	assert.True(t, txn.FinalAmount.Equal(decimal.NewFromFloat(1450.00)))
	assert.Equal(t, "treasury@example.com", txn.ReleasedByEmail)
	assert.NotNil(t, txn.PaymentDate)
}

func TestTransaction_Settle_WithInterest(t *testing.T) {
	txn := newPendingPayable(t)
	require.NoError(t, txn.Approve(ExternalActor(""), nil))

	err := txn.Settle(UserActor(uuid.New(), "treasury@example.com"), time.Now(), decimal.NewFromFloat(1530.00))

	require.NoError(t, err)
	assert.True(t, txn.Interest.Equal(decimal.NewFromFloat(30.00)))
	assert.True(t, txn.Discount.IsZero())
}

func TestTransaction_Settle_ExactAmount(t *testing.T) {
	txn := newPendingPayable(t)
	require.NoError(t, txn.Approve(ExternalActor(""), nil))

	err := txn.Settle(UserActor(uuid.New(), "treasury@example.com"), time.Now(), decimal.NewFromFloat(1500.00))

	require.NoError(t, err)
	assert.True(t, txn.Discount.IsZero())
	assert.True(t, txn.Interest.IsZero())
}

func TestTransaction_Settle_NotApproved(t *testing.T) {
	txn := newDraftPayable(t)

	err := txn.Settle(UserActor(uuid.New(), "treasury@example.com"), time.Now(), decimal.NewFromFloat(1500.00))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATE")
}

// Test batch membership

func TestTransaction_AttachToBatch(t *testing.T) {
	txn := newDraftPayable(t)
	batchID := uuid.New()

	require.NoError(t, txn.AttachToBatch(batchID))
	require.NotNil(t, txn.BatchID)
	assert.Equal(t, batchID, *txn.BatchID)

	// second batch is refused
	err := txn.AttachToBatch(uuid.New())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already belongs to a batch")
}

func TestTransaction_AttachToBatch_NotDraft(t *testing.T) {
	txn := newPendingPayable(t)

	err := txn.AttachToBatch(uuid.New())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATE")
}

func TestTransaction_ApproveViaBatch_AdjustedAmount(t *testing.T) {
	txn := newDraftPayable(t)
	require.NoError(t, txn.AttachToBatch(uuid.New()))
	adjusted := decimal.NewFromFloat(1400.00)

	err := txn.ApproveViaBatch(ExternalActor("cfo@example.com"), &adjusted)

	require.NoError(t, err)
	assert.Equal(t, TransactionStatusApproved, txn.Status)
	require.NotNil(t, txn.BatchAdjustedAmount)
	assert.True(t, txn.EffectiveAmount().Equal(adjusted))
	// the entered amount is preserved
	assert.True(t, txn.Amount.Equal(decimal.NewFromFloat(1500.00)))
}

func TestTransaction_RejectFromBatch_ReturnsToDraft(t *testing.T) {
	txn := newDraftPayable(t)
	require.NoError(t, txn.AttachToBatch(uuid.New()))

	err := txn.RejectFromBatch(ExternalActor("cfo@example.com"), "Wrong supplier")

	require.NoError(t, err)
	assert.Equal(t, TransactionStatusDraft, txn.Status)
	assert.Nil(t, txn.BatchID)
	assert.Equal(t, "Wrong supplier", txn.RejectionReason)
}

func TestTransaction_MarkPaidViaBatch_UsesAdjustedAmount(t *testing.T) {
	txn := newDraftPayable(t)
	require.NoError(t, txn.AttachToBatch(uuid.New()))
	adjusted := decimal.NewFromFloat(1400.00)
	require.NoError(t, txn.ApproveViaBatch(ExternalActor(""), &adjusted))

	err := txn.MarkPaidViaBatch(UserActor(uuid.New(), "treasury@example.com"), time.Now())

	require.NoError(t, err)
	assert.Equal(t, TransactionStatusPaid, txn.Status)
	require.NotNil(t, txn.FinalAmount)
	assert.True(t, txn.FinalAmount.Equal(adjusted))
	assert.True(t, txn.Discount.Equal(decimal.NewFromFloat(100.00)))
}

// Test updates

func TestTransaction_ApplyUpdate_RecomputesAllocations(t *testing.T) {
	txn := newDraftPayable(t)
	newAmount := decimal.NewFromFloat(2000.00)

	err := txn.ApplyUpdate(TransactionUpdate{Amount: &newAmount})

	require.NoError(t, err)
	assert.True(t, txn.Amount.Equal(newAmount))
	sum := decimal.Zero
	for _, a := range txn.Allocations {
		sum = sum.Add(a.Amount)
	}
	assert.True(t, sum.Equal(newAmount))
}

func TestTransaction_ApplyUpdate_EmptyDescription(t *testing.T) {
	txn := newDraftPayable(t)
	empty := ""

	err := txn.ApplyUpdate(TransactionUpdate{Description: &empty})

	assert.Error(t, err)
}

func TestTransactionUpdate_SeriesSafe(t *testing.T) {
	desc := "Updated"
	amount := decimal.NewFromFloat(999.00)
	due := time.Now()
	u := TransactionUpdate{
		Description: &desc,
		Amount:      &amount,
		DueDate:     &due,
	}

	safe := u.SeriesSafe()

	assert.NotNil(t, safe.Description)
	assert.Nil(t, safe.Amount, "amount must not propagate across a series")
	assert.Nil(t, safe.DueDate, "due date must not propagate across a series")
}

// Test token validation

func TestValidateToken_Order(t *testing.T) {
	// no token at all
	draft := newDraftPayable(t)
	assert.ErrorContains(t, ValidateToken(draft, time.Now()), "TOKEN_NOT_FOUND")

	// expired token on a pending transaction
	expired := newDraftPayable(t)
	require.NoError(t, expired.SubmitForApproval(MintApprovalToken(-time.Hour)))
	assert.ErrorContains(t, ValidateToken(expired, time.Now()), "TOKEN_EXPIRED")

	// live token but status already moved on: simulate a stale link by
	// restoring the consumed token after approval
	stale := newPendingPayable(t)
	token := stale.ApprovalToken
	require.NoError(t, stale.Approve(ExternalActor(""), nil))
	stale.ApprovalToken = token
	assert.ErrorContains(t, ValidateToken(stale, time.Now()), "INVALID_STATE")

	// happy path
	pending := newPendingPayable(t)
	assert.NoError(t, ValidateToken(pending, time.Now()))
}

func TestTransaction_IsOverdue(t *testing.T) {
	txn := newDraftPayable(t)
	txn.DueDate = time.Now().Add(-24 * time.Hour)

	assert.True(t, txn.IsOverdue(time.Now()))

	txn.Status = TransactionStatusPaid
	assert.False(t, txn.IsOverdue(time.Now()))
}
