package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenBatch(t *testing.T) *PaymentBatch {
	t.Helper()
	b, err := NewPaymentBatch(uuid.New(), "March payments", uuid.New())
	require.NoError(t, err)
	return b
}

func newPendingBatch(t *testing.T) *PaymentBatch {
	t.Helper()
	b := newOpenBatch(t)
	require.NoError(t, b.AddMember(uuid.New(), decimal.NewFromFloat(1000.00)))
	require.NoError(t, b.AddMember(uuid.New(), decimal.NewFromFloat(500.00)))
	require.NoError(t, b.SubmitForApproval(MintApprovalToken(DefaultBatchTokenTTL), "cfo@example.com"))
	return b
}

func TestBatchStatus_IsValid(t *testing.T) {
	tests := []struct {
		status   BatchStatus
		expected bool
	}{
		{BatchStatusOpen, true},
		{BatchStatusPendingApproval, true},
		{BatchStatusApproved, true},
		{BatchStatusPendingAuthorization, true},
		{BatchStatusAuthorized, true},
		{BatchStatusPaid, true},
		{BatchStatusRejected, true},
		{BatchStatus("INVALID"), false},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.IsValid())
		})
	}
}

func TestNewPaymentBatch(t *testing.T) {
	companyID := uuid.New()

	b, err := NewPaymentBatch(companyID, "March payments", uuid.New())

	require.NoError(t, err)
	assert.Equal(t, BatchStatusOpen, b.Status)
	assert.Equal(t, companyID, b.CompanyID)
	assert.Empty(t, b.TransactionIDs)
	assert.True(t, b.TotalAmount.IsZero())

	events := b.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventBatchCreated, events[0].EventType())
}

func TestNewPaymentBatch_EmptyName(t *testing.T) {
	b, err := NewPaymentBatch(uuid.New(), "", uuid.New())

	assert.Error(t, err)
	assert.Nil(t, b)
}

func TestPaymentBatch_AddMember(t *testing.T) {
	b := newOpenBatch(t)
	txnID := uuid.New()

	require.NoError(t, b.AddMember(txnID, decimal.NewFromFloat(1000.00)))
	assert.True(t, b.TransactionIDs.Contains(txnID))
	assert.True(t, b.TotalAmount.Equal(decimal.NewFromFloat(1000.00)))

	// duplicate membership is refused
	err := b.AddMember(txnID, decimal.NewFromFloat(1000.00))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already in this batch")
}

func TestPaymentBatch_RemoveMember(t *testing.T) {
	b := newOpenBatch(t)
	txnID := uuid.New()
	require.NoError(t, b.AddMember(txnID, decimal.NewFromFloat(1000.00)))

	require.NoError(t, b.RemoveMember(txnID, decimal.NewFromFloat(1000.00)))
	assert.False(t, b.TransactionIDs.Contains(txnID))
	assert.True(t, b.TotalAmount.IsZero())

	err := b.RemoveMember(txnID, decimal.NewFromFloat(1000.00))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestPaymentBatch_MembershipFrozenAfterSubmit(t *testing.T) {
	b := newPendingBatch(t)

	err := b.AddMember(uuid.New(), decimal.NewFromFloat(100.00))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATE")

	err = b.RemoveMember(b.TransactionIDs[0], decimal.NewFromFloat(1000.00))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATE")
}

func TestPaymentBatch_SubmitForApproval_EmptyBatch(t *testing.T) {
	b := newOpenBatch(t)

	err := b.SubmitForApproval(MintApprovalToken(DefaultBatchTokenTTL), "cfo@example.com")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty batch")
	assert.Equal(t, BatchStatusOpen, b.Status)
}

func TestPaymentBatch_SubmitForApproval(t *testing.T) {
	b := newOpenBatch(t)
	require.NoError(t, b.AddMember(uuid.New(), decimal.NewFromFloat(1000.00)))
	token := MintApprovalToken(DefaultBatchTokenTTL)

	require.NoError(t, b.SubmitForApproval(token, "cfo@example.com"))
	assert.Equal(t, BatchStatusPendingApproval, b.Status)
	assert.Equal(t, token.Value, b.ApprovalToken.Value)
	assert.Equal(t, "cfo@example.com", b.ApproverEmail)
	assert.NotNil(t, b.SentForApprovalAt)
	assert.True(t, b.AwaitingTokenAction())
}

func TestPaymentBatch_ReturnToManager(t *testing.T) {
	b := newPendingBatch(t)
	b.ApproverComment = "Earlier note"

	err := b.ReturnToManager(ExternalActor("cfo@example.com"), "Need invoices attached")

	require.NoError(t, err)
	assert.Equal(t, BatchStatusOpen, b.Status)
	assert.False(t, b.ApprovalToken.IsPresent())
	assert.Empty(t, b.ApproverEmail)
	assert.Nil(t, b.SentForApprovalAt)
	assert.Equal(t, "Need invoices attached; Earlier note", b.ApproverComment)
	// membership is unchanged
	assert.Len(t, b.TransactionIDs, 2)
	assert.True(t, b.TotalAmount.Equal(decimal.NewFromFloat(1500.00)))

	// the batch is open again and can be rerouted
	require.NoError(t, b.SubmitForApproval(MintApprovalToken(DefaultBatchTokenTTL), "cfo2@example.com"))
}

func TestPaymentBatch_ReturnToManager_RequiresReason(t *testing.T) {
	b := newPendingBatch(t)

	err := b.ReturnToManager(ExternalActor(""), "")

	assert.Error(t, err)
	assert.Equal(t, BatchStatusPendingApproval, b.Status)
}

func TestPaymentBatch_RecordMemberDecision_Rejection(t *testing.T) {
	b := newPendingBatch(t)
	rejected := b.TransactionIDs[0]

	err := b.RecordMemberDecision(rejected, decimal.NewFromFloat(1000.00), MemberDecision{
		Rejected:        true,
		RejectionReason: "Missing receipt",
	})

	require.NoError(t, err)
	assert.False(t, b.TransactionIDs.Contains(rejected))
	require.Len(t, b.RejectedMembers, 1)
	assert.Equal(t, "Missing receipt", b.RejectedMembers[0].Reason)
	assert.True(t, b.TotalAmount.Equal(decimal.NewFromFloat(500.00)))
}

func TestPaymentBatch_RecordMemberDecision_Adjustment(t *testing.T) {
	b := newPendingBatch(t)
	adjusted := decimal.NewFromFloat(900.00)

	err := b.RecordMemberDecision(b.TransactionIDs[0], decimal.NewFromFloat(1000.00), MemberDecision{
		AdjustedAmount: &adjusted,
	})

	require.NoError(t, err)
	assert.True(t, b.TotalAmount.Equal(decimal.NewFromFloat(1400.00)))
	assert.Len(t, b.TransactionIDs, 2)
}

func TestPaymentBatch_Approve(t *testing.T) {
	b := newPendingBatch(t)
	approver := ExternalActor("cfo@example.com")

	require.NoError(t, b.Approve(approver, "Looks good"))
	assert.Equal(t, BatchStatusApproved, b.Status)
	assert.False(t, b.ApprovalToken.IsPresent())
	assert.Equal(t, "cfo@example.com", b.ApprovedByEmail)
	assert.Equal(t, "Looks good", b.ApproverComment)
	assert.False(t, b.AwaitingTokenAction())
}

func TestPaymentBatch_Approve_AllMembersRejected(t *testing.T) {
	b := newOpenBatch(t)
	txnID := uuid.New()
	require.NoError(t, b.AddMember(txnID, decimal.NewFromFloat(1000.00)))
	require.NoError(t, b.SubmitForApproval(MintApprovalToken(DefaultBatchTokenTTL), "cfo@example.com"))
	require.NoError(t, b.RecordMemberDecision(txnID, decimal.NewFromFloat(1000.00), MemberDecision{
		Rejected:        true,
		RejectionReason: "Missing receipt",
	}))

	err := b.Approve(ExternalActor(""), "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "all members rejected")
}

func TestPaymentBatch_FullLifecycle(t *testing.T) {
	b := newPendingBatch(t)
	require.NoError(t, b.Approve(ExternalActor("cfo@example.com"), ""))

	authToken := MintApprovalToken(DefaultBatchTokenTTL)
	require.NoError(t, b.SubmitForAuthorization(authToken, "director@example.com"))
	assert.Equal(t, BatchStatusPendingAuthorization, b.Status)
	assert.True(t, b.AwaitingTokenAction())

	scheduled := time.Now().Add(48 * time.Hour)
	require.NoError(t, b.Authorize(ExternalActor("director@example.com"), &scheduled))
	assert.Equal(t, BatchStatusAuthorized, b.Status)
	assert.False(t, b.ApprovalToken.IsPresent())
	assert.Equal(t, "director@example.com", b.AuthorizedByEmail)
	require.NotNil(t, b.ScheduledPaymentDate)

	require.NoError(t, b.ConfirmPayment(UserActor(uuid.New(), "treasury@example.com"), time.Now()))
	assert.Equal(t, BatchStatusPaid, b.Status)
	assert.NotNil(t, b.PaidAt)
}

func TestPaymentBatch_Reject_AtEitherStage(t *testing.T) {
	// pending approval
	b := newPendingBatch(t)
	require.NoError(t, b.Reject(ExternalActor("cfo@example.com"), "Budget freeze"))
	assert.Equal(t, BatchStatusRejected, b.Status)
	assert.Equal(t, "Budget freeze", b.RejectionReason)

	// pending authorization
	b2 := newPendingBatch(t)
	require.NoError(t, b2.Approve(ExternalActor(""), ""))
	require.NoError(t, b2.SubmitForAuthorization(MintApprovalToken(DefaultBatchTokenTTL), "director@example.com"))
	require.NoError(t, b2.Reject(ExternalActor("director@example.com"), "Cash flow"))
	assert.Equal(t, BatchStatusRejected, b2.Status)
	assert.False(t, b2.ApprovalToken.IsPresent())
}

func TestPaymentBatch_Reject_RequiresReason(t *testing.T) {
	b := newPendingBatch(t)

	err := b.Reject(ExternalActor(""), "")

	assert.Error(t, err)
	assert.Equal(t, BatchStatusPendingApproval, b.Status)
}

func TestPaymentBatch_ConfirmPayment_NotAuthorized(t *testing.T) {
	b := newPendingBatch(t)

	err := b.ConfirmPayment(UserActor(uuid.New(), "treasury@example.com"), time.Now())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_STATE")
}

func TestPaymentBatch_CanDelete(t *testing.T) {
	open := newOpenBatch(t)
	assert.NoError(t, open.CanDelete())

	pending := newPendingBatch(t)
	assert.Error(t, pending.CanDelete())

	rejected := newPendingBatch(t)
	require.NoError(t, rejected.Reject(ExternalActor(""), "Budget freeze"))
	assert.NoError(t, rejected.CanDelete())
}
