package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuditEntry(t *testing.T) {
	companyID := uuid.New()
	entityID := uuid.New()
	actor := UserActor(uuid.New(), "clerk@example.com")

	entry := NewAuditEntry(companyID, "transaction", entityID, AuditActionApproved, actor).
		WithNote("Approved with override")

	assert.NotEqual(t, uuid.Nil, entry.GetID())
	assert.Equal(t, companyID, entry.CompanyID)
	assert.Equal(t, "transaction", entry.EntityType)
	assert.Equal(t, entityID, entry.EntityID)
	assert.Equal(t, AuditActionApproved, entry.Action)
	assert.Equal(t, "clerk@example.com", entry.ActorEmail)
	assert.Equal(t, "Approved with override", entry.Note)
}

func TestNewAuditEntry_ExternalActor(t *testing.T) {
	entry := NewAuditEntry(uuid.New(), "batch", uuid.New(), AuditActionRejected, ExternalActor(""))

	assert.Nil(t, entry.ActorID)
	assert.Equal(t, ExternalActorEmail, entry.ActorEmail)
}

func TestDiffSnapshots(t *testing.T) {
	before := map[string]any{
		"description": "Office supplies",
		"amount":      "1500",
		"status":      "DRAFT",
	}
	after := map[string]any{
		"description": "Office supplies",
		"amount":      "1200",
		"status":      "PENDING_APPROVAL",
	}

	changes := DiffSnapshots(before, after)

	require.Len(t, changes, 2)
	// sorted by field name
	assert.Equal(t, "amount", changes[0].Field)
	assert.Equal(t, "1500", changes[0].From)
	assert.Equal(t, "1200", changes[0].To)
	assert.Equal(t, "status", changes[1].Field)
}

func TestDiffSnapshots_AddedAndRemovedFields(t *testing.T) {
	before := map[string]any{"batch_id": "abc"}
	after := map[string]any{"final_amount": "990"}

	changes := DiffSnapshots(before, after)

	require.Len(t, changes, 2)
	assert.Equal(t, "batch_id", changes[0].Field)
	assert.Nil(t, changes[0].To)
	assert.Equal(t, "final_amount", changes[1].Field)
	assert.Nil(t, changes[1].From)
}

func TestDiffSnapshots_NoChanges(t *testing.T) {
	snap := map[string]any{"status": "DRAFT"}

	assert.Empty(t, DiffSnapshots(snap, snap))
}
