package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"reflect"
	"sort"

	"github.com/finledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Audit actions recorded against ledger entities
const (
	AuditActionCreated    = "created"
	AuditActionUpdated    = "updated"
	AuditActionDeleted    = "deleted"
	AuditActionSubmitted  = "submitted"
	AuditActionApproved   = "approved"
	AuditActionRejected   = "rejected"
	AuditActionSettled    = "settled"
	AuditActionAuthorized = "authorized"
	AuditActionPaid       = "paid"
	AuditActionGenerated  = "generated"
)

// FieldChange records one field-level difference in an audited mutation
type FieldChange struct {
	Field string `json:"field"`
	From  any    `json:"from,omitempty"`
	To    any    `json:"to,omitempty"`
}

// FieldChangeList is stored as a JSONB column
type FieldChangeList []FieldChange

// Value implements driver.Valuer for JSONB storage
func (l FieldChangeList) Value() (driver.Value, error) {
	if l == nil {
		l = FieldChangeList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB storage
func (l *FieldChangeList) Scan(value interface{}) error {
	if value == nil {
		*l = FieldChangeList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported type for FieldChangeList")
	}
}

// AuditEntry is one record in the append-only audit trail. Entries are
// written alongside mutations and never updated or deleted.
type AuditEntry struct {
	shared.BaseEntity
	CompanyID  uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     string
	ActorID    *uuid.UUID
	ActorEmail string
	Changes    FieldChangeList
	Note       string
}

// NewAuditEntry creates an audit entry for an action on a ledger entity
func NewAuditEntry(companyID uuid.UUID, entityType string, entityID uuid.UUID, action string, actor Actor) *AuditEntry {
	return &AuditEntry{
		BaseEntity: shared.NewBaseEntity(),
		CompanyID:  companyID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		Changes:    FieldChangeList{},
	}
}

// WithChanges attaches a field-level diff to the entry
func (e *AuditEntry) WithChanges(changes FieldChangeList) *AuditEntry {
	e.Changes = changes
	return e
}

// WithNote attaches free-form context, such as a rejection reason
func (e *AuditEntry) WithNote(note string) *AuditEntry {
	e.Note = note
	return e
}

// DiffSnapshots computes the field-level changes between two snapshots of
// the same entity. Fields absent on one side diff against nil. The result
// is sorted by field name so entries are stable.
func DiffSnapshots(before, after map[string]any) FieldChangeList {
	fields := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		fields[k] = struct{}{}
	}
	for k := range after {
		fields[k] = struct{}{}
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	changes := FieldChangeList{}
	for _, name := range names {
		from, to := before[name], after[name]
		if !reflect.DeepEqual(from, to) {
			changes = append(changes, FieldChange{Field: name, From: from, To: to})
		}
	}
	return changes
}
