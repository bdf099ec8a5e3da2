package models

import (
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionModel is the persistence model for the Transaction aggregate root.
type TransactionModel struct {
	CompanyAggregateModel
	Type         ledger.TransactionType `gorm:"type:varchar(20);not null;index"`
	Description  string                 `gorm:"type:varchar(500);not null"`
	SupplierName string                 `gorm:"type:varchar(200)"`
	Notes        string                 `gorm:"type:text"`

	Amount              decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	OriginalAmount      *decimal.Decimal `gorm:"type:decimal(18,2)"`
	FinalAmount         *decimal.Decimal `gorm:"type:decimal(18,2)"`
	Discount            decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	Interest            decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	BatchAdjustedAmount *decimal.Decimal `gorm:"type:decimal(18,2)"`

	Status      ledger.TransactionStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	DueDate     time.Time                `gorm:"not null;index"`
	PaymentDate *time.Time

	Allocations ledger.AllocationList `gorm:"type:jsonb;default:'[]'"`

	BatchID *uuid.UUID `gorm:"type:uuid;index"`

	InstallmentNumber  *int
	InstallmentTotal   *int
	InstallmentGroupID *uuid.UUID `gorm:"type:uuid;index"`

	ApprovalToken          string `gorm:"type:varchar(64);index"`
	ApprovalTokenExpiresAt *time.Time
	SubmittedByEmail       string `gorm:"type:varchar(255)"`

	ApprovedBy      *uuid.UUID `gorm:"type:uuid"`
	ApprovedByEmail string     `gorm:"type:varchar(255)"`
	ApprovedAt      *time.Time
	ReleasedBy      *uuid.UUID `gorm:"type:uuid"`
	ReleasedByEmail string     `gorm:"type:varchar(255)"`
	ReleasedAt      *time.Time
	RejectedBy      *uuid.UUID `gorm:"type:uuid"`
	RejectedByEmail string     `gorm:"type:varchar(255)"`
	RejectedAt      *time.Time
	RejectionReason string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "transactions"
}

// ToDomain converts the persistence model to a domain Transaction entity.
func (m *TransactionModel) ToDomain() *ledger.Transaction {
	t := &ledger.Transaction{
		CompanyAggregateRoot: m.ToDomainCompanyAggregateRoot(),
		Type:                 m.Type,
		Description:          m.Description,
		SupplierName:         m.SupplierName,
		Notes:                m.Notes,
		Amount:               m.Amount,
		OriginalAmount:       m.OriginalAmount,
		FinalAmount:          m.FinalAmount,
		Discount:             m.Discount,
		Interest:             m.Interest,
		Status:               m.Status,
		DueDate:              m.DueDate,
		PaymentDate:          m.PaymentDate,
		Allocations:          m.Allocations,
		BatchID:              m.BatchID,
		BatchAdjustedAmount:  m.BatchAdjustedAmount,
		ApprovalToken: ledger.ApprovalToken{
			Value:     m.ApprovalToken,
			ExpiresAt: m.ApprovalTokenExpiresAt,
		},
		SubmittedByEmail: m.SubmittedByEmail,
		ApprovedBy:       m.ApprovedBy,
		ApprovedByEmail:  m.ApprovedByEmail,
		ApprovedAt:       m.ApprovedAt,
		ReleasedBy:       m.ReleasedBy,
		ReleasedByEmail:  m.ReleasedByEmail,
		ReleasedAt:       m.ReleasedAt,
		RejectedBy:       m.RejectedBy,
		RejectedByEmail:  m.RejectedByEmail,
		RejectedAt:       m.RejectedAt,
		RejectionReason:  m.RejectionReason,
	}
	if m.InstallmentGroupID != nil && m.InstallmentNumber != nil && m.InstallmentTotal != nil {
		t.Installment = &ledger.InstallmentInfo{
			Number:  *m.InstallmentNumber,
			Total:   *m.InstallmentTotal,
			GroupID: *m.InstallmentGroupID,
		}
	}
	return t
}

// FromDomain populates the persistence model from a domain Transaction entity.
func (m *TransactionModel) FromDomain(t *ledger.Transaction) {
	m.FromDomainCompanyAggregateRoot(t.CompanyAggregateRoot)
	m.Type = t.Type
	m.Description = t.Description
	m.SupplierName = t.SupplierName
	m.Notes = t.Notes
	m.Amount = t.Amount
	m.OriginalAmount = t.OriginalAmount
	m.FinalAmount = t.FinalAmount
	m.Discount = t.Discount
	m.Interest = t.Interest
	m.Status = t.Status
	m.DueDate = t.DueDate
	m.PaymentDate = t.PaymentDate
	m.Allocations = t.Allocations
	m.BatchID = t.BatchID
	m.BatchAdjustedAmount = t.BatchAdjustedAmount
	m.ApprovalToken = t.ApprovalToken.Value
	m.ApprovalTokenExpiresAt = t.ApprovalToken.ExpiresAt
	m.SubmittedByEmail = t.SubmittedByEmail
	m.ApprovedBy = t.ApprovedBy
	m.ApprovedByEmail = t.ApprovedByEmail
	m.ApprovedAt = t.ApprovedAt
	m.ReleasedBy = t.ReleasedBy
	m.ReleasedByEmail = t.ReleasedByEmail
	m.ReleasedAt = t.ReleasedAt
	m.RejectedBy = t.RejectedBy
	m.RejectedByEmail = t.RejectedByEmail
	m.RejectedAt = t.RejectedAt
	m.RejectionReason = t.RejectionReason
	if t.Installment != nil {
		number, total, groupID := t.Installment.Number, t.Installment.Total, t.Installment.GroupID
		m.InstallmentNumber = &number
		m.InstallmentTotal = &total
		m.InstallmentGroupID = &groupID
	} else {
		m.InstallmentNumber = nil
		m.InstallmentTotal = nil
		m.InstallmentGroupID = nil
	}
}

// TransactionModelFromDomain creates a new persistence model from a domain Transaction.
func TransactionModelFromDomain(t *ledger.Transaction) *TransactionModel {
	m := &TransactionModel{}
	m.FromDomain(t)
	return m
}

// PaymentBatchModel is the persistence model for the PaymentBatch aggregate root.
type PaymentBatchModel struct {
	CompanyAggregateModel
	Name   string             `gorm:"type:varchar(200);not null"`
	Status ledger.BatchStatus `gorm:"type:varchar(30);not null;default:'OPEN';index"`

	TransactionIDs  ledger.UUIDList           `gorm:"type:jsonb;default:'[]'"`
	RejectedMembers ledger.RejectedMemberList `gorm:"type:jsonb;default:'[]'"`
	TotalAmount     decimal.Decimal           `gorm:"type:decimal(18,2);not null;default:0"`

	ScheduledPaymentDate *time.Time

	ApproverEmail          string `gorm:"type:varchar(255)"`
	AuthorizerEmail        string `gorm:"type:varchar(255)"`
	SubmittedByEmail       string `gorm:"type:varchar(255)"`
	SentForApprovalAt      *time.Time
	SentForAuthorizationAt *time.Time
	ApprovalToken          string `gorm:"type:varchar(64);index"`
	ApprovalTokenExpiresAt *time.Time

	ApprovedBy        *uuid.UUID `gorm:"type:uuid"`
	ApprovedByEmail   string     `gorm:"type:varchar(255)"`
	ApprovedAt        *time.Time
	ApproverComment   string     `gorm:"type:text"`
	AuthorizedBy      *uuid.UUID `gorm:"type:uuid"`
	AuthorizedByEmail string     `gorm:"type:varchar(255)"`
	AuthorizedAt      *time.Time
	PaidBy            *uuid.UUID `gorm:"type:uuid"`
	PaidByEmail       string     `gorm:"type:varchar(255)"`
	PaidAt            *time.Time
	RejectedBy        *uuid.UUID `gorm:"type:uuid"`
	RejectedByEmail   string     `gorm:"type:varchar(255)"`
	RejectedAt        *time.Time
	RejectionReason   string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentBatchModel) TableName() string {
	return "payment_batches"
}

// ToDomain converts the persistence model to a domain PaymentBatch entity.
func (m *PaymentBatchModel) ToDomain() *ledger.PaymentBatch {
	return &ledger.PaymentBatch{
		CompanyAggregateRoot:   m.ToDomainCompanyAggregateRoot(),
		Name:                   m.Name,
		Status:                 m.Status,
		TransactionIDs:         m.TransactionIDs,
		RejectedMembers:        m.RejectedMembers,
		TotalAmount:            m.TotalAmount,
		ScheduledPaymentDate:   m.ScheduledPaymentDate,
		ApproverEmail:          m.ApproverEmail,
		AuthorizerEmail:        m.AuthorizerEmail,
		SubmittedByEmail:       m.SubmittedByEmail,
		SentForApprovalAt:      m.SentForApprovalAt,
		SentForAuthorizationAt: m.SentForAuthorizationAt,
		ApprovalToken: ledger.ApprovalToken{
			Value:     m.ApprovalToken,
			ExpiresAt: m.ApprovalTokenExpiresAt,
		},
		ApprovedBy:        m.ApprovedBy,
		ApprovedByEmail:   m.ApprovedByEmail,
		ApprovedAt:        m.ApprovedAt,
		ApproverComment:   m.ApproverComment,
		AuthorizedBy:      m.AuthorizedBy,
		AuthorizedByEmail: m.AuthorizedByEmail,
		AuthorizedAt:      m.AuthorizedAt,
		PaidBy:            m.PaidBy,
		PaidByEmail:       m.PaidByEmail,
		PaidAt:            m.PaidAt,
		RejectedBy:        m.RejectedBy,
		RejectedByEmail:   m.RejectedByEmail,
		RejectedAt:        m.RejectedAt,
		RejectionReason:   m.RejectionReason,
	}
}

// FromDomain populates the persistence model from a domain PaymentBatch entity.
func (m *PaymentBatchModel) FromDomain(b *ledger.PaymentBatch) {
	m.FromDomainCompanyAggregateRoot(b.CompanyAggregateRoot)
	m.Name = b.Name
	m.Status = b.Status
	m.TransactionIDs = b.TransactionIDs
	m.RejectedMembers = b.RejectedMembers
	m.TotalAmount = b.TotalAmount
	m.ScheduledPaymentDate = b.ScheduledPaymentDate
	m.ApproverEmail = b.ApproverEmail
	m.AuthorizerEmail = b.AuthorizerEmail
	m.SubmittedByEmail = b.SubmittedByEmail
	m.SentForApprovalAt = b.SentForApprovalAt
	m.SentForAuthorizationAt = b.SentForAuthorizationAt
	m.ApprovalToken = b.ApprovalToken.Value
	m.ApprovalTokenExpiresAt = b.ApprovalToken.ExpiresAt
	m.ApprovedBy = b.ApprovedBy
	m.ApprovedByEmail = b.ApprovedByEmail
	m.ApprovedAt = b.ApprovedAt
	m.ApproverComment = b.ApproverComment
	m.AuthorizedBy = b.AuthorizedBy
	m.AuthorizedByEmail = b.AuthorizedByEmail
	m.AuthorizedAt = b.AuthorizedAt
	m.PaidBy = b.PaidBy
	m.PaidByEmail = b.PaidByEmail
	m.PaidAt = b.PaidAt
	m.RejectedBy = b.RejectedBy
	m.RejectedByEmail = b.RejectedByEmail
	m.RejectedAt = b.RejectedAt
	m.RejectionReason = b.RejectionReason
}

// PaymentBatchModelFromDomain creates a new persistence model from a domain PaymentBatch.
func PaymentBatchModelFromDomain(b *ledger.PaymentBatch) *PaymentBatchModel {
	m := &PaymentBatchModel{}
	m.FromDomain(b)
	return m
}

// RecurringTemplateModel is the persistence model for the RecurringTemplate aggregate root.
type RecurringTemplateModel struct {
	CompanyAggregateModel
	Type         ledger.TransactionType `gorm:"type:varchar(20);not null"`
	Description  string                 `gorm:"type:varchar(500);not null"`
	SupplierName string                 `gorm:"type:varchar(200)"`
	Notes        string                 `gorm:"type:text"`
	Amount       decimal.Decimal        `gorm:"type:decimal(18,2);not null"`
	Allocations  ledger.AllocationList  `gorm:"type:jsonb;default:'[]'"`

	Frequency   ledger.RecurrenceFrequency `gorm:"type:varchar(10);not null"`
	Interval    int                        `gorm:"not null;default:1"`
	NextDueDate time.Time                  `gorm:"not null;index"`
	AnchorDay   int                        `gorm:"not null"`
	EndDate     *time.Time
	// no column default: gorm skips zero-value fields on insert when a
	// default is declared, which would resurrect deactivated templates
	Active bool `gorm:"not null;index"`

	LastGeneratedAt *time.Time
	GeneratedCount  int `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (RecurringTemplateModel) TableName() string {
	return "recurring_templates"
}

// ToDomain converts the persistence model to a domain RecurringTemplate entity.
func (m *RecurringTemplateModel) ToDomain() *ledger.RecurringTemplate {
	return &ledger.RecurringTemplate{
		CompanyAggregateRoot: m.ToDomainCompanyAggregateRoot(),
		Type:                 m.Type,
		Description:          m.Description,
		SupplierName:         m.SupplierName,
		Notes:                m.Notes,
		Amount:               m.Amount,
		Allocations:          m.Allocations,
		Frequency:            m.Frequency,
		Interval:             m.Interval,
		NextDueDate:          m.NextDueDate,
		AnchorDay:            m.AnchorDay,
		EndDate:              m.EndDate,
		Active:               m.Active,
		LastGeneratedAt:      m.LastGeneratedAt,
		GeneratedCount:       m.GeneratedCount,
	}
}

// FromDomain populates the persistence model from a domain RecurringTemplate entity.
func (m *RecurringTemplateModel) FromDomain(r *ledger.RecurringTemplate) {
	m.FromDomainCompanyAggregateRoot(r.CompanyAggregateRoot)
	m.Type = r.Type
	m.Description = r.Description
	m.SupplierName = r.SupplierName
	m.Notes = r.Notes
	m.Amount = r.Amount
	m.Allocations = r.Allocations
	m.Frequency = r.Frequency
	m.Interval = r.Interval
	m.NextDueDate = r.NextDueDate
	m.AnchorDay = r.AnchorDay
	m.EndDate = r.EndDate
	m.Active = r.Active
	m.LastGeneratedAt = r.LastGeneratedAt
	m.GeneratedCount = r.GeneratedCount
}

// RecurringTemplateModelFromDomain creates a new persistence model from a domain RecurringTemplate.
func RecurringTemplateModelFromDomain(r *ledger.RecurringTemplate) *RecurringTemplateModel {
	m := &RecurringTemplateModel{}
	m.FromDomain(r)
	return m
}

// AuditLogModel is the persistence model for audit trail entries. The table
// is append-only; rows are never updated or deleted.
type AuditLogModel struct {
	BaseModel
	CompanyID  uuid.UUID              `gorm:"type:uuid;not null;index"`
	EntityType string                 `gorm:"type:varchar(30);not null;index"`
	EntityID   uuid.UUID              `gorm:"type:uuid;not null;index"`
	Action     string                 `gorm:"type:varchar(20);not null;index"`
	ActorID    *uuid.UUID             `gorm:"type:uuid"`
	ActorEmail string                 `gorm:"type:varchar(255)"`
	Changes    ledger.FieldChangeList `gorm:"type:jsonb;default:'[]'"`
	Note       string                 `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditEntry.
func (m *AuditLogModel) ToDomain() *ledger.AuditEntry {
	return &ledger.AuditEntry{
		BaseEntity: m.BaseModel.ToDomain(),
		CompanyID:  m.CompanyID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     m.Action,
		ActorID:    m.ActorID,
		ActorEmail: m.ActorEmail,
		Changes:    m.Changes,
		Note:       m.Note,
	}
}

// AuditLogModelFromDomain creates a new persistence model from a domain AuditEntry.
func AuditLogModelFromDomain(e *ledger.AuditEntry) *AuditLogModel {
	m := &AuditLogModel{
		CompanyID:  e.CompanyID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		ActorID:    e.ActorID,
		ActorEmail: e.ActorEmail,
		Changes:    e.Changes,
		Note:       e.Note,
	}
	m.FromDomainBaseEntity(e.BaseEntity)
	return m
}
