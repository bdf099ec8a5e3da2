package ledger

import (
	"context"
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RecurrenceService manages recurring templates and runs the generation
// sweep.
type RecurrenceService struct {
	tmplRepo    ledger.RecurringTemplateRepository
	costCenters CostCenterDirectory
	audit       *AuditRecorder
	logger      *zap.Logger
	sweepLock   SweepLock
	now         func() time.Time
}

// NewRecurrenceService creates a new RecurrenceService
func NewRecurrenceService(
	tmplRepo ledger.RecurringTemplateRepository,
	costCenters CostCenterDirectory,
	audit *AuditRecorder,
	logger *zap.Logger,
	sweepLock SweepLock,
) *RecurrenceService {
	return &RecurrenceService{
		tmplRepo:    tmplRepo,
		costCenters: costCenters,
		audit:       audit,
		logger:      logger,
		sweepLock:   sweepLock,
		now:         time.Now,
	}
}

// WithClock overrides the service clock, used by tests
func (s *RecurrenceService) WithClock(now func() time.Time) *RecurrenceService {
	s.now = now
	return s
}

// CreateTemplateRequest represents a request to create a recurring template
type CreateTemplateRequest struct {
	Type         string            `json:"type" binding:"required,oneof=PAYABLE RECEIVABLE"`
	Description  string            `json:"description" binding:"required"`
	SupplierName string            `json:"supplier_name"`
	Notes        string            `json:"notes"`
	Amount       decimal.Decimal   `json:"amount" binding:"required"`
	Allocations  []AllocationInput `json:"allocations" binding:"required,min=1,dive"`
	Frequency    string            `json:"frequency" binding:"required,oneof=DAILY WEEKLY MONTHLY YEARLY"`
	Interval     int               `json:"interval" binding:"required,min=1"`
	FirstDueDate time.Time         `json:"first_due_date" binding:"required"`
	EndDate      *time.Time        `json:"end_date"`
	CreatedBy    *uuid.UUID        `json:"-"` // Set from JWT context, not from request body
}

// UpdateTemplateRequest represents a request to update a recurring template
type UpdateTemplateRequest struct {
	Description  *string           `json:"description"`
	SupplierName *string           `json:"supplier_name"`
	Notes        *string           `json:"notes"`
	Amount       *decimal.Decimal  `json:"amount"`
	Allocations  []AllocationInput `json:"allocations"`
	EndDate      *time.Time        `json:"end_date"`
	Actor        ledger.Actor      `json:"-"`
}

// TemplateResponse represents a recurring template in API responses
type TemplateResponse struct {
	ID              uuid.UUID             `json:"id"`
	CompanyID       uuid.UUID             `json:"company_id"`
	Type            string                `json:"type"`
	Description     string                `json:"description"`
	SupplierName    string                `json:"supplier_name,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	Amount          decimal.Decimal       `json:"amount"`
	Allocations     ledger.AllocationList `json:"allocations"`
	Frequency       string                `json:"frequency"`
	Interval        int                   `json:"interval"`
	NextDueDate     time.Time             `json:"next_due_date"`
	EndDate         *time.Time            `json:"end_date,omitempty"`
	Active          bool                  `json:"active"`
	LastGeneratedAt *time.Time            `json:"last_generated_at,omitempty"`
	GeneratedCount  int                   `json:"generated_count"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Version         int                   `json:"version"`
}

// TemplateListFilter defines filtering options for template list queries
type TemplateListFilter struct {
	Search   string `form:"search"`
	Active   *bool  `form:"active"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// SweepResult summarizes one recurrence sweep
type SweepResult struct {
	Generated   int  `json:"generated"`
	Deactivated int  `json:"deactivated"`
	Failed      int  `json:"failed"`
	Skipped     bool `json:"skipped"` // another instance held the sweep lock
}

// CreateTemplate creates a recurring template. A template that is already
// due generates its first transaction immediately rather than waiting for
// the next sweep.
func (s *RecurrenceService) CreateTemplate(ctx context.Context, companyID uuid.UUID, req CreateTemplateRequest) (*TemplateResponse, error) {
	allocations := toAllocationList(req.Allocations)
	for _, ccID := range allocations.CostCenterIDs() {
		info, err := s.costCenters.Resolve(ctx, companyID, ccID)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, shared.NewDomainError("VALIDATION_FAILED", "Allocation references an unknown cost center")
		}
	}

	createdBy := uuid.Nil
	if req.CreatedBy != nil {
		createdBy = *req.CreatedBy
	}

	tmpl, err := ledger.NewRecurringTemplate(
		companyID,
		ledger.TransactionType(req.Type),
		req.Description,
		req.Amount,
		allocations,
		ledger.RecurrenceFrequency(req.Frequency),
		req.Interval,
		req.FirstDueDate,
		req.EndDate,
		createdBy,
	)
	if err != nil {
		return nil, err
	}
	tmpl.SupplierName = req.SupplierName
	tmpl.Notes = req.Notes

	if err := s.tmplRepo.Save(ctx, tmpl); err != nil {
		return nil, err
	}

	actor := ledger.Actor{ID: req.CreatedBy}
	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "recurring_template", tmpl.GetID(), ledger.AuditActionCreated, actor))

	if tmpl.IsDue(s.now()) {
		if err := s.sweepTemplate(ctx, tmpl); err != nil {
			s.logger.Warn("initial generation after template creation failed",
				zap.String("template_id", tmpl.GetID().String()),
				zap.Error(err))
		}
	}

	return toTemplateResponse(tmpl), nil
}

// GetTemplate gets a recurring template by ID
func (s *RecurrenceService) GetTemplate(ctx context.Context, companyID, id uuid.UUID) (*TemplateResponse, error) {
	tmpl, err := s.findTemplate(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return toTemplateResponse(tmpl), nil
}

// ListTemplates lists recurring templates with filtering and pagination
func (s *RecurrenceService) ListTemplates(ctx context.Context, companyID uuid.UUID, filter TemplateListFilter) (*shared.Paginated[*TemplateResponse], error) {
	domainFilter := ledger.RecurringTemplateFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			Search:   filter.Search,
		},
		Active: filter.Active,
	}

	page, err := s.tmplRepo.List(ctx, companyID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]*TemplateResponse, len(page.Items))
	for i, tmpl := range page.Items {
		items[i] = toTemplateResponse(tmpl)
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}

// UpdateTemplate updates template fields, affecting future generations only
func (s *RecurrenceService) UpdateTemplate(ctx context.Context, companyID, id uuid.UUID, req UpdateTemplateRequest) (*TemplateResponse, error) {
	tmpl, err := s.findTemplate(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	update := ledger.RecurringTemplateUpdate{
		Description:  req.Description,
		SupplierName: req.SupplierName,
		Notes:        req.Notes,
		Amount:       req.Amount,
		EndDate:      req.EndDate,
	}
	if req.Allocations != nil {
		update.Allocations = toAllocationList(req.Allocations)
	}
	if err := tmpl.ApplyUpdate(update); err != nil {
		return nil, err
	}
	if err := s.tmplRepo.SaveWithLock(ctx, tmpl); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "recurring_template", tmpl.GetID(), ledger.AuditActionUpdated, req.Actor))

	return toTemplateResponse(tmpl), nil
}

// DeleteTemplate soft-deletes a template by deactivating it
func (s *RecurrenceService) DeleteTemplate(ctx context.Context, companyID, id uuid.UUID, actor ledger.Actor) error {
	tmpl, err := s.findTemplate(ctx, companyID, id)
	if err != nil {
		return err
	}

	tmpl.Deactivate()
	if err := s.tmplRepo.SaveWithLock(ctx, tmpl); err != nil {
		return err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(companyID, "recurring_template", id, ledger.AuditActionDeleted, actor))

	return nil
}

// RunSweep generates at most one transaction per due template. A failure
// on one template is logged and counted, never aborting the rest of the
// sweep; the lock keeps concurrent instances from double-generating.
func (s *RecurrenceService) RunSweep(ctx context.Context) (*SweepResult, error) {
	release, ok, err := s.sweepLock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &SweepResult{Skipped: true}, nil
	}
	defer release()

	now := s.now()
	due, err := s.tmplRepo.FindDue(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, tmpl := range due {
		if tmpl.HasEnded(now) {
			tmpl.Deactivate()
			if err := s.tmplRepo.SaveWithLock(ctx, tmpl); err != nil {
				s.logger.Error("deactivating ended template failed",
					zap.String("template_id", tmpl.GetID().String()),
					zap.Error(err))
				result.Failed++
				continue
			}
			result.Deactivated++
			continue
		}

		if err := s.sweepTemplate(ctx, tmpl); err != nil {
			s.logger.Error("template generation failed",
				zap.String("template_id", tmpl.GetID().String()),
				zap.String("company_id", tmpl.CompanyID.String()),
				zap.Error(err))
			result.Failed++
			continue
		}
		result.Generated++
	}

	s.logger.Info("recurrence sweep finished",
		zap.Int("generated", result.Generated),
		zap.Int("deactivated", result.Deactivated),
		zap.Int("failed", result.Failed))

	return result, nil
}

// sweepTemplate generates one transaction and advances the template in one
// commit.
func (s *RecurrenceService) sweepTemplate(ctx context.Context, tmpl *ledger.RecurringTemplate) error {
	createdBy := uuid.Nil
	if tmpl.GetCreatedBy() != nil {
		createdBy = *tmpl.GetCreatedBy()
	}

	txn, err := tmpl.GenerateTransaction(s.now(), createdBy)
	if err != nil {
		return err
	}
	if err := s.tmplRepo.SaveWithGenerated(ctx, tmpl, txn); err != nil {
		return err
	}

	s.audit.Record(ctx, ledger.
		NewAuditEntry(tmpl.CompanyID, "transaction", txn.GetID(), ledger.AuditActionGenerated, ledger.Actor{}).
		WithNote("Generated from recurring template "+tmpl.GetID().String()))

	return nil
}

func (s *RecurrenceService) findTemplate(ctx context.Context, companyID, id uuid.UUID) (*ledger.RecurringTemplate, error) {
	tmpl, err := s.tmplRepo.FindByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Recurring template not found")
	}
	return tmpl, nil
}

func toTemplateResponse(tmpl *ledger.RecurringTemplate) *TemplateResponse {
	return &TemplateResponse{
		ID:              tmpl.GetID(),
		CompanyID:       tmpl.CompanyID,
		Type:            tmpl.Type.String(),
		Description:     tmpl.Description,
		SupplierName:    tmpl.SupplierName,
		Notes:           tmpl.Notes,
		Amount:          tmpl.Amount,
		Allocations:     tmpl.Allocations,
		Frequency:       tmpl.Frequency.String(),
		Interval:        tmpl.Interval,
		NextDueDate:     tmpl.NextDueDate,
		EndDate:         tmpl.EndDate,
		Active:          tmpl.Active,
		LastGeneratedAt: tmpl.LastGeneratedAt,
		GeneratedCount:  tmpl.GeneratedCount,
		CreatedAt:       tmpl.GetCreatedAt(),
		UpdatedAt:       tmpl.GetUpdatedAt(),
		Version:         tmpl.GetVersion(),
	}
}
