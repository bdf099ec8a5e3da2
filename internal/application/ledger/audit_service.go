package ledger

import (
	"context"
	"time"

	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/finledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AuditService exposes the read side of the audit trail
type AuditService struct {
	repo ledger.AuditLogRepository
}

// NewAuditService creates a new AuditService
func NewAuditService(repo ledger.AuditLogRepository) *AuditService {
	return &AuditService{repo: repo}
}

// AuditEntryResponse represents an audit entry in API responses
type AuditEntryResponse struct {
	ID         uuid.UUID              `json:"id"`
	CompanyID  uuid.UUID              `json:"company_id"`
	EntityType string                 `json:"entity_type"`
	EntityID   uuid.UUID              `json:"entity_id"`
	Action     string                 `json:"action"`
	ActorID    *uuid.UUID             `json:"actor_id,omitempty"`
	ActorEmail string                 `json:"actor_email"`
	Changes    ledger.FieldChangeList `json:"changes,omitempty"`
	Note       string                 `json:"note,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// AuditListFilter defines filtering options for audit trail queries
type AuditListFilter struct {
	EntityType string     `form:"entity_type"`
	EntityID   *uuid.UUID `form:"entity_id"`
	Action     string     `form:"action"`
	Since      *time.Time `form:"since"`
	Until      *time.Time `form:"until"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

// ListEntries lists audit entries with filtering and pagination
func (s *AuditService) ListEntries(ctx context.Context, companyID uuid.UUID, filter AuditListFilter) (*shared.Paginated[*AuditEntryResponse], error) {
	domainFilter := ledger.AuditFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
		},
		EntityID: filter.EntityID,
		Since:    filter.Since,
		Until:    filter.Until,
	}
	if filter.EntityType != "" {
		domainFilter.EntityType = &filter.EntityType
	}
	if filter.Action != "" {
		domainFilter.Action = &filter.Action
	}

	page, err := s.repo.List(ctx, companyID, domainFilter)
	if err != nil {
		return nil, err
	}

	items := make([]*AuditEntryResponse, len(page.Items))
	for i, entry := range page.Items {
		items[i] = &AuditEntryResponse{
			ID:         entry.GetID(),
			CompanyID:  entry.CompanyID,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Action:     entry.Action,
			ActorID:    entry.ActorID,
			ActorEmail: entry.ActorEmail,
			Changes:    entry.Changes,
			Note:       entry.Note,
			CreatedAt:  entry.GetCreatedAt(),
		}
	}
	return shared.NewPaginated(items, page.Total, page.Page, page.PageSize), nil
}
