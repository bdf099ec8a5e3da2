package ledger

import (
	"context"

	"github.com/finledger/backend/internal/domain/ledger"
	"go.uber.org/zap"
)

// AuditRecorder writes entries to the audit trail on a best-effort basis.
// A failed write is logged and swallowed so audit problems never fail the
// business operation they describe.
type AuditRecorder struct {
	repo   ledger.AuditLogRepository
	logger *zap.Logger
}

// NewAuditRecorder creates a new AuditRecorder
func NewAuditRecorder(repo ledger.AuditLogRepository, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{repo: repo, logger: logger}
}

// Record appends an audit entry, logging instead of failing on error
func (r *AuditRecorder) Record(ctx context.Context, entry *ledger.AuditEntry) {
	if err := r.repo.Append(ctx, entry); err != nil {
		r.logger.Warn("audit entry not recorded",
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID.String()),
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}
