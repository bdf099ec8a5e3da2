package handler

import (
	appledger "github.com/finledger/backend/internal/application/ledger"
	"github.com/gin-gonic/gin"
)

// AuditHandler handles audit trail endpoints
type AuditHandler struct {
	BaseHandler
	service *appledger.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service *appledger.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// RegisterRoutes registers audit trail routes
func (h *AuditHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit-logs", h.List)
}

// List returns audit entries matching the filter, newest first
func (h *AuditHandler) List(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}

	var filter appledger.AuditListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.service.ListEntries(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}
