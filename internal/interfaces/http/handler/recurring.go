package handler

import (
	appledger "github.com/finledger/backend/internal/application/ledger"
	"github.com/gin-gonic/gin"
)

// RecurringHandler handles recurring template endpoints
type RecurringHandler struct {
	BaseHandler
	service *appledger.RecurrenceService
}

// NewRecurringHandler creates a new RecurringHandler
func NewRecurringHandler(service *appledger.RecurrenceService) *RecurringHandler {
	return &RecurringHandler{service: service}
}

// RegisterRoutes registers recurring template routes
func (h *RecurringHandler) RegisterRoutes(r *gin.RouterGroup) {
	recurring := r.Group("/recurring")
	{
		recurring.POST("", h.Create)
		recurring.GET("", h.List)
		recurring.GET("/:id", h.Get)
		recurring.PUT("/:id", h.Update)
		recurring.DELETE("/:id", h.Delete)
		// manual trigger of the generation sweep, same path the scheduler
		// takes internally
		recurring.POST("/sweep", h.Sweep)
	}
}

// Create creates a recurring template
func (h *RecurringHandler) Create(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}

	var req appledger.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if userID, err := getUserID(c); err == nil {
		req.CreatedBy = &userID
	}

	tmpl, err := h.service.CreateTemplate(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, tmpl)
}

// Get returns one recurring template
func (h *RecurringHandler) Get(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	tmpl, err := h.service.GetTemplate(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tmpl)
}

// List returns recurring templates matching the filter
func (h *RecurringHandler) List(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}

	var filter appledger.TemplateListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.service.ListTemplates(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// Update edits a recurring template, affecting future generations only
func (h *RecurringHandler) Update(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	var req appledger.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c)

	tmpl, err := h.service.UpdateTemplate(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tmpl)
}

// Delete deactivates a recurring template
func (h *RecurringHandler) Delete(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid template ID")
		return
	}

	if err := h.service.DeleteTemplate(c.Request.Context(), companyID, id, getActor(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Sweep runs the recurrence generation sweep across all companies
func (h *RecurringHandler) Sweep(c *gin.Context) {
	result, err := h.service.RunSweep(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
