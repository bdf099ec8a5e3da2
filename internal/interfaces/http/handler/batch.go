package handler

import (
	appledger "github.com/finledger/backend/internal/application/ledger"
	"github.com/gin-gonic/gin"
)

// BatchHandler handles payment batch endpoints
type BatchHandler struct {
	BaseHandler
	service   *appledger.BatchService
	approvals *appledger.ApprovalService
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(service *appledger.BatchService, approvals *appledger.ApprovalService) *BatchHandler {
	return &BatchHandler{service: service, approvals: approvals}
}

// RegisterRoutes registers payment batch routes
func (h *BatchHandler) RegisterRoutes(r *gin.RouterGroup) {
	batches := r.Group("/batches")
	{
		batches.POST("", h.Create)
		batches.GET("", h.List)
		batches.GET("/:id", h.Get)
		batches.POST("/:id/transactions", h.AddTransactions)
		batches.DELETE("/:id/transactions", h.RemoveTransactions)
		batches.POST("/:id/submit", h.Submit)
		batches.POST("/:id/submit-authorization", h.SubmitAuthorization)
		batches.POST("/:id/confirm-payment", h.ConfirmPayment)
		batches.DELETE("/:id", h.Delete)
	}
}

// Create creates an empty payment batch
func (h *BatchHandler) Create(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}

	var req appledger.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if userID, err := getUserID(c); err == nil {
		req.CreatedBy = &userID
	}

	batch, err := h.service.CreateBatch(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// Get returns one payment batch
func (h *BatchHandler) Get(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	batch, err := h.service.GetBatch(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// List returns payment batches matching the filter
func (h *BatchHandler) List(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}

	var filter appledger.BatchListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.service.ListBatches(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// AddTransactions adds draft payables to an open batch
func (h *BatchHandler) AddTransactions(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	var req appledger.BatchMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c)

	batch, err := h.service.AddTransactions(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// RemoveTransactions removes members from an open batch
func (h *BatchHandler) RemoveTransactions(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	var req appledger.BatchMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c)

	batch, err := h.service.RemoveTransactions(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Submit routes an open batch to its stage-one approver
func (h *BatchHandler) Submit(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	var req appledger.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c)

	batch, err := h.approvals.SubmitBatch(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// SubmitAuthorization routes an approved batch to its payment authorizer
func (h *BatchHandler) SubmitAuthorization(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	var req appledger.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c)

	batch, err := h.approvals.SubmitBatchForAuthorization(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// ConfirmPayment marks an authorized batch paid, settling every member
func (h *BatchHandler) ConfirmPayment(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	var req appledger.ConfirmBatchPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c)

	batch, err := h.service.ConfirmPayment(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// Delete removes an open or rejected batch
func (h *BatchHandler) Delete(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid batch ID")
		return
	}

	if err := h.service.DeleteBatch(c.Request.Context(), companyID, id, getActor(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
