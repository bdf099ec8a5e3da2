package handler

import (
	appledger "github.com/finledger/backend/internal/application/ledger"
	"github.com/finledger/backend/internal/domain/ledger"
	"github.com/gin-gonic/gin"
)

// TransactionHandler handles transaction endpoints
type TransactionHandler struct {
	BaseHandler
	service   *appledger.TransactionService
	approvals *appledger.ApprovalService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(service *appledger.TransactionService, approvals *appledger.ApprovalService) *TransactionHandler {
	return &TransactionHandler{service: service, approvals: approvals}
}

// RegisterRoutes registers transaction routes
func (h *TransactionHandler) RegisterRoutes(r *gin.RouterGroup) {
	txns := r.Group("/transactions")
	{
		txns.POST("", h.Create)
		txns.GET("", h.List)
		txns.GET("/:id", h.Get)
		txns.GET("/:id/series", h.GetSeries)
		txns.PUT("/:id", h.Update)
		txns.POST("/:id/submit", h.Submit)
		txns.POST("/:id/settle", h.Settle)
		txns.DELETE("/:id", h.Delete)
	}
}

// Create creates a transaction, or a whole installment series when the
// request asks for more than one installment
func (h *TransactionHandler) Create(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}

	var req appledger.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if userID, err := getUserID(c); err == nil {
		req.CreatedBy = &userID
	}
	req.CreatorEmail = getActor(c).Email

	created, err := h.service.CreateTransaction(c.Request.Context(), companyID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	// a series routes through its first installment only; the approver acts
	// on that token, the siblings stay draft
	if req.SubmitForApproval && len(created) > 0 && created[0].Status == string(ledger.TransactionStatusDraft) {
		submitted, err := h.approvals.SubmitTransaction(c.Request.Context(), companyID, created[0].ID,
			appledger.SubmitTransactionRequest{Actor: getActor(c)})
		if err != nil {
			h.HandleError(c, err)
			return
		}
		created[0] = submitted
	}

	if len(created) == 1 {
		h.Created(c, created[0])
		return
	}
	h.Created(c, created)
}

// Get returns one transaction
func (h *TransactionHandler) Get(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	txn, err := h.service.GetTransaction(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, txn)
}

// List returns transactions matching the filter
func (h *TransactionHandler) List(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}

	var filter appledger.TransactionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.service.ListTransactions(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Paginated(c, page)
}

// GetSeries returns every installment sharing the transaction's group
func (h *TransactionHandler) GetSeries(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	series, err := h.service.GetSeries(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, series)
}

// Update edits a transaction, optionally propagating to its series
func (h *TransactionHandler) Update(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	var req appledger.UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c)

	txn, err := h.service.UpdateTransaction(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, txn)
}

// Submit routes a draft transaction to an external approver
func (h *TransactionHandler) Submit(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	var req appledger.SubmitTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c)

	txn, err := h.approvals.SubmitTransaction(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, txn)
}

// Settle records payment of an approved transaction
func (h *TransactionHandler) Settle(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	var req appledger.SettleTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.Actor = getActor(c)

	txn, err := h.service.SettleTransaction(c.Request.Context(), companyID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, txn)
}

// Delete removes a transaction
func (h *TransactionHandler) Delete(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid company context")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	if err := h.service.DeleteTransaction(c.Request.Context(), companyID, id, getActor(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
