package handler

import (
	appledger "github.com/finledger/backend/internal/application/ledger"
	"github.com/gin-gonic/gin"
)

// ApprovalHandler handles the public magic-link surface. These routes carry
// no session: the token in the path is the whole capability, so every
// decision still runs through the same domain validations as the
// authenticated API.
type ApprovalHandler struct {
	BaseHandler
	service *appledger.ApprovalService
}

// NewApprovalHandler creates a new ApprovalHandler
func NewApprovalHandler(service *appledger.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// RegisterRoutes registers the public approval routes
func (h *ApprovalHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/:token", h.GetState)
	r.POST("/:token/approve", h.Approve)
	r.POST("/:token/reject", h.Reject)
	r.POST("/:token/members/:id/reject", h.RejectMember)
	r.POST("/:token/return", h.Return)
}

// GetState shows the magic-link holder what awaits their decision
func (h *ApprovalHandler) GetState(c *gin.Context) {
	state, err := h.service.GetStateByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, state)
}

// Approve consumes the token with a positive verdict
func (h *ApprovalHandler) Approve(c *gin.Context) {
	var req appledger.ApproveByTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	state, err := h.service.ApproveByToken(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, state)
}

// Reject consumes the token with a negative verdict and mandatory reason
func (h *ApprovalHandler) Reject(c *gin.Context) {
	var req appledger.RejectByTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	state, err := h.service.RejectByToken(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, state)
}

// RejectMember removes one member from a batch pending approval. The token
// stays live so the approver can keep deciding on the remaining members.
func (h *ApprovalHandler) RejectMember(c *gin.Context) {
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid transaction ID")
		return
	}

	var req appledger.RejectByTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	state, err := h.service.RejectMemberByToken(c.Request.Context(), c.Param("token"), memberID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, state)
}

// Return sends a batch pending approval back to its manager
func (h *ApprovalHandler) Return(c *gin.Context) {
	var req appledger.ReturnByTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	state, err := h.service.ReturnByToken(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, state)
}
