package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type ApprovalHandler struct {
	approvalService *services.ApprovalService
}

func NewApprovalHandler(approvalService *services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

func (h *ApprovalHandler) List(c *gin.Context) {
	var req services.ApprovalListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.approvalService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

// Mine lists pending requests the caller may decide.
// GET /api/approvals/mine
func (h *ApprovalHandler) Mine(c *gin.Context) {
	var req services.PageRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.approvalService.Mine(middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *ApprovalHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	req, err := h.approvalService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	actor := middleware.Actor(c)
	response.Success(c, gin.H{
		"approval":   req,
		"can_decide": req.Status == models.ApprovalPending && h.approvalService.CanDecide(req, actor) == nil,
	})
}

func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, h.approvalService.Approve)
}

func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, h.approvalService.Reject)
}

func (h *ApprovalHandler) decide(c *gin.Context, fn func(uint, *services.Actor, string) (*models.ApprovalRequest, error)) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.DecisionRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	decided, err := fn(id, middleware.Actor(c), req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, decided)
}
