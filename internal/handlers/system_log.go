package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(systemLogService *services.SystemLogService) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: systemLogService}
}

func (h *SystemLogHandler) List(c *gin.Context) {
	var req services.SystemLogListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.systemLogService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *SystemLogHandler) GetModules(c *gin.Context) {
	modules, err := h.systemLogService.GetModules()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"modules": modules})
}

type retentionRequest struct {
	Days int `json:"days" binding:"min=0,max=3650"`
}

func (h *SystemLogHandler) GetRetention(c *gin.Context) {
	response.Success(c, gin.H{"days": h.systemLogService.GetRetentionDays()})
}

// SetRetention sets how many days of logs the nightly sweep keeps; 0 keeps
// everything.
func (h *SystemLogHandler) SetRetention(c *gin.Context) {
	var req retentionRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.systemLogService.SetRetentionDays(req.Days); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"days": req.Days})
}
