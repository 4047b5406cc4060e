package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// Get returns the operations dashboard for the caller
// GET /api/dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	var req services.DashboardRequest
	if !bindQuery(c, &req) {
		return
	}
	resp, err := h.dashboardService.Get(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
