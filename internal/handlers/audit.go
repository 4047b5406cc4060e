package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) List(c *gin.Context) {
	var req services.AuditListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.auditService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

// Trail returns every change to one entity, oldest first.
// GET /api/audit/:entity_type/:entity_id
func (h *AuditHandler) Trail(c *gin.Context) {
	id, ok := paramID(c, "entity_id")
	if !ok {
		return
	}
	rows, err := h.auditService.Trail(c.Param("entity_type"), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (h *AuditHandler) Export(c *gin.Context) {
	var req services.AuditListRequest
	if !bindQuery(c, &req) {
		return
	}
	table, err := h.auditService.Export(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendExport(c, table)
}
