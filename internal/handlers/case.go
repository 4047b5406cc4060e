package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type CaseHandler struct {
	caseService *services.CaseService
	slaMonitor  *services.SLAMonitor
}

func NewCaseHandler(caseService *services.CaseService, slaMonitor *services.SLAMonitor) *CaseHandler {
	return &CaseHandler{caseService: caseService, slaMonitor: slaMonitor}
}

func (h *CaseHandler) List(c *gin.Context) {
	var req services.CaseListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.caseService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *CaseHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	kase, err := h.caseService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	transitions, err := h.caseService.AvailableTransitions(id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"case": kase, "available_transitions": transitions})
}

func (h *CaseHandler) Create(c *gin.Context) {
	var req services.CaseCreateRequest
	if !bindJSON(c, &req) {
		return
	}
	kase, err := h.caseService.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, kase)
}

func (h *CaseHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CaseUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	kase, err := h.caseService.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, kase)
}

// Transition moves a case. When the move needs sign-off the case stays put
// and 202 carries the approval request.
// POST /api/cases/:id/transition
func (h *CaseHandler) Transition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.TransitionRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.caseService.Transition(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Transitioned {
		c.JSON(http.StatusAccepted, response.Response{Success: true, Message: "approval requested", Data: result})
		return
	}
	response.Success(c, result)
}

func (h *CaseHandler) Assign(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.AssignRequest
	if !bindJSON(c, &req) {
		return
	}
	kase, err := h.caseService.Assign(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, kase)
}

func (h *CaseHandler) Comment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.CommentRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.caseService.Comment(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

func (h *CaseHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.caseService.History(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (h *CaseHandler) Timeline(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.caseService.Timeline(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (h *CaseHandler) Export(c *gin.Context) {
	var req services.CaseListRequest
	if !bindQuery(c, &req) {
		return
	}
	table, err := h.caseService.Export(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendExport(c, table)
}

// RunSLA triggers one SLA sweep immediately.
// POST /api/workflow/sla/run
func (h *CaseHandler) RunSLA(c *gin.Context) {
	result, err := h.slaMonitor.Run(time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
