package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

// SalesHandler serves estimations, quotations and sales orders.
type SalesHandler struct {
	estimations *services.EstimationService
	quotations  *services.QuotationService
	orders      *services.SalesOrderService
}

func NewSalesHandler(estimations *services.EstimationService, quotations *services.QuotationService, orders *services.SalesOrderService) *SalesHandler {
	return &SalesHandler{estimations: estimations, quotations: quotations, orders: orders}
}

func (h *SalesHandler) ListEstimations(c *gin.Context) {
	var req services.EstimationListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.estimations.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *SalesHandler) GetEstimation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	est, err := h.estimations.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, est)
}

func (h *SalesHandler) CreateEstimation(c *gin.Context) {
	var req services.EstimationRequest
	if !bindJSON(c, &req) {
		return
	}
	est, err := h.estimations.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, est)
}

func (h *SalesHandler) UpdateEstimation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.EstimationRequest
	if !bindJSON(c, &req) {
		return
	}
	est, err := h.estimations.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, est)
}

func (h *SalesHandler) SubmitEstimation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	approval, err := h.estimations.Submit(id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, approval)
}

func (h *SalesHandler) DeleteEstimation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.estimations.Delete(id, middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "estimation deleted")
}

func (h *SalesHandler) ListQuotations(c *gin.Context) {
	var req services.QuotationListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.quotations.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *SalesHandler) GetQuotation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	q, err := h.quotations.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"quotation": q, "discount_percent": services.DiscountPercent(q)})
}

func (h *SalesHandler) CreateQuotation(c *gin.Context) {
	var req services.QuotationRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.quotations.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, q)
}

// QuoteEstimation copies an approved estimation into a draft quotation.
// POST /api/estimations/:id/quotation
func (h *SalesHandler) QuoteEstimation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.QuotationFromEstimationRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.quotations.CreateFromEstimation(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, q)
}

func (h *SalesHandler) UpdateQuotation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.QuotationRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.quotations.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, q)
}

// SendQuotation sends a quotation to the client, or opens an approval when
// the discount is above the threshold.
func (h *SalesHandler) SendQuotation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	result, err := h.quotations.Send(id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

func (h *SalesHandler) AcceptQuotation(c *gin.Context) {
	h.quotationDecision(c, h.quotations.Accept)
}

func (h *SalesHandler) RejectQuotation(c *gin.Context) {
	h.quotationDecision(c, h.quotations.Reject)
}

func (h *SalesHandler) quotationDecision(c *gin.Context, fn func(uint, *services.Actor) (*models.Quotation, error)) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	q, err := fn(id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, q)
}

func (h *SalesHandler) ListOrders(c *gin.Context) {
	var req services.SalesOrderListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.orders.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *SalesHandler) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	so, err := h.orders.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, so)
}

func (h *SalesHandler) CreateOrder(c *gin.Context) {
	var req services.SalesOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	so, err := h.orders.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, so)
}

func (h *SalesHandler) ConfirmOrder(c *gin.Context) {
	h.moveOrder(c, h.orders.Confirm)
}

func (h *SalesHandler) CompleteOrder(c *gin.Context) {
	h.moveOrder(c, h.orders.Complete)
}

func (h *SalesHandler) CancelOrder(c *gin.Context) {
	h.moveOrder(c, h.orders.Cancel)
}

func (h *SalesHandler) moveOrder(c *gin.Context, fn func(uint, *services.Actor) (*models.SalesOrder, error)) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	so, err := fn(id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, so)
}
