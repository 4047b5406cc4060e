package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

// PurchaseHandler serves vendors, requisitions, purchase orders and goods
// receipts.
type PurchaseHandler struct {
	vendors      *services.VendorService
	requisitions *services.RequisitionService
	orders       *services.PurchaseOrderService
	receipts     *services.GRNService
}

func NewPurchaseHandler(vendors *services.VendorService, requisitions *services.RequisitionService,
	orders *services.PurchaseOrderService, receipts *services.GRNService) *PurchaseHandler {
	return &PurchaseHandler{vendors: vendors, requisitions: requisitions, orders: orders, receipts: receipts}
}

func (h *PurchaseHandler) ListVendors(c *gin.Context) {
	var req services.VendorListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.vendors.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *PurchaseHandler) GetVendor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	vendor, err := h.vendors.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, vendor)
}

func (h *PurchaseHandler) CreateVendor(c *gin.Context) {
	var req services.VendorRequest
	if !bindJSON(c, &req) {
		return
	}
	vendor, err := h.vendors.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vendor)
}

func (h *PurchaseHandler) UpdateVendor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.VendorRequest
	if !bindJSON(c, &req) {
		return
	}
	vendor, err := h.vendors.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, vendor)
}

func (h *PurchaseHandler) DeleteVendor(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.vendors.Delete(id, middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "vendor deleted")
}

func (h *PurchaseHandler) ListRequisitions(c *gin.Context) {
	var req services.RequisitionListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.requisitions.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *PurchaseHandler) GetRequisition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pr, err := h.requisitions.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, pr)
}

func (h *PurchaseHandler) CreateRequisition(c *gin.Context) {
	var req services.RequisitionRequest
	if !bindJSON(c, &req) {
		return
	}
	pr, err := h.requisitions.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pr)
}

func (h *PurchaseHandler) UpdateRequisition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.RequisitionRequest
	if !bindJSON(c, &req) {
		return
	}
	pr, err := h.requisitions.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, pr)
}

func (h *PurchaseHandler) SubmitRequisition(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	approval, err := h.requisitions.Submit(id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, approval)
}

func (h *PurchaseHandler) ListOrders(c *gin.Context) {
	var req services.PurchaseOrderListRequest
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

func (h *PurchaseHandler) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	po, err := h.orders.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, po)
}

// CreateOrder raises a draft PO, optionally converting an approved
// requisition.
func (h *PurchaseHandler) CreateOrder(c *gin.Context) {
	var req services.PurchaseOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	po, err := h.orders.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, po)
}

func (h *PurchaseHandler) UpdateOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.PurchaseOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	po, err := h.orders.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, po)
}

func (h *PurchaseHandler) SubmitOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	approval, err := h.orders.Submit(id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, approval)
}

func (h *PurchaseHandler) CancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	po, err := h.orders.Cancel(id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, po)
}

func (h *PurchaseHandler) ListReceipts(c *gin.Context) {
	var req services.GRNListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.receipts.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *PurchaseHandler) GetReceipt(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	grn, err := h.receipts.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, grn)
}

// PostReceipt books a goods receipt against an approved PO and updates stock.
// POST /api/grns
func (h *PurchaseHandler) PostReceipt(c *gin.Context) {
	var req services.GRNRequest
	if !bindJSON(c, &req) {
		return
	}
	grn, err := h.receipts.Post(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grn)
}
