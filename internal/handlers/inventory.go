package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type InventoryHandler struct {
	inventoryService *services.InventoryService
}

func NewInventoryHandler(inventoryService *services.InventoryService) *InventoryHandler {
	return &InventoryHandler{inventoryService: inventoryService}
}

func (h *InventoryHandler) ListWarehouses(c *gin.Context) {
	rows, err := h.inventoryService.ListWarehouses(c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (h *InventoryHandler) CreateWarehouse(c *gin.Context) {
	var req services.WarehouseRequest
	if !bindJSON(c, &req) {
		return
	}
	wh, err := h.inventoryService.CreateWarehouse(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, wh)
}

func (h *InventoryHandler) UpdateWarehouse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.WarehouseRequest
	if !bindJSON(c, &req) {
		return
	}
	wh, err := h.inventoryService.UpdateWarehouse(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, wh)
}

func (h *InventoryHandler) ListItems(c *gin.Context) {
	var req services.ItemListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.inventoryService.ListItems(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *InventoryHandler) GetItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	item, err := h.inventoryService.GetItem(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

func (h *InventoryHandler) CreateItem(c *gin.Context) {
	var req services.ItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.inventoryService.CreateItem(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

func (h *InventoryHandler) UpdateItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.ItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.inventoryService.UpdateItem(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, item)
}

func (h *InventoryHandler) ListStock(c *gin.Context) {
	var req services.StockListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.inventoryService.ListStock(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *InventoryHandler) ExportStock(c *gin.Context) {
	var req services.StockListRequest
	if !bindQuery(c, &req) {
		return
	}
	table, err := h.inventoryService.ExportStock(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendExport(c, table)
}

func (h *InventoryHandler) LowStock(c *gin.Context) {
	rows, err := h.inventoryService.LowStock()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req services.StockAdjustRequest
	if !bindJSON(c, &req) {
		return
	}
	stock, err := h.inventoryService.Adjust(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stock)
}

func (h *InventoryHandler) Transfer(c *gin.Context) {
	var req services.TransferRequest
	if !bindJSON(c, &req) {
		return
	}
	transfer, err := h.inventoryService.Transfer(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, transfer)
}

func (h *InventoryHandler) Ledger(c *gin.Context) {
	var req services.LedgerRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.inventoryService.Ledger(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}
