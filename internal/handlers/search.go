package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

// SearchHandler provides a global search across cases, clients and purchase orders.
type SearchHandler struct {
	db    *gorm.DB
	perms *services.PermissionCache
}

func NewSearchHandler(db *gorm.DB, perms *services.PermissionCache) *SearchHandler {
	return &SearchHandler{db: db, perms: perms}
}

type SearchResult struct {
	Cases          []CaseSearchItem   `json:"cases"`
	Clients        []ClientSearchItem `json:"clients"`
	PurchaseOrders []POSearchItem     `json:"purchase_orders"`
	Total          int                `json:"total"`
}

type CaseSearchItem struct {
	ID           uint   `json:"id"`
	CaseNumber   string `json:"case_number"`
	Title        string `json:"title"`
	ClientName   string `json:"client_name,omitempty"`
	CurrentState string `json:"current_state"`
	SLABreached  bool   `json:"sla_breached"`
	CreatedAt    string `json:"created_at"`
}

type ClientSearchItem struct {
	ID   uint   `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type POSearchItem struct {
	ID         uint   `json:"id"`
	PONumber   string `json:"po_number"`
	VendorName string `json:"vendor_name,omitempty"`
	Status     string `json:"status"`
	Total      string `json:"total"`
}

// Search matches q against each module the caller may view; other
// sections come back empty.
// GET /api/search?q=
func (h *SearchHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if len(q) < 2 {
		response.BadRequest(c, "search query must be at least 2 characters")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 50 {
		limit = 20
	}

	role := middleware.GetRole(c)
	result := SearchResult{Cases: []CaseSearchItem{}, Clients: []ClientSearchItem{}, PurchaseOrders: []POSearchItem{}}
	pattern := "%" + q + "%"

	if h.perms.Allowed(role, models.ModuleCases, models.ActionView) {
		var cases []models.Case
		if err := h.db.Preload("Client").
			Where("case_number LIKE ? OR title LIKE ?", pattern, pattern).
			Order("created_at DESC").
			Limit(limit).
			Find(&cases).Error; err != nil {
			response.Error(c, err)
			return
		}
		for _, cs := range cases {
			item := CaseSearchItem{
				ID:           cs.ID,
				CaseNumber:   cs.CaseNumber,
				Title:        cs.Title,
				CurrentState: cs.CurrentState,
				SLABreached:  cs.SLABreached,
				CreatedAt:    cs.CreatedAt.Format("2006-01-02 15:04:05"),
			}
			if cs.Client != nil {
				item.ClientName = cs.Client.Name
			}
			result.Cases = append(result.Cases, item)
		}
	}

	if h.perms.Allowed(role, models.ModuleClients, models.ActionView) {
		var clients []models.Client
		if err := h.db.Where("code LIKE ? OR name LIKE ?", pattern, pattern).
			Order("name ASC").
			Limit(10).
			Find(&clients).Error; err != nil {
			response.Error(c, err)
			return
		}
		for _, cl := range clients {
			result.Clients = append(result.Clients, ClientSearchItem{ID: cl.ID, Code: cl.Code, Name: cl.Name})
		}
	}

	if h.perms.Allowed(role, models.ModulePurchase, models.ActionView) {
		var pos []models.PurchaseOrder
		if err := h.db.Preload("Vendor").
			Joins("LEFT JOIN vendors ON vendors.id = purchase_orders.vendor_id").
			Where("purchase_orders.po_number LIKE ? OR vendors.name LIKE ?", pattern, pattern).
			Order("purchase_orders.created_at DESC").
			Limit(10).
			Find(&pos).Error; err != nil {
			response.Error(c, err)
			return
		}
		for _, po := range pos {
			item := POSearchItem{ID: po.ID, PONumber: po.PONumber, Status: po.Status, Total: po.Total.StringFixed(2)}
			if po.Vendor != nil {
				item.VendorName = po.Vendor.Name
			}
			result.PurchaseOrders = append(result.PurchaseOrders, item)
		}
	}

	result.Total = len(result.Cases) + len(result.Clients) + len(result.PurchaseOrders)
	response.Success(c, result)
}
