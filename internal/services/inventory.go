package services

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryService struct {
	db    *gorm.DB
	audit *AuditService
	seq   *SequenceService
}

func NewInventoryService(db *gorm.DB, audit *AuditService, seq *SequenceService) *InventoryService {
	return &InventoryService{db: db, audit: audit, seq: seq}
}

// stockMove is one signed movement applied through applyStockDelta.
type stockMove struct {
	ItemID      uint
	WarehouseID uint
	Delta       decimal.Decimal
	Type        string
	Reference   string
	Remarks     string
	ActorID     uint
}

// applyStockDelta changes on-hand stock and writes the ledger row, inside
// tx. Receipts upsert the stock row; issues only succeed when enough stock
// is on hand.
func applyStockDelta(tx *gorm.DB, m stockMove) error {
	if m.Delta.IsZero() {
		return nil
	}
	if m.Delta.IsPositive() {
		row := models.Stock{ItemID: m.ItemID, WarehouseID: m.WarehouseID, Quantity: m.Delta}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}, {Name: "warehouse_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"quantity": gorm.Expr("stocks.quantity + ?", m.Delta)}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
	} else {
		need := m.Delta.Neg()
		res := tx.Model(&models.Stock{}).
			Where("item_id = ? AND warehouse_id = ? AND quantity >= ?", m.ItemID, m.WarehouseID, need).
			Updates(map[string]interface{}{"quantity": gorm.Expr("quantity - ?", need), "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewUnprocessable("insufficient stock for the requested quantity")
		}
	}
	return tx.Create(&models.StockTransaction{
		ItemID:      m.ItemID,
		WarehouseID: m.WarehouseID,
		Quantity:    m.Delta,
		Type:        m.Type,
		Reference:   m.Reference,
		Remarks:     m.Remarks,
		CreatedBy:   m.ActorID,
	}).Error
}

type WarehouseRequest struct {
	Code       string `json:"code" binding:"required,max=30"`
	Name       string `json:"name" binding:"required,max=150"`
	LocationID *uint  `json:"location_id"`
	IsActive   *bool  `json:"is_active"`
}

func (s *InventoryService) ListWarehouses(activeOnly bool) ([]models.Warehouse, error) {
	var rows []models.Warehouse
	query := s.db.Order("code ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	return rows, query.Find(&rows).Error
}

func (s *InventoryService) activeWarehouse(db *gorm.DB, id uint) (*models.Warehouse, error) {
	var w models.Warehouse
	if err := db.First(&w, id).Error; err != nil {
		return nil, notFoundOr(err, "warehouse not found")
	}
	if !w.IsActive {
		return nil, response.NewBadRequest("warehouse " + w.Code + " is inactive")
	}
	return &w, nil
}

func (s *InventoryService) CreateWarehouse(req *WarehouseRequest, actor *Actor) (*models.Warehouse, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var n int64
	s.db.Unscoped().Model(&models.Warehouse{}).Where("code = ?", code).Count(&n)
	if n > 0 {
		return nil, response.NewConflict("warehouse code already exists")
	}
	w := models.Warehouse{Code: code, Name: strings.TrimSpace(req.Name), LocationID: req.LocationID, IsActive: true}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&w).Error; err != nil {
			return err
		}
		if req.IsActive != nil && !*req.IsActive {
			w.IsActive = false
			if err := tx.Model(&w).Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "warehouse", EntityID: w.ID, Action: "create", Actor: actor, After: w})
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *InventoryService) UpdateWarehouse(id uint, req *WarehouseRequest, actor *Actor) (*models.Warehouse, error) {
	var before models.Warehouse
	if err := s.db.First(&before, id).Error; err != nil {
		return nil, notFoundOr(err, "warehouse not found")
	}
	updates := map[string]interface{}{"name": strings.TrimSpace(req.Name), "location_id": req.LocationID}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	var after models.Warehouse
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Warehouse{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "warehouse", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

type ItemRequest struct {
	Code         string          `json:"code" binding:"required,max=50"`
	Name         string          `json:"name" binding:"required,max=200"`
	Unit         string          `json:"unit" binding:"max=20"`
	Category     string          `json:"category" binding:"max=100"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	IsActive     *bool           `json:"is_active"`
}

type ItemListRequest struct {
	PageRequest
	Search   string `form:"search"`
	Category string `form:"category"`
	Active   *bool  `form:"active"`
}

func (s *InventoryService) ListItems(req *ItemListRequest) (*PageResult[models.Item], error) {
	query := s.db.Model(&models.Item{})
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", like, like)
	}
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.Active != nil {
		query = query.Where("is_active = ?", *req.Active)
	}
	return paginate[models.Item](query, &req.PageRequest, "code ASC")
}

func (s *InventoryService) GetItem(id uint) (*models.Item, error) {
	var item models.Item
	if err := s.db.First(&item, id).Error; err != nil {
		return nil, notFoundOr(err, "item not found")
	}
	return &item, nil
}

func (s *InventoryService) CreateItem(req *ItemRequest, actor *Actor) (*models.Item, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var n int64
	s.db.Unscoped().Model(&models.Item{}).Where("code = ?", code).Count(&n)
	if n > 0 {
		return nil, response.NewConflict("item code already exists")
	}
	if req.ReorderLevel.IsNegative() {
		return nil, response.NewBadRequest("reorder level cannot be negative")
	}
	item := models.Item{
		Code:         code,
		Name:         strings.TrimSpace(req.Name),
		Unit:         req.Unit,
		Category:     req.Category,
		ReorderLevel: req.ReorderLevel,
		IsActive:     true,
	}
	if item.Unit == "" {
		item.Unit = "nos"
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if req.IsActive != nil && !*req.IsActive {
			item.IsActive = false
			if err := tx.Model(&item).Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "item", EntityID: item.ID, Action: "create", Actor: actor, After: item})
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *InventoryService) UpdateItem(id uint, req *ItemRequest, actor *Actor) (*models.Item, error) {
	before, err := s.GetItem(id)
	if err != nil {
		return nil, err
	}
	if req.ReorderLevel.IsNegative() {
		return nil, response.NewBadRequest("reorder level cannot be negative")
	}
	updates := map[string]interface{}{
		"name":          strings.TrimSpace(req.Name),
		"unit":          req.Unit,
		"category":      req.Category,
		"reorder_level": req.ReorderLevel,
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	var after models.Item
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Item{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "item", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

type StockListRequest struct {
	PageRequest
	ItemID      uint `form:"item_id"`
	WarehouseID uint `form:"warehouse_id"`
	LowStock    bool `form:"low_stock"`
}

func (s *InventoryService) stockQuery(req *StockListRequest) *gorm.DB {
	query := s.db.Model(&models.Stock{})
	if req.ItemID > 0 {
		query = query.Where("stocks.item_id = ?", req.ItemID)
	}
	if req.WarehouseID > 0 {
		query = query.Where("stocks.warehouse_id = ?", req.WarehouseID)
	}
	if req.LowStock {
		query = query.Joins("JOIN items ON items.id = stocks.item_id").
			Where("items.reorder_level > 0 AND stocks.quantity <= items.reorder_level")
	}
	return query
}

func (s *InventoryService) ListStock(req *StockListRequest) (*PageResult[models.Stock], error) {
	return paginate[models.Stock](s.stockQuery(req).Preload("Item").Preload("Warehouse"), &req.PageRequest, "stocks.item_id ASC, stocks.warehouse_id ASC")
}

type StockAdjustRequest struct {
	ItemID      uint            `json:"item_id" binding:"required"`
	WarehouseID uint            `json:"warehouse_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	Remarks     string          `json:"remarks" binding:"required,max=500"`
}

// Adjust books a signed correction, e.g. after a physical count.
func (s *InventoryService) Adjust(req *StockAdjustRequest, actor *Actor) (*models.Stock, error) {
	if req.Quantity.IsZero() {
		return nil, response.NewBadRequest("adjustment quantity cannot be zero")
	}
	if _, err := s.GetItem(req.ItemID); err != nil {
		return nil, err
	}
	if _, err := s.activeWarehouse(s.db, req.WarehouseID); err != nil {
		return nil, err
	}

	var stock models.Stock
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := applyStockDelta(tx, stockMove{
			ItemID:      req.ItemID,
			WarehouseID: req.WarehouseID,
			Delta:       req.Quantity,
			Type:        models.StockTxnAdjustment,
			Reference:   "ADJ",
			Remarks:     req.Remarks,
			ActorID:     actor.UserID,
		}); err != nil {
			return err
		}
		if err := tx.Where("item_id = ? AND warehouse_id = ?", req.ItemID, req.WarehouseID).First(&stock).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "stock", EntityID: stock.ID, Action: "adjust", Actor: actor,
			After: map[string]interface{}{"delta": req.Quantity.String(), "quantity": stock.Quantity.String(), "remarks": req.Remarks}})
	})
	if err != nil {
		return nil, err
	}
	return &stock, nil
}

type TransferRequest struct {
	ItemID          uint            `json:"item_id" binding:"required"`
	FromWarehouseID uint            `json:"from_warehouse_id" binding:"required"`
	ToWarehouseID   uint            `json:"to_warehouse_id" binding:"required,nefield=FromWarehouseID"`
	Quantity        decimal.Decimal `json:"quantity"`
	Remarks         string          `json:"remarks" binding:"max=500"`
}

// Transfer moves stock between warehouses; both legs commit together.
func (s *InventoryService) Transfer(req *TransferRequest, actor *Actor) (*models.StockTransfer, error) {
	if !req.Quantity.IsPositive() {
		return nil, response.NewBadRequest("transfer quantity must be positive")
	}
	if req.FromWarehouseID == req.ToWarehouseID {
		return nil, response.NewBadRequest("source and destination warehouse are the same")
	}
	if _, err := s.GetItem(req.ItemID); err != nil {
		return nil, err
	}
	for _, id := range []uint{req.FromWarehouseID, req.ToWarehouseID} {
		if _, err := s.activeWarehouse(s.db, id); err != nil {
			return nil, err
		}
	}

	trf := models.StockTransfer{
		ItemID:          req.ItemID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Quantity:        req.Quantity,
		Remarks:         req.Remarks,
		CreatedBy:       actor.UserID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.Next(tx, models.DocTransfer, time.Now())
		if err != nil {
			return err
		}
		trf.TransferNo = number
		if err := applyStockDelta(tx, stockMove{
			ItemID: req.ItemID, WarehouseID: req.FromWarehouseID, Delta: req.Quantity.Neg(),
			Type: models.StockTxnTransferOut, Reference: number, Remarks: req.Remarks, ActorID: actor.UserID,
		}); err != nil {
			return err
		}
		if err := applyStockDelta(tx, stockMove{
			ItemID: req.ItemID, WarehouseID: req.ToWarehouseID, Delta: req.Quantity,
			Type: models.StockTxnTransferIn, Reference: number, Remarks: req.Remarks, ActorID: actor.UserID,
		}); err != nil {
			return err
		}
		if err := tx.Create(&trf).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "stock_transfer", EntityID: trf.ID, Action: "create", Actor: actor, After: trf})
	})
	if err != nil {
		return nil, err
	}
	return &trf, nil
}

type LedgerRequest struct {
	PageRequest
	ItemID      uint   `form:"item_id"`
	WarehouseID uint   `form:"warehouse_id"`
	Type        string `form:"type" binding:"omitempty,oneof=grn transfer_in transfer_out adjustment"`
	Reference   string `form:"reference"`
	From        string `form:"from"`
	To          string `form:"to"`
}

func (s *InventoryService) Ledger(req *LedgerRequest) (*PageResult[models.StockTransaction], error) {
	query := s.db.Model(&models.StockTransaction{})
	if req.ItemID > 0 {
		query = query.Where("item_id = ?", req.ItemID)
	}
	if req.WarehouseID > 0 {
		query = query.Where("warehouse_id = ?", req.WarehouseID)
	}
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.Reference != "" {
		query = query.Where("reference = ?", req.Reference)
	}
	if req.From != "" {
		from, err := parseDate(req.From)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at >= ?", from)
	}
	if req.To != "" {
		to, err := parseDate(req.To)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
	}
	return paginate[models.StockTransaction](query, &req.PageRequest, "created_at DESC, id DESC")
}

// LowStockRow is an active item whose total stock is at or below its
// reorder level.
type LowStockRow struct {
	ItemID       uint            `json:"item_id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Quantity     decimal.Decimal `json:"quantity"`
}

func (s *InventoryService) lowStockQuery() *gorm.DB {
	return s.db.Table("items").
		Select("items.id AS item_id, items.code, items.name, items.unit, items.reorder_level, COALESCE(SUM(stocks.quantity), 0) AS quantity").
		Joins("LEFT JOIN stocks ON stocks.item_id = items.id").
		Where("items.deleted_at IS NULL AND items.is_active = ? AND items.reorder_level > 0", true).
		Group("items.id, items.code, items.name, items.unit, items.reorder_level").
		Having("COALESCE(SUM(stocks.quantity), 0) <= items.reorder_level")
}

func (s *InventoryService) LowStock() ([]LowStockRow, error) {
	rows := make([]LowStockRow, 0)
	err := s.lowStockQuery().Order("items.code ASC").Scan(&rows).Error
	return rows, err
}

func (s *InventoryService) CountLowStock() int64 {
	var n int64
	s.db.Table("(?) AS low", s.lowStockQuery()).Count(&n)
	return n
}

func (s *InventoryService) ExportStock(req *StockListRequest) (*ExportTable, error) {
	var rows []models.Stock
	if err := s.stockQuery(req).Preload("Item").Preload("Warehouse").
		Order("stocks.item_id ASC, stocks.warehouse_id ASC").Limit(50000).Find(&rows).Error; err != nil {
		return nil, err
	}
	table := &ExportTable{
		Name:    "stock",
		Headers: []string{"Item Code", "Item", "Unit", "Warehouse", "Quantity", "Reorder Level", "Updated"},
	}
	for _, r := range rows {
		var code, name, unit, wh, reorder string
		if r.Item != nil {
			code, name, unit, reorder = r.Item.Code, r.Item.Name, r.Item.Unit, r.Item.ReorderLevel.String()
		}
		if r.Warehouse != nil {
			wh = r.Warehouse.Code
		}
		table.Rows = append(table.Rows, []string{code, name, unit, wh, r.Quantity.String(), reorder, r.UpdatedAt.Format(time.RFC3339)})
	}
	return table, nil
}
