package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Warehouse struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Code       string         `gorm:"uniqueIndex;size:30;not null" json:"code"`
	Name       string         `gorm:"size:150;not null" json:"name"`
	LocationID *uint          `gorm:"index" json:"location_id"`
	IsActive   bool           `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Warehouse) TableName() string { return "warehouses" }

type Item struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Code         string          `gorm:"uniqueIndex;size:50;not null" json:"code"`
	Name         string          `gorm:"size:200;not null;index" json:"name"`
	Unit         string          `gorm:"size:20;default:nos" json:"unit"`
	Category     string          `gorm:"size:100;index" json:"category"`
	ReorderLevel decimal.Decimal `gorm:"type:decimal(15,3)" json:"reorder_level"`
	IsActive     bool            `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Item) TableName() string { return "items" }

// Stock is the on-hand quantity of one item in one warehouse.
type Stock struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ItemID      uint            `gorm:"uniqueIndex:idx_stock_item_wh;not null" json:"item_id"`
	Item        *Item           `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	WarehouseID uint            `gorm:"uniqueIndex:idx_stock_item_wh;not null" json:"warehouse_id"`
	Warehouse   *Warehouse      `gorm:"foreignKey:WarehouseID" json:"warehouse,omitempty"`
	Quantity    decimal.Decimal `gorm:"type:decimal(15,3);not null;default:0" json:"quantity"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Stock) TableName() string { return "stocks" }

const (
	StockTxnGRN         = "grn"
	StockTxnTransferIn  = "transfer_in"
	StockTxnTransferOut = "transfer_out"
	StockTxnAdjustment  = "adjustment"
)

// StockTransaction is one signed movement in the stock ledger.
type StockTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ItemID      uint            `gorm:"index;not null" json:"item_id"`
	WarehouseID uint            `gorm:"index;not null" json:"warehouse_id"`
	Quantity    decimal.Decimal `gorm:"type:decimal(15,3);not null" json:"quantity"`
	Type        string          `gorm:"size:20;not null;index" json:"type"`
	Reference   string          `gorm:"size:100;index" json:"reference"`
	Remarks     string          `gorm:"size:500" json:"remarks"`
	CreatedBy   uint            `json:"created_by"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

func (StockTransaction) TableName() string { return "stock_transactions" }

type StockTransfer struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	TransferNo      string          `gorm:"uniqueIndex;size:50;not null" json:"transfer_no"`
	ItemID          uint            `gorm:"not null" json:"item_id"`
	FromWarehouseID uint            `gorm:"not null" json:"from_warehouse_id"`
	ToWarehouseID   uint            `gorm:"not null" json:"to_warehouse_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(15,3);not null" json:"quantity"`
	Remarks         string          `gorm:"size:500" json:"remarks"`
	CreatedBy       uint            `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (StockTransfer) TableName() string { return "stock_transfers" }
