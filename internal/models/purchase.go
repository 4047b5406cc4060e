package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Vendor struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Code          string         `gorm:"uniqueIndex;size:30;not null" json:"code"`
	Name          string         `gorm:"size:200;not null;index" json:"name"`
	GSTIN         string         `gorm:"column:gstin;size:20" json:"gstin"`
	ContactPerson string         `gorm:"size:150" json:"contact_person"`
	Email         string         `gorm:"size:255" json:"email"`
	Phone         string         `gorm:"size:30" json:"phone"`
	Address       string         `gorm:"type:text" json:"address"`
	PaymentTerms  string         `gorm:"size:100" json:"payment_terms"`
	Status        string         `gorm:"size:20;default:active;index" json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Vendor) TableName() string { return "vendors" }

type PurchaseRequisition struct {
	ID            uint                      `gorm:"primaryKey" json:"id"`
	RequisitionNo string                    `gorm:"uniqueIndex;size:50;not null" json:"requisition_no"`
	CaseID        *uint                     `gorm:"index" json:"case_id"`
	Status        string                    `gorm:"size:20;default:draft;index" json:"status"`
	Remarks       string                    `gorm:"type:text" json:"remarks"`
	ApprovalID    *uint                     `json:"approval_id"`
	Lines         []PurchaseRequisitionLine `gorm:"foreignKey:RequisitionID" json:"lines,omitempty"`
	RequestedBy   uint                      `json:"requested_by"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
	DeletedAt     gorm.DeletedAt            `gorm:"index" json:"-"`
}

func (PurchaseRequisition) TableName() string { return "purchase_requisitions" }

type PurchaseRequisitionLine struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	RequisitionID uint            `gorm:"index;not null" json:"requisition_id"`
	ItemID        uint            `gorm:"not null" json:"item_id"`
	Quantity      decimal.Decimal `gorm:"type:decimal(15,3)" json:"quantity"`
	RequiredBy    *time.Time      `json:"required_by"`
	Remarks       string          `gorm:"size:500" json:"remarks"`
}

func (PurchaseRequisitionLine) TableName() string { return "purchase_requisition_lines" }

type PurchaseOrder struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	PONumber      string              `gorm:"column:po_number;uniqueIndex;size:50;not null" json:"po_number"`
	VendorID      uint                `gorm:"index;not null" json:"vendor_id"`
	Vendor        *Vendor             `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	RequisitionID *uint               `gorm:"index" json:"requisition_id"`
	CaseID        *uint               `gorm:"index" json:"case_id"`
	WarehouseID   uint                `gorm:"not null" json:"warehouse_id"`
	Status        string              `gorm:"size:30;default:draft;index" json:"status"`
	Subtotal      decimal.Decimal     `gorm:"type:decimal(15,2)" json:"subtotal"`
	TaxAmount     decimal.Decimal     `gorm:"type:decimal(15,2)" json:"tax_amount"`
	Total         decimal.Decimal     `gorm:"type:decimal(15,2)" json:"total"`
	ExpectedDate  *time.Time          `json:"expected_date"`
	ApprovalID    *uint               `json:"approval_id"`
	Lines         []PurchaseOrderLine `gorm:"foreignKey:PurchaseOrderID" json:"lines,omitempty"`
	CreatedBy     uint                `json:"created_by"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	DeletedAt     gorm.DeletedAt      `gorm:"index" json:"-"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }

type PurchaseOrderLine struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	PurchaseOrderID  uint            `gorm:"index;not null" json:"purchase_order_id"`
	ItemID           uint            `gorm:"not null" json:"item_id"`
	Quantity         decimal.Decimal `gorm:"type:decimal(15,3)" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(15,2)" json:"unit_price"`
	TaxPercent       decimal.Decimal `gorm:"type:decimal(7,2)" json:"tax_percent"`
	Amount           decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(15,3)" json:"received_quantity"`
}

func (PurchaseOrderLine) TableName() string { return "purchase_order_lines" }

// GoodsReceipt (GRN) records material received against a purchase order.
type GoodsReceipt struct {
	ID              uint               `gorm:"primaryKey" json:"id"`
	GRNNumber       string             `gorm:"column:grn_number;uniqueIndex;size:50;not null" json:"grn_number"`
	PurchaseOrderID uint               `gorm:"index;not null" json:"purchase_order_id"`
	WarehouseID     uint               `gorm:"not null" json:"warehouse_id"`
	ReceivedAt      time.Time          `json:"received_at"`
	Remarks         string             `gorm:"type:text" json:"remarks"`
	Lines           []GoodsReceiptLine `gorm:"foreignKey:GoodsReceiptID" json:"lines,omitempty"`
	ReceivedBy      uint               `json:"received_by"`
	CreatedAt       time.Time          `json:"created_at"`
}

func (GoodsReceipt) TableName() string { return "goods_receipts" }

type GoodsReceiptLine struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	GoodsReceiptID   uint            `gorm:"index;not null" json:"goods_receipt_id"`
	POLineID         uint            `gorm:"column:po_line_id;not null" json:"po_line_id"`
	ItemID           uint            `gorm:"not null" json:"item_id"`
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(15,3)" json:"received_quantity"`
	AcceptedQuantity decimal.Decimal `gorm:"type:decimal(15,3)" json:"accepted_quantity"`
	RejectedQuantity decimal.Decimal `gorm:"type:decimal(15,3)" json:"rejected_quantity"`
}

func (GoodsReceiptLine) TableName() string { return "goods_receipt_lines" }
