package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusSent      = "sent"
	StatusAccepted  = "accepted"
	StatusExpired   = "expired"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusClosed    = "closed"

	StatusPartiallyReceived = "partially_received"
	StatusReceived          = "received"
)

type Estimation struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	EstimationNo string           `gorm:"uniqueIndex;size:50;not null" json:"estimation_no"`
	CaseID       uint             `gorm:"index;not null" json:"case_id"`
	Status       string           `gorm:"size:20;default:draft;index" json:"status"`
	CostTotal    decimal.Decimal  `gorm:"type:decimal(15,2)" json:"cost_total"`
	SellTotal    decimal.Decimal  `gorm:"type:decimal(15,2)" json:"sell_total"`
	Notes        string           `gorm:"type:text" json:"notes"`
	ApprovalID   *uint            `json:"approval_id"`
	Lines        []EstimationLine `gorm:"foreignKey:EstimationID" json:"lines,omitempty"`
	CreatedBy    uint             `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	DeletedAt    gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (Estimation) TableName() string { return "estimations" }

type EstimationLine struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	EstimationID  uint            `gorm:"index;not null" json:"estimation_id"`
	ItemID        *uint           `json:"item_id"`
	Description   string          `gorm:"size:500;not null" json:"description"`
	Quantity      decimal.Decimal `gorm:"type:decimal(15,3)" json:"quantity"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(15,2)" json:"unit_cost"`
	MarginPercent decimal.Decimal `gorm:"type:decimal(7,2)" json:"margin_percent"`
	CostAmount    decimal.Decimal `gorm:"type:decimal(15,2)" json:"cost_amount"`
	SellAmount    decimal.Decimal `gorm:"type:decimal(15,2)" json:"sell_amount"`
}

func (EstimationLine) TableName() string { return "estimation_lines" }

type Quotation struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	QuotationNo  string          `gorm:"uniqueIndex;size:50;not null" json:"quotation_no"`
	CaseID       uint            `gorm:"index;not null" json:"case_id"`
	EstimationID *uint           `json:"estimation_id"`
	Status       string          `gorm:"size:20;default:draft;index" json:"status"`
	TaxPercent   decimal.Decimal `gorm:"type:decimal(7,2)" json:"tax_percent"`
	Discount     decimal.Decimal `gorm:"type:decimal(15,2)" json:"discount"`
	Subtotal     decimal.Decimal `gorm:"type:decimal(15,2)" json:"subtotal"`
	TaxAmount    decimal.Decimal `gorm:"type:decimal(15,2)" json:"tax_amount"`
	GrandTotal   decimal.Decimal `gorm:"type:decimal(15,2)" json:"grand_total"`
	ValidUntil   *time.Time      `json:"valid_until"`
	Terms        string          `gorm:"type:text" json:"terms"`
	Lines        []QuotationLine `gorm:"foreignKey:QuotationID" json:"lines,omitempty"`
	SentAt       *time.Time      `json:"sent_at"`
	DecidedAt    *time.Time      `json:"decided_at"`
	CreatedBy    uint            `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Quotation) TableName() string { return "quotations" }

type QuotationLine struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	QuotationID uint            `gorm:"index;not null" json:"quotation_id"`
	ItemID      *uint           `json:"item_id"`
	Description string          `gorm:"size:500;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(15,3)" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(15,2)" json:"unit_price"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
}

func (QuotationLine) TableName() string { return "quotation_lines" }

type SalesOrder struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OrderNo          string          `gorm:"uniqueIndex;size:50;not null" json:"order_no"`
	CaseID           uint            `gorm:"index;not null" json:"case_id"`
	QuotationID      uint            `gorm:"uniqueIndex;not null" json:"quotation_id"`
	ClientID         *uint           `gorm:"index" json:"client_id"`
	CustomerPONumber string          `gorm:"column:customer_po_number;size:100" json:"customer_po_number"`
	DeliveryDate     *time.Time      `json:"delivery_date"`
	Amount           decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount"`
	Status           string          `gorm:"size:20;default:draft;index" json:"status"`
	ConfirmedAt      *time.Time      `json:"confirmed_at"`
	CreatedBy        uint            `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (SalesOrder) TableName() string { return "sales_orders" }
