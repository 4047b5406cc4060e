package models

import "time"

const (
	DocEnquiry     = "ENQ"
	DocEstimation  = "EST"
	DocQuotation   = "QUO"
	DocSalesOrder  = "SO"
	DocRequisition = "PR"
	DocPurchase    = "PO"
	DocGRN         = "GRN"
	DocTransfer    = "TRF"
)

// DocumentSequence is the per type, per fiscal year counter behind business keys.
type DocumentSequence struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocType    string    `gorm:"uniqueIndex:idx_doc_type_fy;size:10;not null" json:"doc_type"`
	FiscalYear string    `gorm:"uniqueIndex:idx_doc_type_fy;size:4;not null" json:"fiscal_year"`
	LastValue  int64     `gorm:"not null;default:0" json:"last_value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (DocumentSequence) TableName() string { return "document_sequences" }
