package models

import "time"

const (
	ApprovalCaseTransition      = "case_transition"
	ApprovalEstimation          = "estimation"
	ApprovalQuotation           = "quotation"
	ApprovalPurchaseRequisition = "purchase_requisition"
	ApprovalPurchaseOrder       = "purchase_order"
	ApprovalLeaveApplication    = "leave_application"

	ApprovalPending   = "pending"
	ApprovalApproved  = "approved"
	ApprovalRejected  = "rejected"
	ApprovalCancelled = "cancelled"
)

// ApprovalRequest gates a change on some entity until an approver decides.
type ApprovalRequest struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EntityType   string     `gorm:"size:50;not null;index:idx_approval_entity" json:"entity_type"`
	EntityID     uint       `gorm:"not null;index:idx_approval_entity" json:"entity_id"`
	CaseID       *uint      `gorm:"index" json:"case_id"`
	Payload      string     `gorm:"type:text" json:"payload"`
	Status       string     `gorm:"size:20;default:pending;index" json:"status"`
	RequestedBy  uint       `gorm:"index" json:"requested_by"`
	Requester    *User      `gorm:"foreignKey:RequestedBy" json:"requester,omitempty"`
	DecidedBy    *uint      `json:"decided_by"`
	DecidedAt    *time.Time `json:"decided_at"`
	Comment      string     `gorm:"type:text" json:"comment"`
	RequiredRole string     `gorm:"size:50" json:"required_role"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (ApprovalRequest) TableName() string { return "approval_requests" }
