package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LeavePending   = "pending"
	LeaveApproved  = "approved"
	LeaveRejected  = "rejected"
	LeaveCancelled = "cancelled"
)

type LeaveType struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Code            string          `gorm:"uniqueIndex;size:10;not null" json:"code"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	AnnualQuota     decimal.Decimal `gorm:"type:decimal(5,1)" json:"annual_quota"`
	CarryForward    bool            `gorm:"default:false" json:"carry_forward"`
	MaxCarryForward decimal.Decimal `gorm:"type:decimal(5,1)" json:"max_carry_forward"`
	IsActive        bool            `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (LeaveType) TableName() string { return "leave_types" }

type LeaveBalance struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	EmployeeID  uint            `gorm:"uniqueIndex:idx_leave_balance;not null" json:"employee_id"`
	LeaveTypeID uint            `gorm:"uniqueIndex:idx_leave_balance;not null" json:"leave_type_id"`
	LeaveType   *LeaveType      `gorm:"foreignKey:LeaveTypeID" json:"leave_type,omitempty"`
	Year        int             `gorm:"uniqueIndex:idx_leave_balance;not null" json:"year"`
	Allocated   decimal.Decimal `gorm:"type:decimal(5,1)" json:"allocated"`
	Used        decimal.Decimal `gorm:"type:decimal(5,1)" json:"used"`
	Pending     decimal.Decimal `gorm:"type:decimal(5,1)" json:"pending"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (LeaveBalance) TableName() string { return "leave_balances" }

// Available is allocated minus used minus pending.
func (b *LeaveBalance) Available() decimal.Decimal {
	return b.Allocated.Sub(b.Used).Sub(b.Pending)
}

type LeaveApplication struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	EmployeeID  uint            `gorm:"index;not null" json:"employee_id"`
	Employee    *Employee       `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
	LeaveTypeID uint            `gorm:"not null" json:"leave_type_id"`
	LeaveType   *LeaveType      `gorm:"foreignKey:LeaveTypeID" json:"leave_type,omitempty"`
	FromDate    time.Time       `gorm:"index;not null" json:"from_date"`
	ToDate      time.Time       `gorm:"index;not null" json:"to_date"`
	HalfDay     bool            `gorm:"default:false" json:"half_day"`
	Days        decimal.Decimal `gorm:"type:decimal(5,1)" json:"days"`
	Reason      string          `gorm:"type:text" json:"reason"`
	Status      string          `gorm:"size:20;default:pending;index" json:"status"`
	ApprovalID  *uint           `json:"approval_id"`
	AppliedBy   uint            `json:"applied_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (LeaveApplication) TableName() string { return "leave_applications" }
