package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Case is one customer job moving through enquiry to closure.
type Case struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	CaseNumber          string         `gorm:"uniqueIndex;size:50;not null" json:"case_number"`
	Title               string         `gorm:"size:255;not null" json:"title"`
	Description         string         `gorm:"type:text" json:"description"`
	ClientID            *uint          `gorm:"index" json:"client_id"`
	Client              *Client        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Priority            string         `gorm:"size:20;default:normal;index" json:"priority"`
	CurrentState        string         `gorm:"size:30;not null;index" json:"current_state"`
	PreviousState       string         `gorm:"size:30" json:"previous_state,omitempty"`
	AssignedTo          *uint          `gorm:"index" json:"assigned_to"`
	Assignee            *User          `gorm:"foreignKey:AssignedTo" json:"assignee,omitempty"`
	DepartmentID        *uint          `gorm:"index" json:"department_id"`
	LocationID          *uint          `gorm:"index" json:"location_id"`
	StateEnteredAt      time.Time      `json:"state_entered_at"`
	SLADueAt            *time.Time     `gorm:"index" json:"sla_due_at"`
	SLABreached         bool           `gorm:"default:false;index" json:"sla_breached"`
	SLARemainingSeconds int64          `json:"sla_remaining_seconds"`
	EscalationLevel     int            `gorm:"default:0" json:"escalation_level"`
	NextEscalationAt    *time.Time     `gorm:"index" json:"next_escalation_at"`
	Version             int            `gorm:"not null;default:1" json:"version"`
	ClosedAt            *time.Time     `json:"closed_at"`
	CreatedBy           uint           `json:"created_by"`
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Case) TableName() string { return "cases" }

const (
	HistoryCreate            = "create"
	HistoryTransition        = "transition"
	HistoryHold              = "hold"
	HistoryResume            = "resume"
	HistoryEscalate          = "escalate"
	HistoryAssign            = "assign"
	HistoryComment           = "comment"
	HistoryApprovalRequested = "approval_requested"
	HistoryApprovalRejected  = "approval_rejected"
)

// CaseHistory is an append-only record of everything that happened to a case.
type CaseHistory struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CaseID          uint      `gorm:"index;not null" json:"case_id"`
	FromState       string    `gorm:"size:30" json:"from_state"`
	ToState         string    `gorm:"size:30;index" json:"to_state"`
	Action          string    `gorm:"size:30;not null;index" json:"action"`
	ActorID         *uint     `gorm:"index" json:"actor_id"`
	Actor           *User     `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Comment         string    `gorm:"type:text" json:"comment"`
	DurationSeconds int64     `json:"duration_seconds"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

func (CaseHistory) TableName() string { return "case_histories" }
