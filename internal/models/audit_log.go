package models

import "time"

// AuditLog records who changed what, with before and after snapshots.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EntityType string    `gorm:"size:50;not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   uint      `gorm:"index:idx_audit_entity" json:"entity_id"`
	Action     string    `gorm:"size:50;not null;index" json:"action"`
	UserID     *uint     `gorm:"index" json:"user_id"`
	Username   string    `gorm:"size:100" json:"username"`
	IP         string    `gorm:"size:50" json:"ip"`
	UserAgent  string    `gorm:"size:500" json:"user_agent"`
	BeforeData string    `gorm:"type:text" json:"before_data,omitempty"`
	AfterData  string    `gorm:"type:text" json:"after_data,omitempty"`
	Changes    string    `gorm:"type:text" json:"changes,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
