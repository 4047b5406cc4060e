package models

import (
	"time"

	"gorm.io/gorm"
)

// IMBot is a chat webhook receiving escalation and approval notices.
type IMBot struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"size:100;not null" json:"name"`
	Type             string         `gorm:"size:50;not null" json:"type"` // wechat_work, dingtalk, feishu, slack, generic
	Webhook          string         `gorm:"size:500;not null" json:"webhook"`
	Secret           string         `gorm:"size:255" json:"-"`
	IsActive         bool           `gorm:"default:true" json:"is_active"`
	EscalationNotify bool           `gorm:"default:true" json:"escalation_notify"`
	ApprovalNotify   bool           `gorm:"default:false" json:"approval_notify"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (IMBot) TableName() string { return "im_bots" }
