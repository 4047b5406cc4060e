package models

import (
	"time"

	"gorm.io/gorm"
)

type Client struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Code          string         `gorm:"uniqueIndex;size:30;not null" json:"code"`
	Name          string         `gorm:"size:200;not null;index" json:"name"`
	ContactPerson string         `gorm:"size:150" json:"contact_person"`
	Email         string         `gorm:"size:255" json:"email"`
	Phone         string         `gorm:"size:30" json:"phone"`
	GSTIN         string         `gorm:"column:gstin;size:20" json:"gstin"`
	Address       string         `gorm:"type:text" json:"address"`
	Status        string         `gorm:"size:20;default:active;index" json:"status"` // active, inactive
	CreatedBy     uint           `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Client) TableName() string { return "clients" }
