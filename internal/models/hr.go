package models

import (
	"time"

	"gorm.io/gorm"
)

type Department struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Code      string         `gorm:"uniqueIndex;size:30;not null" json:"code"`
	Name      string         `gorm:"size:150;not null" json:"name"`
	ManagerID *uint          `json:"manager_id"` // user who receives level 2 escalations
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Department) TableName() string { return "departments" }

type Employee struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	EmployeeCode string         `gorm:"uniqueIndex;size:30;not null" json:"employee_code"`
	FullName     string         `gorm:"size:150;not null;index" json:"full_name"`
	Email        string         `gorm:"size:255" json:"email"`
	Phone        string         `gorm:"size:30" json:"phone"`
	DepartmentID *uint          `gorm:"index" json:"department_id"`
	Department   *Department    `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	Designation  string         `gorm:"size:100" json:"designation"`
	UserID       *uint          `gorm:"uniqueIndex" json:"user_id"`
	LocationID   *uint          `gorm:"index" json:"location_id"`
	JoiningDate  *time.Time     `json:"joining_date"`
	Status       string         `gorm:"size:20;default:active;index" json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Employee) TableName() string { return "employees" }

// Holiday is a company-declared non-working day, optionally for one location.
type Holiday struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Date       time.Time `gorm:"index;not null" json:"date"`
	Name       string    `gorm:"size:150;not null" json:"name"`
	LocationID *uint     `gorm:"index" json:"location_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Holiday) TableName() string { return "holidays" }
