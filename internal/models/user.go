package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleSales      = "sales"
	RoleEstimator  = "estimator"
	RolePurchase   = "purchase"
	RoleStore      = "store"
	RoleHR         = "hr"
	RoleTechnician = "technician"
	RoleEmployee   = "employee"
)

// AllRoles lists every role known to the permission matrix.
var AllRoles = []string{
	RoleAdmin, RoleManager, RoleSales, RoleEstimator, RolePurchase,
	RoleStore, RoleHR, RoleTechnician, RoleEmployee,
}

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a login account
type User struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Username   string         `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password   string         `gorm:"size:255" json:"-"` // bcrypt hash, empty for LDAP users
	Email      string         `gorm:"size:255" json:"email"`
	FullName   string         `gorm:"size:150" json:"full_name"`
	Role       string         `gorm:"size:50;default:employee;index" json:"role"`
	AuthType   string         `gorm:"size:20;default:local" json:"auth_type"` // local, ldap
	LocationID *uint          `gorm:"index" json:"location_id"`
	IsActive   bool           `gorm:"default:true" json:"is_active"`
	LastLogin  *time.Time     `json:"last_login"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

// RefreshToken stores the sha256 of an opaque refresh token.
type RefreshToken struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"index;not null" json:"user_id"`
	TokenHash         string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt         time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt         *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	ReplacedByTokenID *uint      `json:"replaced_by_token_id,omitempty"`
	CreatedByIP       string     `gorm:"size:64" json:"created_by_ip,omitempty"`
	UserAgent         string     `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// RolePermission grants one action on one module to a role.
type RolePermission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Role      string    `gorm:"uniqueIndex:idx_role_module_action;size:50;not null" json:"role"`
	Module    string    `gorm:"uniqueIndex:idx_role_module_action;size:50;not null" json:"module"`
	Action    string    `gorm:"uniqueIndex:idx_role_module_action;size:20;not null" json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

func (RolePermission) TableName() string { return "role_permissions" }
