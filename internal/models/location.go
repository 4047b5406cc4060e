package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// OfficeLocation is a site with an optional IP allow list and geofence.
type OfficeLocation struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Code         string         `gorm:"uniqueIndex;size:30;not null" json:"code"`
	Name         string         `gorm:"size:150;not null" json:"name"`
	Address      string         `gorm:"size:500" json:"address"`
	Latitude     *float64       `json:"latitude"`
	Longitude    *float64       `json:"longitude"`
	RadiusMeters int            `gorm:"default:200" json:"radius_meters"`
	AllowedIPs   string         `gorm:"type:text" json:"allowed_ips"` // comma separated IPs or CIDRs
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (OfficeLocation) TableName() string { return "office_locations" }

// IPRules splits AllowedIPs into trimmed, non-empty entries.
func (l *OfficeLocation) IPRules() []string {
	var rules []string
	for _, part := range strings.Split(l.AllowedIPs, ",") {
		if p := strings.TrimSpace(part); p != "" {
			rules = append(rules, p)
		}
	}
	return rules
}

// HasGeofence reports whether the office has coordinates and a radius.
func (l *OfficeLocation) HasGeofence() bool {
	return l.Latitude != nil && l.Longitude != nil && l.RadiusMeters > 0
}
