package models

import "time"

const (
	AttendancePresent = "present"
	AttendanceHalfDay = "half_day"
)

type Attendance struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	EmployeeID  uint       `gorm:"uniqueIndex:idx_attendance_day;not null" json:"employee_id"`
	Date        time.Time  `gorm:"uniqueIndex:idx_attendance_day;not null" json:"date"`
	CheckInAt   time.Time  `json:"check_in_at"`
	CheckOutAt  *time.Time `json:"check_out_at"`
	CheckInIP   string     `gorm:"size:50" json:"check_in_ip"`
	CheckInLat  *float64   `json:"check_in_lat"`
	CheckInLng  *float64   `json:"check_in_lng"`
	LocationID  *uint      `gorm:"index" json:"location_id"`
	WorkMinutes int        `json:"work_minutes"`
	IsLate      bool       `gorm:"default:false" json:"is_late"`
	Status      string     `gorm:"size:20;default:present" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Attendance) TableName() string { return "attendances" }
