package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type AttendanceService struct {
	db        *gorm.DB
	audit     *AuditService
	access    *AccessService
	configSvc *SystemConfigService
	loc       *time.Location
	now       func() time.Time
}

func NewAttendanceService(db *gorm.DB, audit *AuditService, access *AccessService, configSvc *SystemConfigService, loc *time.Location) *AttendanceService {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{db: db, audit: audit, access: access, configSvc: configSvc, loc: loc, now: time.Now}
}

type CheckInRequest struct {
	Latitude  *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" binding:"omitempty,longitude"`
}

type AttendanceListRequest struct {
	PageRequest
	EmployeeID uint   `form:"employee_id"`
	From       string `form:"from"`
	To         string `form:"to"`
	Status     string `form:"status" binding:"omitempty,oneof=present half_day"`
}

// lateAfter returns the moment on day after which a check-in counts as
// late.
func (s *AttendanceService) lateAfter(day time.Time) time.Time {
	start, err := time.ParseInLocation("15:04", s.configSvc.GetWithDefault("attendance_start_time", "09:30"), s.loc)
	if err != nil {
		start = time.Date(0, 1, 1, 9, 30, 0, 0, s.loc)
	}
	grace := s.configSvc.GetInt("attendance_grace_minutes", 15)
	return time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, s.loc).
		Add(time.Duration(grace) * time.Minute)
}

func (s *AttendanceService) CheckIn(req *CheckInRequest, actor *Actor) (*models.Attendance, error) {
	emp, err := employeeForUser(s.db, actor.UserID)
	if err != nil {
		return nil, err
	}

	locationID := emp.LocationID
	if s.access != nil && s.access.Enabled() {
		decision, err := s.access.Validate(&AccessRequest{
			UserID:     actor.UserID,
			Username:   actor.Username,
			Role:       actor.Role,
			LocationID: emp.LocationID,
			IP:         actor.IP,
			Latitude:   req.Latitude,
			Longitude:  req.Longitude,
			RequireGeo: s.access.GeofenceAttendance(),
		})
		if err != nil {
			return nil, err
		}
		if !decision.Allowed {
			return nil, response.NewForbidden("check-in denied: " + decision.Reason)
		}
		if decision.LocationID != nil {
			locationID = decision.LocationID
		}
	}

	now := s.now().In(s.loc)
	day := dateOf(now, s.loc)
	var n int64
	s.db.Model(&models.Attendance{}).Where("employee_id = ? AND date = ?", emp.ID, day).Count(&n)
	if n > 0 {
		return nil, response.NewConflict("already checked in today")
	}

	a := models.Attendance{
		EmployeeID: emp.ID,
		Date:       day,
		CheckInAt:  now,
		CheckInIP:  actor.IP,
		CheckInLat: req.Latitude,
		CheckInLng: req.Longitude,
		LocationID: locationID,
		IsLate:     now.After(s.lateAfter(now)),
		Status:     models.AttendancePresent,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&a).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "attendance", EntityID: a.ID, Action: "check_in", Actor: actor, After: a})
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AttendanceService) CheckOut(actor *Actor) (*models.Attendance, error) {
	emp, err := employeeForUser(s.db, actor.UserID)
	if err != nil {
		return nil, err
	}
	now := s.now().In(s.loc)
	var a models.Attendance
	if err := s.db.Where("employee_id = ? AND date = ?", emp.ID, dateOf(now, s.loc)).First(&a).Error; err != nil {
		return nil, notFoundOr(err, "no check-in recorded today")
	}
	if a.CheckOutAt != nil {
		return nil, response.NewConflict("already checked out today")
	}

	minutes := int(now.Sub(a.CheckInAt).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	status := models.AttendancePresent
	if minutes < s.configSvc.GetInt("attendance_half_day_minutes", 240) {
		status = models.AttendanceHalfDay
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Attendance{}).Where("id = ? AND check_out_at IS NULL", a.ID).Updates(map[string]interface{}{
			"check_out_at": now,
			"work_minutes": minutes,
			"status":       status,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewConflict("already checked out today")
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "attendance", EntityID: a.ID, Action: "check_out", Actor: actor,
			After: map[string]interface{}{"work_minutes": minutes, "status": status}})
	})
	if err != nil {
		return nil, err
	}
	a.CheckOutAt = &now
	a.WorkMinutes = minutes
	a.Status = status
	return &a, nil
}

// Today returns the caller's record for today, or nil before check-in.
func (s *AttendanceService) Today(actor *Actor) (*models.Attendance, error) {
	emp, err := employeeForUser(s.db, actor.UserID)
	if err != nil {
		return nil, err
	}
	var a models.Attendance
	err = s.db.Where("employee_id = ? AND date = ?", emp.ID, dateOf(s.now().In(s.loc), s.loc)).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AttendanceService) List(req *AttendanceListRequest) (*PageResult[models.Attendance], error) {
	query := s.db.Model(&models.Attendance{})
	if req.EmployeeID > 0 {
		query = query.Where("employee_id = ?", req.EmployeeID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.From != "" {
		from, err := parseDate(req.From)
		if err != nil {
			return nil, err
		}
		query = query.Where("date >= ?", from)
	}
	if req.To != "" {
		to, err := parseDate(req.To)
		if err != nil {
			return nil, err
		}
		query = query.Where("date <= ?", to)
	}
	return paginate[models.Attendance](query, &req.PageRequest, "date DESC, employee_id ASC")
}

type MonthlyAttendanceRow struct {
	EmployeeID   uint   `json:"employee_id"`
	EmployeeCode string `json:"employee_code"`
	FullName     string `json:"full_name"`
	PresentDays  int    `json:"present_days"`
	HalfDays     int    `json:"half_days"`
	LateDays     int    `json:"late_days"`
	TotalMinutes int    `json:"total_minutes"`
}

// MonthlyReport summarises every employee with at least one record in the
// month. month is YYYY-MM.
func (s *AttendanceService) MonthlyReport(month string, employeeID uint) ([]MonthlyAttendanceRow, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, response.NewBadRequest(fmt.Sprintf("invalid month %q, expected YYYY-MM", month))
	}
	end := start.AddDate(0, 1, 0)

	query := s.db.Table("attendances AS a").
		Select(`a.employee_id, e.employee_code, e.full_name,
			SUM(CASE WHEN a.status = ? THEN 1 ELSE 0 END) AS present_days,
			SUM(CASE WHEN a.status = ? THEN 1 ELSE 0 END) AS half_days,
			SUM(CASE WHEN a.is_late THEN 1 ELSE 0 END) AS late_days,
			COALESCE(SUM(a.work_minutes), 0) AS total_minutes`, models.AttendancePresent, models.AttendanceHalfDay).
		Joins("JOIN employees e ON e.id = a.employee_id").
		Where("a.date >= ? AND a.date < ?", start, end).
		Group("a.employee_id, e.employee_code, e.full_name").
		Order("e.employee_code ASC")
	if employeeID > 0 {
		query = query.Where("a.employee_id = ?", employeeID)
	}
	var rows []MonthlyAttendanceRow
	return rows, query.Scan(&rows).Error
}
