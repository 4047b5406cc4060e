package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/logger"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var halfDay = decimal.NewFromFloat(0.5)

// LeaveService books leave against yearly balances. Applying reserves the
// days as pending; the approval decision moves them to used or releases
// them.
type LeaveService struct {
	db        *gorm.DB
	audit     *AuditService
	approvals *ApprovalService
	perms     *PermissionCache
	holidays  *HolidayService
}

func NewLeaveService(db *gorm.DB, audit *AuditService, approvals *ApprovalService, perms *PermissionCache, holidays *HolidayService) *LeaveService {
	s := &LeaveService{db: db, audit: audit, approvals: approvals, perms: perms, holidays: holidays}
	if approvals != nil {
		approvals.Register(models.ApprovalLeaveApplication, s)
	}
	return s
}

type LeaveApplyRequest struct {
	EmployeeID  uint   `json:"employee_id"`
	LeaveTypeID uint   `json:"leave_type_id" binding:"required"`
	FromDate    string `json:"from_date" binding:"required"`
	ToDate      string `json:"to_date" binding:"required"`
	HalfDay     bool   `json:"half_day"`
	Reason      string `json:"reason" binding:"max=1000"`
}

type LeaveListRequest struct {
	PageRequest
	EmployeeID uint   `form:"employee_id"`
	Status     string `form:"status" binding:"omitempty,oneof=pending approved rejected cancelled"`
	Year       int    `form:"year"`
}

func (s *LeaveService) ListTypes() ([]models.LeaveType, error) {
	var rows []models.LeaveType
	return rows, s.db.Where("is_active = ?", true).Order("code ASC").Find(&rows).Error
}

// openingAllocation is the allocation a year starts with: the quota, plus
// for carry-forward types the previous year's unused days up to the cap.
func openingAllocation(tx *gorm.DB, employeeID uint, lt *models.LeaveType, year int) (decimal.Decimal, error) {
	allocated := lt.AnnualQuota
	if !lt.CarryForward {
		return allocated, nil
	}
	var prev models.LeaveBalance
	err := tx.Where("employee_id = ? AND leave_type_id = ? AND year = ?", employeeID, lt.ID, year-1).First(&prev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return allocated, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if unused := prev.Allocated.Sub(prev.Used); unused.IsPositive() {
		allocated = allocated.Add(decimal.Min(unused, lt.MaxCarryForward))
	}
	return allocated, nil
}

// ensureBalance returns the balance row for (employee, type, year),
// creating it with the year's opening allocation on first use.
func ensureBalance(tx *gorm.DB, employeeID uint, lt *models.LeaveType, year int) (*models.LeaveBalance, error) {
	allocated, err := openingAllocation(tx, employeeID, lt, year)
	if err != nil {
		return nil, err
	}
	row := models.LeaveBalance{EmployeeID: employeeID, LeaveTypeID: lt.ID, Year: year, Allocated: allocated}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, err
	}
	var b models.LeaveBalance
	err = tx.Where("employee_id = ? AND leave_type_id = ? AND year = ?", employeeID, lt.ID, year).First(&b).Error
	return &b, err
}

// Balances lists an employee's balances for a year, one per active type.
func (s *LeaveService) Balances(employeeID uint, year int) ([]models.LeaveBalance, error) {
	types, err := s.ListTypes()
	if err != nil {
		return nil, err
	}
	out := make([]models.LeaveBalance, 0, len(types))
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for i := range types {
			b, err := ensureBalance(tx, employeeID, &types[i], year)
			if err != nil {
				return err
			}
			b.LeaveType = &types[i]
			out = append(out, *b)
		}
		return nil
	})
	return out, err
}

// resolveEmployee picks the employee an actor is acting for. Acting for
// someone else needs hr:edit.
func (s *LeaveService) resolveEmployee(employeeID uint, actor *Actor) (*models.Employee, error) {
	own, ownErr := employeeForUser(s.db, actor.UserID)
	if employeeID == 0 || (ownErr == nil && own.ID == employeeID) {
		return own, ownErr
	}
	if s.perms == nil || !s.perms.Allowed(actor.Role, models.ModuleHR, models.ActionEdit) {
		return nil, response.NewForbidden("not allowed to manage leave for other employees")
	}
	var e models.Employee
	if err := s.db.Where("id = ? AND status = ?", employeeID, "active").First(&e).Error; err != nil {
		return nil, notFoundOr(err, "employee not found or inactive")
	}
	return &e, nil
}

func (s *LeaveService) Apply(req *LeaveApplyRequest, actor *Actor) (*models.LeaveApplication, error) {
	emp, err := s.resolveEmployee(req.EmployeeID, actor)
	if err != nil {
		return nil, err
	}
	var lt models.LeaveType
	if err := s.db.Where("id = ? AND is_active = ?", req.LeaveTypeID, true).First(&lt).Error; err != nil {
		return nil, notFoundOr(err, "leave type not found")
	}
	from, err := parseDate(req.FromDate)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(req.ToDate)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, response.NewBadRequest("to_date is before from_date")
	}
	if from.Year() != to.Year() {
		return nil, response.NewBadRequest("a leave cannot span two calendar years, apply for each year separately")
	}
	if req.HalfDay && !from.Equal(to) {
		return nil, response.NewBadRequest("a half day leave must start and end on the same day")
	}

	working := s.holidays.CountWorkingDays(from, to, emp.LocationID)
	if working == 0 {
		return nil, response.NewBadRequest("the selected range has no working days")
	}
	days := decimal.NewFromInt(int64(working))
	if req.HalfDay {
		days = halfDay
	}

	var overlap int64
	s.db.Model(&models.LeaveApplication{}).
		Where("employee_id = ? AND status IN ? AND from_date <= ? AND to_date >= ?",
			emp.ID, []string{models.LeavePending, models.LeaveApproved}, to, from).
		Count(&overlap)
	if overlap > 0 {
		return nil, response.NewConflict("overlaps an existing pending or approved leave")
	}

	app := models.LeaveApplication{
		EmployeeID:  emp.ID,
		LeaveTypeID: lt.ID,
		FromDate:    from,
		ToDate:      to,
		HalfDay:     req.HalfDay,
		Days:        days,
		Reason:      req.Reason,
		Status:      models.LeavePending,
		AppliedBy:   actor.UserID,
	}
	var approval *models.ApprovalRequest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		bal, err := ensureBalance(tx, emp.ID, &lt, from.Year())
		if err != nil {
			return err
		}
		if bal.Available().LessThan(days) {
			return response.NewUnprocessable(fmt.Sprintf("insufficient %s balance: %s available, %s requested",
				lt.Code, bal.Available().String(), days.String()))
		}
		res := tx.Model(&models.LeaveBalance{}).
			Where("id = ? AND pending + ? <= allocated - used", bal.ID, days).
			Update("pending", gorm.Expr("pending + ?", days))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewConflict("leave balance changed concurrently, retry")
		}
		if err := tx.Create(&app).Error; err != nil {
			return err
		}
		approval, err = s.approvals.Submit(tx, ApprovalSubmission{
			EntityType: models.ApprovalLeaveApplication,
			EntityID:   app.ID,
			Payload: map[string]interface{}{
				"employee":   emp.FullName,
				"leave_type": lt.Code,
				"from_date":  from.Format(dateLayout),
				"to_date":    to.Format(dateLayout),
				"days":       days.String(),
			},
		}, actor)
		if err != nil {
			return err
		}
		app.ApprovalID = uintPtr(approval.ID)
		if err := tx.Model(&app).Update("approval_id", approval.ID).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "leave_application", EntityID: app.ID, Action: "apply", Actor: actor, After: app})
	})
	if err != nil {
		return nil, err
	}
	s.approvals.Announce(approval, actor, fmt.Sprintf("%s %s %s to %s (%s days)", emp.FullName, lt.Code,
		from.Format(dateLayout), to.Format(dateLayout), days.String()))
	return &app, nil
}

func (s *LeaveService) loadForDecision(tx *gorm.DB, id uint) (*models.LeaveApplication, error) {
	var app models.LeaveApplication
	if err := tx.First(&app, id).Error; err != nil {
		return nil, notFoundOr(err, "leave application not found")
	}
	return &app, nil
}

func (s *LeaveService) OnApproved(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	app, err := s.loadForDecision(tx, req.EntityID)
	if err != nil {
		return err
	}
	if err := moveStatus(tx, &models.LeaveApplication{}, app.ID, []string{models.LeavePending}, models.LeaveApproved, nil); err != nil {
		return err
	}
	if err := tx.Model(&models.LeaveBalance{}).
		Where("employee_id = ? AND leave_type_id = ? AND year = ?", app.EmployeeID, app.LeaveTypeID, app.FromDate.Year()).
		Updates(map[string]interface{}{
			"pending": gorm.Expr("pending - ?", app.Days),
			"used":    gorm.Expr("used + ?", app.Days),
		}).Error; err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{EntityType: "leave_application", EntityID: app.ID, Action: "approve", Actor: actor,
		After: map[string]interface{}{"status": models.LeaveApproved, "days": app.Days.String()}})
}

func (s *LeaveService) OnRejected(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	app, err := s.loadForDecision(tx, req.EntityID)
	if err != nil {
		return err
	}
	if err := moveStatus(tx, &models.LeaveApplication{}, app.ID, []string{models.LeavePending}, models.LeaveRejected, nil); err != nil {
		return err
	}
	if err := s.releasePending(tx, app); err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{EntityType: "leave_application", EntityID: app.ID, Action: "reject", Actor: actor,
		After: map[string]interface{}{"status": models.LeaveRejected}})
}

func (s *LeaveService) releasePending(tx *gorm.DB, app *models.LeaveApplication) error {
	return tx.Model(&models.LeaveBalance{}).
		Where("employee_id = ? AND leave_type_id = ? AND year = ?", app.EmployeeID, app.LeaveTypeID, app.FromDate.Year()).
		Update("pending", gorm.Expr("pending - ?", app.Days)).Error
}

// Cancel withdraws a pending leave or gives back the days of an approved
// one.
func (s *LeaveService) Cancel(id uint, actor *Actor) (*models.LeaveApplication, error) {
	app, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolveEmployee(app.EmployeeID, actor); err != nil {
		return nil, err
	}
	if app.Status != models.LeavePending && app.Status != models.LeaveApproved {
		return nil, response.NewConflict("leave is already " + app.Status)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, &models.LeaveApplication{}, id, []string{app.Status}, models.LeaveCancelled, nil); err != nil {
			return err
		}
		if app.Status == models.LeavePending {
			if err := s.releasePending(tx, app); err != nil {
				return err
			}
			if err := s.approvals.CancelPending(tx, models.ApprovalLeaveApplication, id, actor); err != nil {
				return err
			}
		} else if err := tx.Model(&models.LeaveBalance{}).
			Where("employee_id = ? AND leave_type_id = ? AND year = ?", app.EmployeeID, app.LeaveTypeID, app.FromDate.Year()).
			Update("used", gorm.Expr("used - ?", app.Days)).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "leave_application", EntityID: id, Action: "cancel", Actor: actor,
			Before: map[string]interface{}{"status": app.Status}, After: map[string]interface{}{"status": models.LeaveCancelled}})
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *LeaveService) GetByID(id uint) (*models.LeaveApplication, error) {
	var app models.LeaveApplication
	if err := s.db.Preload("Employee").Preload("LeaveType").First(&app, id).Error; err != nil {
		return nil, notFoundOr(err, "leave application not found")
	}
	return &app, nil
}

func (s *LeaveService) List(req *LeaveListRequest) (*PageResult[models.LeaveApplication], error) {
	query := s.db.Model(&models.LeaveApplication{}).Preload("Employee").Preload("LeaveType")
	if req.EmployeeID > 0 {
		query = query.Where("employee_id = ?", req.EmployeeID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Year > 0 {
		query = query.Where("from_date >= ? AND from_date < ?",
			time.Date(req.Year, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(req.Year+1, 1, 1, 0, 0, 0, 0, time.UTC))
	}
	return paginate[models.LeaveApplication](query, &req.PageRequest, "from_date DESC, id DESC")
}

// Mine lists the caller's own applications.
func (s *LeaveService) Mine(actor *Actor, req *LeaveListRequest) (*PageResult[models.LeaveApplication], error) {
	emp, err := employeeForUser(s.db, actor.UserID)
	if err != nil {
		return nil, err
	}
	req.EmployeeID = emp.ID
	return s.List(req)
}

// RolloverResult reports one year-end run.
type RolloverResult struct {
	Year     int `json:"year"`
	Created  int `json:"created"`
	Adjusted int `json:"adjusted"`
	Skipped  int `json:"skipped"`
}

// Rollover opens year's balances for every active employee. Carry-forward
// types add the unused part of the previous year, capped at the type's
// maximum. A carry-forward balance opened early (by a balance lookup or an
// application dated in the new year) is brought up to the final carry
// figure; other existing balances are left alone. Reruns are no-ops.
func (s *LeaveService) Rollover(year int) (*RolloverResult, error) {
	types, err := s.ListTypes()
	if err != nil {
		return nil, err
	}
	var employees []models.Employee
	if err := s.db.Where("status = ?", "active").Find(&employees).Error; err != nil {
		return nil, err
	}

	result := &RolloverResult{Year: year}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, emp := range employees {
			for i := range types {
				lt := &types[i]
				allocated, err := openingAllocation(tx, emp.ID, lt, year)
				if err != nil {
					return err
				}
				row := models.LeaveBalance{EmployeeID: emp.ID, LeaveTypeID: lt.ID, Year: year, Allocated: allocated}
				res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 1 {
					result.Created++
					continue
				}
				if !lt.CarryForward {
					result.Skipped++
					continue
				}
				var existing models.LeaveBalance
				if err := tx.Where("employee_id = ? AND leave_type_id = ? AND year = ?", emp.ID, lt.ID, year).First(&existing).Error; err != nil {
					return err
				}
				if existing.Allocated.Equal(allocated) {
					result.Skipped++
					continue
				}
				if err := tx.Model(&existing).Update("allocated", allocated).Error; err != nil {
					return err
				}
				result.Adjusted++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	LogInfo("Leave", "Rollover", toJSON(result), nil, "", "", nil)
	return result, nil
}

// StartLeaveRolloverScheduler opens the new year's balances at 00:10 on
// 1 January, company time. Only one instance runs per year.
func StartLeaveRolloverScheduler(svc *LeaveService, locks *SchedulerLockService, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc("10 0 1 1 *", func() {
		year := time.Now().In(loc).Year()
		if locks != nil {
			ok, err := locks.TryAcquire("leave_rollover", strconv.Itoa(year), 6*time.Hour)
			if err != nil || !ok {
				return
			}
		}
		res, err := svc.Rollover(year)
		if err != nil {
			logger.Error().Err(err).Int("year", year).Msg("leave rollover failed")
			return
		}
		raw, _ := json.Marshal(res)
		logger.Info().RawJSON("result", raw).Msg("leave rollover finished")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
