package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

// HRHandler serves departments, employees and the holiday calendar.
type HRHandler struct {
	departments *services.DepartmentService
	employees   *services.EmployeeService
	holidays    *services.HolidayService
}

func NewHRHandler(departments *services.DepartmentService, employees *services.EmployeeService, holidays *services.HolidayService) *HRHandler {
	return &HRHandler{departments: departments, employees: employees, holidays: holidays}
}

func (h *HRHandler) ListDepartments(c *gin.Context) {
	rows, err := h.departments.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (h *HRHandler) CreateDepartment(c *gin.Context) {
	var req services.DepartmentRequest
	if !bindJSON(c, &req) {
		return
	}
	dept, err := h.departments.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dept)
}

func (h *HRHandler) UpdateDepartment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.DepartmentRequest
	if !bindJSON(c, &req) {
		return
	}
	dept, err := h.departments.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dept)
}

func (h *HRHandler) DeleteDepartment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.departments.Delete(id, middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "department deleted")
}

func (h *HRHandler) ListEmployees(c *gin.Context) {
	var req services.EmployeeListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.employees.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *HRHandler) GetEmployee(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	emp, err := h.employees.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, emp)
}

// Me returns the employee record linked to the caller's login.
// GET /api/employees/me
func (h *HRHandler) Me(c *gin.Context) {
	emp, err := h.employees.ForUser(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, emp)
}

func (h *HRHandler) CreateEmployee(c *gin.Context) {
	var req services.EmployeeRequest
	if !bindJSON(c, &req) {
		return
	}
	emp, err := h.employees.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, emp)
}

func (h *HRHandler) UpdateEmployee(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.EmployeeRequest
	if !bindJSON(c, &req) {
		return
	}
	emp, err := h.employees.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, emp)
}

func (h *HRHandler) DeactivateEmployee(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.employees.Deactivate(id, middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "employee deactivated")
}

func (h *HRHandler) ListHolidays(c *gin.Context) {
	var req services.HolidayListRequest
	if !bindQuery(c, &req) {
		return
	}
	rows, err := h.holidays.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (h *HRHandler) CreateHoliday(c *gin.Context) {
	var req services.HolidayRequest
	if !bindJSON(c, &req) {
		return
	}
	holiday, err := h.holidays.Create(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, holiday)
}

func (h *HRHandler) UpdateHoliday(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.HolidayRequest
	if !bindJSON(c, &req) {
		return
	}
	holiday, err := h.holidays.Update(id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, holiday)
}

func (h *HRHandler) DeleteHoliday(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.holidays.Delete(id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "holiday deleted")
}

func (h *HRHandler) HolidayCountries(c *gin.Context) {
	response.Success(c, h.holidays.GetSupportedCountries())
}

// LeaveHandler serves leave applications and balances.
type LeaveHandler struct {
	leave     *services.LeaveService
	employees *services.EmployeeService
	perms     *services.PermissionCache
}

func NewLeaveHandler(leave *services.LeaveService, employees *services.EmployeeService, perms *services.PermissionCache) *LeaveHandler {
	return &LeaveHandler{leave: leave, employees: employees, perms: perms}
}

func (h *LeaveHandler) Types(c *gin.Context) {
	rows, err := h.leave.ListTypes()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

// Balances returns the caller's balances, or another employee's for leave
// approvers and HR.
// GET /api/leave/balances?employee_id=&year=
func (h *LeaveHandler) Balances(c *gin.Context) {
	year := time.Now().Year()
	if y := c.Query("year"); y != "" {
		v, err := strconv.Atoi(y)
		if err != nil || v < 2000 || v > 2100 {
			response.BadRequest(c, "invalid year")
			return
		}
		year = v
	}

	var employeeID uint
	if raw := c.Query("employee_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			response.BadRequest(c, "invalid employee_id")
			return
		}
		employeeID = uint(id)
	}

	if employeeID == 0 {
		emp, err := h.employees.ForUser(middleware.GetUserID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		employeeID = emp.ID
	} else if !h.canSee(c, employeeID) {
		response.Forbidden(c, "cannot view another employee's balances")
		return
	}

	rows, err := h.leave.Balances(employeeID, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (h *LeaveHandler) Apply(c *gin.Context) {
	var req services.LeaveApplyRequest
	if !bindJSON(c, &req) {
		return
	}
	app, err := h.leave.Apply(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

func (h *LeaveHandler) List(c *gin.Context) {
	var req services.LeaveListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.leave.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *LeaveHandler) Mine(c *gin.Context) {
	var req services.LeaveListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.leave.Mine(middleware.Actor(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *LeaveHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	app, err := h.leave.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !h.canSee(c, app.EmployeeID) {
		response.Forbidden(c, "cannot view another employee's leave")
		return
	}
	response.Success(c, app)
}

// canSee allows leave approvers and HR viewers any employee, everyone else
// only their own record.
func (h *LeaveHandler) canSee(c *gin.Context, employeeID uint) bool {
	role := middleware.GetRole(c)
	if h.perms.Allowed(role, models.ModuleLeave, models.ActionApprove) || h.perms.Allowed(role, models.ModuleHR, models.ActionView) {
		return true
	}
	emp, err := h.employees.ForUser(middleware.GetUserID(c))
	return err == nil && emp.ID == employeeID
}

func (h *LeaveHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	app, err := h.leave.Cancel(id, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, app)
}

// Rollover opens the given year's balances, carrying forward what each
// leave type allows.
// POST /api/leave/rollover?year=
func (h *LeaveHandler) Rollover(c *gin.Context) {
	year, err := strconv.Atoi(c.DefaultQuery("year", strconv.Itoa(time.Now().Year())))
	if err != nil {
		response.BadRequest(c, "invalid year")
		return
	}
	result, err := h.leave.Rollover(year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

type AttendanceHandler struct {
	attendance *services.AttendanceService
	employees  *services.EmployeeService
}

func NewAttendanceHandler(attendance *services.AttendanceService, employees *services.EmployeeService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, employees: employees}
}

func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req services.CheckInRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	row, err := h.attendance.CheckIn(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, row)
}

func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	row, err := h.attendance.CheckOut(middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, row)
}

func (h *AttendanceHandler) Today(c *gin.Context) {
	row, err := h.attendance.Today(middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, row)
}

func (h *AttendanceHandler) List(c *gin.Context) {
	var req services.AttendanceListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.attendance.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

// Mine lists the caller's own attendance.
func (h *AttendanceHandler) Mine(c *gin.Context) {
	var req services.AttendanceListRequest
	if !bindQuery(c, &req) {
		return
	}
	emp, err := h.employees.ForUser(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	req.EmployeeID = emp.ID
	result, err := h.attendance.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

// Report summarises one month per employee.
// GET /api/attendance/report?month=2025-06&employee_id=
func (h *AttendanceHandler) Report(c *gin.Context) {
	var employeeID uint
	if raw := c.Query("employee_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			response.BadRequest(c, "invalid employee_id")
			return
		}
		employeeID = uint(id)
	}
	rows, err := h.attendance.MonthlyReport(c.DefaultQuery("month", time.Now().Format("2006-01")), employeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}
