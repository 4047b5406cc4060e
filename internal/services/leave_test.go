package services

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
)

type leaveFixture struct {
	staff, hr, other *Actor
	employee         *models.Employee
	otherEmployee    *models.Employee
	casual, earned   *models.LeaveType
}

func newLeaveFixture(t *testing.T, e *testEnv) *leaveFixture {
	t.Helper()
	f := &leaveFixture{
		staff: e.user(t, "anita", models.RoleEmployee),
		hr:    e.user(t, "farah", models.RoleHR),
		other: e.user(t, "vikram", models.RoleEmployee),
	}
	employees := NewEmployeeService(e.db, e.audit)
	var err error
	f.employee, err = employees.Create(&EmployeeRequest{EmployeeCode: "E001", FullName: "Anita Rao", UserID: &f.staff.UserID}, f.hr)
	require.NoError(t, err)
	f.otherEmployee, err = employees.Create(&EmployeeRequest{EmployeeCode: "E002", FullName: "Vikram Shah", UserID: &f.other.UserID}, f.hr)
	require.NoError(t, err)

	types, err := e.leave.ListTypes()
	require.NoError(t, err)
	require.Len(t, types, 3)
	for i := range types {
		switch types[i].Code {
		case "CL":
			f.casual = &types[i]
		case "EL":
			f.earned = &types[i]
		}
	}
	require.NotNil(t, f.casual)
	require.NotNil(t, f.earned)
	return f
}

func (f *leaveFixture) balance(t *testing.T, e *testEnv, lt *models.LeaveType) models.LeaveBalance {
	t.Helper()
	rows, err := e.leave.Balances(f.employee.ID, 2025)
	require.NoError(t, err)
	for _, b := range rows {
		if b.LeaveTypeID == lt.ID {
			return b
		}
	}
	t.Fatalf("no balance for %s", lt.Code)
	return models.LeaveBalance{}
}

func TestLeaveService_ApplyApproveCancel(t *testing.T) {
	e := newTestEnv(t)
	f := newLeaveFixture(t, e)

	b := f.balance(t, e, f.casual)
	assert.True(t, b.Allocated.Equal(dec("12")))
	assert.True(t, b.Available().Equal(dec("12")))

	// Mon 9 June to Fri 13 June with a company holiday on Wednesday
	_, err := e.holidays.Create(&HolidayRequest{Date: "2025-06-11", Name: "Plant maintenance"})
	require.NoError(t, err)
	app, err := e.leave.Apply(&LeaveApplyRequest{LeaveTypeID: f.casual.ID, FromDate: "2025-06-09", ToDate: "2025-06-15", Reason: "family"}, f.staff)
	require.NoError(t, err)
	assert.True(t, app.Days.Equal(dec("4")), app.Days.String())
	assert.Equal(t, models.LeavePending, app.Status)
	require.NotNil(t, app.ApprovalID)

	b = f.balance(t, e, f.casual)
	assert.True(t, b.Pending.Equal(dec("4")))
	assert.True(t, b.Available().Equal(dec("8")))

	_, err = e.leave.Apply(&LeaveApplyRequest{LeaveTypeID: f.casual.ID, FromDate: "2025-06-13", ToDate: "2025-06-13"}, f.staff)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err), "overlaps the pending leave")

	_, err = e.approvals.Approve(*app.ApprovalID, f.staff, "")
	assert.Equal(t, http.StatusForbidden, response.StatusOf(err))
	_, err = e.approvals.Approve(*app.ApprovalID, f.hr, "enjoy")
	require.NoError(t, err)

	got, err := e.leave.GetByID(app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveApproved, got.Status)
	b = f.balance(t, e, f.casual)
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Used.Equal(dec("4")))

	_, err = e.leave.Apply(&LeaveApplyRequest{LeaveTypeID: f.casual.ID, FromDate: "2025-07-01", ToDate: "2025-07-11"}, f.staff)
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusOf(err), "9 working days against 8 available")

	_, err = e.leave.Cancel(app.ID, f.other)
	assert.Equal(t, http.StatusForbidden, response.StatusOf(err))

	cancelled, err := e.leave.Cancel(app.ID, f.staff)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveCancelled, cancelled.Status)
	b = f.balance(t, e, f.casual)
	assert.True(t, b.Used.IsZero())
	assert.True(t, b.Available().Equal(dec("12")))

	_, err = e.leave.Cancel(app.ID, f.staff)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))
}

func TestLeaveService_RejectReleasesPending(t *testing.T) {
	e := newTestEnv(t)
	f := newLeaveFixture(t, e)

	app, err := e.leave.Apply(&LeaveApplyRequest{LeaveTypeID: f.casual.ID, FromDate: "2025-06-09", ToDate: "2025-06-10"}, f.staff)
	require.NoError(t, err)
	_, err = e.approvals.Reject(*app.ApprovalID, f.hr, "quarter close")
	require.NoError(t, err)

	got, err := e.leave.GetByID(app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaveRejected, got.Status)
	b := f.balance(t, e, f.casual)
	assert.True(t, b.Pending.IsZero())
	assert.True(t, b.Available().Equal(dec("12")))

	// the same days can be applied for again
	_, err = e.leave.Apply(&LeaveApplyRequest{LeaveTypeID: f.casual.ID, FromDate: "2025-06-09", ToDate: "2025-06-10"}, f.staff)
	require.NoError(t, err)
}

func TestLeaveService_CancelPendingWithdrawsApproval(t *testing.T) {
	e := newTestEnv(t)
	f := newLeaveFixture(t, e)

	app, err := e.leave.Apply(&LeaveApplyRequest{LeaveTypeID: f.casual.ID, FromDate: "2025-06-09", ToDate: "2025-06-09"}, f.staff)
	require.NoError(t, err)
	_, err = e.leave.Cancel(app.ID, f.staff)
	require.NoError(t, err)

	a, err := e.approvals.GetByID(*app.ApprovalID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalCancelled, a.Status)
	assert.True(t, f.balance(t, e, f.casual).Pending.IsZero())
}

func TestLeaveService_ApplyValidation(t *testing.T) {
	e := newTestEnv(t)
	f := newLeaveFixture(t, e)

	cases := []struct {
		name string
		req  LeaveApplyRequest
		want int
	}{
		{"reversed range", LeaveApplyRequest{FromDate: "2025-06-10", ToDate: "2025-06-09"}, http.StatusBadRequest},
		{"spans two years", LeaveApplyRequest{FromDate: "2025-12-31", ToDate: "2026-01-02"}, http.StatusBadRequest},
		{"half day over two days", LeaveApplyRequest{FromDate: "2025-06-09", ToDate: "2025-06-10", HalfDay: true}, http.StatusBadRequest},
		{"weekend only", LeaveApplyRequest{FromDate: "2025-06-14", ToDate: "2025-06-15"}, http.StatusBadRequest},
		{"bad date", LeaveApplyRequest{FromDate: "09/06/2025", ToDate: "2025-06-10"}, http.StatusBadRequest},
		{"unknown type", LeaveApplyRequest{LeaveTypeID: 999, FromDate: "2025-06-09", ToDate: "2025-06-09"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := tc.req
			if req.LeaveTypeID == 0 {
				req.LeaveTypeID = f.casual.ID
			}
			_, err := e.leave.Apply(&req, f.staff)
			assert.Equal(t, tc.want, response.StatusOf(err))
		})
	}

	app, err := e.leave.Apply(&LeaveApplyRequest{LeaveTypeID: f.casual.ID, FromDate: "2025-06-09", ToDate: "2025-06-09", HalfDay: true}, f.staff)
	require.NoError(t, err)
	assert.True(t, app.Days.Equal(dec("0.5")))
}

func TestLeaveService_ActingForAnotherEmployee(t *testing.T) {
	e := newTestEnv(t)
	f := newLeaveFixture(t, e)

	_, err := e.leave.Apply(&LeaveApplyRequest{EmployeeID: f.otherEmployee.ID, LeaveTypeID: f.casual.ID, FromDate: "2025-06-09", ToDate: "2025-06-09"}, f.staff)
	assert.Equal(t, http.StatusForbidden, response.StatusOf(err))

	app, err := e.leave.Apply(&LeaveApplyRequest{EmployeeID: f.otherEmployee.ID, LeaveTypeID: f.casual.ID, FromDate: "2025-06-09", ToDate: "2025-06-09"}, f.hr)
	require.NoError(t, err)
	assert.Equal(t, f.otherEmployee.ID, app.EmployeeID)

	_, err = e.leave.Apply(&LeaveApplyRequest{LeaveTypeID: f.casual.ID, FromDate: "2025-06-09", ToDate: "2025-06-09"}, f.hr)
	assert.Equal(t, http.StatusNotFound, response.StatusOf(err), "hr user has no employee record")

	mine, err := e.leave.Mine(f.other, &LeaveListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.Total)

	list, err := e.leave.List(&LeaveListRequest{Year: 2024})
	require.NoError(t, err)
	assert.Zero(t, list.Total)
}

func TestLeaveService_Rollover(t *testing.T) {
	e := newTestEnv(t)
	f := newLeaveFixture(t, e)

	require.NoError(t, e.db.Create(&models.LeaveBalance{EmployeeID: f.employee.ID, LeaveTypeID: f.earned.ID, Year: 2024,
		Allocated: dec("15"), Used: dec("3")}).Error)
	require.NoError(t, e.db.Create(&models.LeaveBalance{EmployeeID: f.otherEmployee.ID, LeaveTypeID: f.earned.ID, Year: 2024,
		Allocated: dec("45"), Used: dec("0")}).Error)
	require.NoError(t, e.db.Create(&models.LeaveBalance{EmployeeID: f.employee.ID, LeaveTypeID: f.casual.ID, Year: 2024,
		Allocated: dec("12"), Used: dec("2")}).Error)

	res, err := e.leave.Rollover(2025)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Created)
	assert.Zero(t, res.Skipped)

	assert.True(t, f.balance(t, e, f.earned).Allocated.Equal(dec("27")), "15 quota + 12 unused")
	assert.True(t, f.balance(t, e, f.casual).Allocated.Equal(dec("12")), "casual leave does not carry")

	var capped models.LeaveBalance
	require.NoError(t, e.db.Where("employee_id = ? AND leave_type_id = ? AND year = ?", f.otherEmployee.ID, f.earned.ID, 2025).First(&capped).Error)
	assert.True(t, capped.Allocated.Equal(dec("45")), "carry capped at 30")

	res, err = e.leave.Rollover(2025)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Adjusted)
	assert.Equal(t, 6, res.Skipped)
}

func TestLeaveService_EarlyBalanceCarriesForward(t *testing.T) {
	e := newTestEnv(t)
	f := newLeaveFixture(t, e)

	prev := models.LeaveBalance{EmployeeID: f.employee.ID, LeaveTypeID: f.earned.ID, Year: 2024,
		Allocated: dec("15"), Used: dec("3")}
	require.NoError(t, e.db.Create(&prev).Error)

	// opened by a lookup before the rollover job ran
	assert.True(t, f.balance(t, e, f.earned).Allocated.Equal(dec("27")), "15 quota + 12 unused")

	res, err := e.leave.Rollover(2025)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created, "other employee only")
	assert.Zero(t, res.Adjusted)
	assert.Equal(t, 3, res.Skipped)
	assert.True(t, f.balance(t, e, f.earned).Allocated.Equal(dec("27")))

	// late 2024 leave approved after the new year opened
	require.NoError(t, e.db.Model(&prev).Update("used", dec("5")).Error)
	res, err = e.leave.Rollover(2025)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Equal(t, 1, res.Adjusted)
	assert.Equal(t, 5, res.Skipped)
	assert.True(t, f.balance(t, e, f.earned).Allocated.Equal(dec("25")))
}
