package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func newAttendanceFixture(t *testing.T, accessCfg *config.AccessConfig) (*testEnv, *AttendanceService, *Actor, *models.Employee) {
	t.Helper()
	e := newTestEnv(t)
	staff := e.user(t, "arun", models.RoleTechnician)
	emp, err := NewEmployeeService(e.db, e.audit).Create(&EmployeeRequest{EmployeeCode: "T01", FullName: "Arun Kumar", UserID: &staff.UserID}, staff)
	require.NoError(t, err)
	var access *AccessService
	if accessCfg != nil {
		access = NewAccessService(e.db, accessCfg, e.configSvc, e.audit)
	}
	return e, NewAttendanceService(e.db, e.audit, access, e.configSvc, ist), staff, emp
}

func TestAttendanceService_CheckInOut(t *testing.T) {
	e, svc, staff, emp := newAttendanceFixture(t, nil)

	today, err := svc.Today(staff)
	require.NoError(t, err)
	assert.Nil(t, today)

	svc.now = func() time.Time { return time.Date(2025, 6, 9, 9, 40, 0, 0, ist) }
	_, err = svc.CheckOut(staff)
	assert.Equal(t, http.StatusNotFound, response.StatusOf(err))

	in, err := svc.CheckIn(&CheckInRequest{}, staff)
	require.NoError(t, err)
	assert.False(t, in.IsLate, "inside the 15 minute grace")
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), in.Date)

	_, err = svc.CheckIn(&CheckInRequest{}, staff)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	svc.now = func() time.Time { return time.Date(2025, 6, 9, 18, 10, 0, 0, ist) }
	out, err := svc.CheckOut(staff)
	require.NoError(t, err)
	assert.Equal(t, 510, out.WorkMinutes)
	assert.Equal(t, models.AttendancePresent, out.Status)

	_, err = svc.CheckOut(staff)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	// late arrival, short day
	svc.now = func() time.Time { return time.Date(2025, 6, 10, 9, 50, 0, 0, ist) }
	in, err = svc.CheckIn(&CheckInRequest{}, staff)
	require.NoError(t, err)
	assert.True(t, in.IsLate)
	svc.now = func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, ist) }
	out, err = svc.CheckOut(staff)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceHalfDay, out.Status)

	list, err := svc.List(&AttendanceListRequest{EmployeeID: emp.ID, From: "2025-06-10", To: "2025-06-10"})
	require.NoError(t, err)
	require.Equal(t, int64(1), list.Total)
	assert.Equal(t, models.AttendanceHalfDay, list.Items[0].Status)

	report, err := svc.MonthlyReport("2025-06", 0)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "T01", report[0].EmployeeCode)
	assert.Equal(t, 1, report[0].PresentDays)
	assert.Equal(t, 1, report[0].HalfDays)
	assert.Equal(t, 1, report[0].LateDays)
	assert.Equal(t, 510+130, report[0].TotalMinutes)

	_, err = svc.MonthlyReport("June", 0)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))

	var audits int64
	e.db.Model(&models.AuditLog{}).Where("entity_type = ?", "attendance").Count(&audits)
	assert.Equal(t, int64(4), audits)
}

func TestAttendanceService_DayFollowsCompanyTimezone(t *testing.T) {
	_, svc, staff, _ := newAttendanceFixture(t, nil)

	// 00:30 IST on the 10th is still the 9th in UTC
	svc.now = func() time.Time { return time.Date(2025, 6, 9, 19, 0, 0, 0, time.UTC) }
	in, err := svc.CheckIn(&CheckInRequest{}, staff)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), in.Date)
}

func TestAttendanceService_Geofence(t *testing.T) {
	e, svc, staff, _ := newAttendanceFixture(t, &config.AccessConfig{Enabled: true, GeofenceAttendance: true})
	office := seedPuneOffice(t, e.db)
	svc.now = func() time.Time { return time.Date(2025, 6, 9, 9, 0, 0, 0, ist) }

	staff.IP = "192.168.10.20"
	_, err := svc.CheckIn(&CheckInRequest{}, staff)
	assert.Equal(t, http.StatusForbidden, response.StatusOf(err), "coordinates required")

	_, err = svc.CheckIn(&CheckInRequest{Latitude: f64(18.5300), Longitude: f64(73.8567)}, staff)
	assert.Equal(t, http.StatusForbidden, response.StatusOf(err), "outside the fence")

	staff.IP = "10.1.1.1"
	_, err = svc.CheckIn(&CheckInRequest{Latitude: f64(18.5210), Longitude: f64(73.8570)}, staff)
	assert.Equal(t, http.StatusForbidden, response.StatusOf(err), "outside the office network")

	staff.IP = "192.168.10.20"
	in, err := svc.CheckIn(&CheckInRequest{Latitude: f64(18.5210), Longitude: f64(73.8570)}, staff)
	require.NoError(t, err)
	require.NotNil(t, in.LocationID)
	assert.Equal(t, office.ID, *in.LocationID)
	require.NotNil(t, in.CheckInLat)
	assert.InDelta(t, 18.5210, *in.CheckInLat, 1e-9)
}
