package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services/workflow"
)

func TestDashboardService_Get(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	tech := e.user(t, "arun", models.RoleTechnician)

	t0 := time.Now().Add(-3 * time.Hour)
	e.cases.now = func() time.Time { return t0 }
	mine, err := e.cases.Create(&CaseCreateRequest{Title: "Pump house automation", AssignedTo: &tech.UserID}, sales)
	require.NoError(t, err)
	moved := e.newCase(t, sales)
	cancelled := e.newCase(t, sales)

	e.cases.now = func() time.Time { return t0.Add(2 * time.Hour) }
	e.move(t, moved.ID, "estimation", sales)
	e.move(t, cancelled.ID, "cancelled", sales)
	require.NoError(t, e.db.Model(&models.Case{}).Where("id = ?", mine.ID).Update("sla_breached", true).Error)

	// a PO waiting for sign-off
	f := newPurchaseFixture(t, e)
	po, err := e.pos.Create(&PurchaseOrderRequest{VendorID: f.vendor.ID, WarehouseID: f.warehouse.ID,
		Lines: []POLineRequest{{ItemID: f.relay.ID, Quantity: dec("1"), UnitPrice: dec("310")}}}, f.buyer)
	require.NoError(t, err)
	_, err = e.pos.Submit(po.ID, f.buyer)
	require.NoError(t, err)

	svc := NewDashboardService(e.db, e.approvals, e.inventory)
	out, err := svc.Get(&DashboardRequest{}, tech)
	require.NoError(t, err)

	assert.Equal(t, 30, out.WindowDays)
	require.Len(t, out.CasesByState, len(workflow.AllStates()))
	assert.Equal(t, string(workflow.Enquiry), out.CasesByState[0].State)
	counts := map[string]int64{}
	for _, c := range out.CasesByState {
		counts[c.State] = c.Count
	}
	assert.Equal(t, int64(1), counts["enquiry"])
	assert.Equal(t, int64(1), counts["estimation"])
	assert.Equal(t, int64(1), counts["cancelled"])
	assert.Zero(t, counts["production"])
	assert.Equal(t, int64(2), out.OpenCases)
	assert.Equal(t, int64(1), out.BreachedCases)

	require.Len(t, out.PendingApprovals, 1)
	assert.Equal(t, models.ApprovalPurchaseOrder, out.PendingApprovals[0].EntityType)
	assert.Equal(t, int64(1), out.POsAwaitingApprove)
	assert.Equal(t, int64(1), out.LowStockItems, "cable has a reorder level and no stock")

	require.Len(t, out.AverageStateHours, 1)
	assert.Equal(t, "enquiry", out.AverageStateHours[0].State)
	assert.Equal(t, int64(2), out.AverageStateHours[0].Samples)
	assert.InDelta(t, 2.0, out.AverageStateHours[0].AverageHours, 0.01)

	require.Len(t, out.RecentTransitions, 2)
	assert.Equal(t, "priya", out.RecentTransitions[0].Actor)

	require.Len(t, out.MyOpenCases, 1)
	assert.Equal(t, mine.ID, out.MyOpenCases[0].ID)
	assert.Zero(t, out.MyApprovals, "technicians decide nothing")

	out, err = svc.Get(&DashboardRequest{Days: 7}, f.manager)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.MyApprovals)
	assert.Empty(t, out.MyOpenCases)

	out, err = svc.Get(&DashboardRequest{LocationID: 999}, f.manager)
	require.NoError(t, err)
	assert.Zero(t, out.OpenCases)
	assert.Empty(t, out.RecentTransitions)
}
