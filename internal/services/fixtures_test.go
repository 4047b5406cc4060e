package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/models"
	"gorm.io/gorm"
)

// testEnv wires the services that share the approval registry, the way
// bootstrap does.
type testEnv struct {
	db        *gorm.DB
	audit     *AuditService
	perms     *PermissionCache
	queue     *recordingQueue
	approvals *ApprovalService
	seq       *SequenceService
	configSvc *SystemConfigService
	holidays  *HolidayService
	sla       *SLACalculator

	cases        *CaseService
	estimations  *EstimationService
	quotations   *QuotationService
	salesOrders  *SalesOrderService
	inventory    *InventoryService
	vendors      *VendorService
	requisitions *RequisitionService
	pos          *PurchaseOrderService
	grns         *GRNService
	leave        *LeaveService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	e := &testEnv{db: db}
	e.audit = NewAuditService(db)
	e.perms = newTestPermissions(t, db)
	e.queue = &recordingQueue{}
	e.approvals = NewApprovalService(db, e.perms, e.audit, e.queue)
	e.seq = NewSequenceService("VESPL", 4, time.UTC)
	e.configSvc = NewSystemConfigService(db)
	e.holidays = NewHolidayService(db, "NONE", time.UTC)
	e.sla = NewSLACalculator(e.configSvc, e.holidays, &config.WorkflowConfig{})

	e.cases = NewCaseService(db, e.audit, e.approvals, e.perms, e.seq, e.sla)
	e.estimations = NewEstimationService(db, e.audit, e.approvals, e.seq)
	e.quotations = NewQuotationService(db, e.audit, e.approvals, e.seq, e.configSvc)
	e.salesOrders = NewSalesOrderService(db, e.audit, e.seq)
	e.inventory = NewInventoryService(db, e.audit, e.seq)
	e.vendors = NewVendorService(db, e.audit)
	e.requisitions = NewRequisitionService(db, e.audit, e.approvals, e.seq)
	e.pos = NewPurchaseOrderService(db, e.audit, e.approvals, e.seq)
	e.grns = NewGRNService(db, e.audit, e.seq)
	e.leave = NewLeaveService(db, e.audit, e.approvals, e.perms, e.holidays)
	return e
}

func (e *testEnv) user(t *testing.T, username, role string) *Actor {
	t.Helper()
	return actorFor(createTestUser(t, e.db, username, role))
}

func (e *testEnv) newCase(t *testing.T, actor *Actor) *models.Case {
	t.Helper()
	c, err := e.cases.Create(&CaseCreateRequest{Title: "Control panel retrofit"}, actor)
	require.NoError(t, err)
	return c
}

func (e *testEnv) move(t *testing.T, caseID uint, to string, actor *Actor) *models.Case {
	t.Helper()
	res, err := e.cases.Transition(caseID, &TransitionRequest{ToState: to}, actor)
	require.NoError(t, err)
	require.True(t, res.Transitioned)
	return res.Case
}

// approvedEstimation creates an estimation for caseID and walks it
// through approval.
func (e *testEnv) approvedEstimation(t *testing.T, caseID uint, author, approver *Actor) *models.Estimation {
	t.Helper()
	est, err := e.estimations.Create(&EstimationRequest{CaseID: caseID, Lines: []EstimationLineRequest{
		{Description: "PLC panel", Quantity: dec("2"), UnitCost: dec("50000"), MarginPercent: dec("20")},
	}}, author)
	require.NoError(t, err)
	approval, err := e.estimations.Submit(est.ID, author)
	require.NoError(t, err)
	_, err = e.approvals.Approve(approval.ID, approver, "ok")
	require.NoError(t, err)
	est, err = e.estimations.GetByID(est.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, est.Status)
	return est
}

func (e *testEnv) item(t *testing.T, code string, reorder string, actor *Actor) *models.Item {
	t.Helper()
	it, err := e.inventory.CreateItem(&ItemRequest{Code: code, Name: code, Unit: "nos", ReorderLevel: dec(reorder)}, actor)
	require.NoError(t, err)
	return it
}

func (e *testEnv) warehouse(t *testing.T, code string, actor *Actor) *models.Warehouse {
	t.Helper()
	w, err := e.inventory.CreateWarehouse(&WarehouseRequest{Code: code, Name: code + " store"}, actor)
	require.NoError(t, err)
	return w
}

func (e *testEnv) stockOf(t *testing.T, itemID, warehouseID uint) decimal.Decimal {
	t.Helper()
	var s models.Stock
	err := e.db.Where("item_id = ? AND warehouse_id = ?", itemID, warehouseID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return s.Quantity
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
