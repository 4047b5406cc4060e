package services

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
)

func TestEstimationService_PricingAndApproval(t *testing.T) {
	e := newTestEnv(t)
	estimator := e.user(t, "ravi", models.RoleEstimator)
	manager := e.user(t, "meera", models.RoleManager)
	c := e.newCase(t, estimator)

	est, err := e.estimations.Create(&EstimationRequest{CaseID: c.ID, Lines: []EstimationLineRequest{
		{Description: "VFD 7.5kW", Quantity: dec("3"), UnitCost: dec("18250.50"), MarginPercent: dec("12.5")},
		{Description: "Commissioning", Quantity: dec("1"), UnitCost: dec("15000"), MarginPercent: dec("0")},
	}}, estimator)
	require.NoError(t, err)
	assert.Regexp(t, `^VESPL/EST/\d{4}/001$`, est.EstimationNo)
	assert.True(t, est.CostTotal.Equal(dec("69751.50")), est.CostTotal.String())
	// 54751.50 * 1.125 = 61595.4375 -> 61595.44
	assert.True(t, est.SellTotal.Equal(dec("76595.44")), est.SellTotal.String())

	_, err = e.estimations.Create(&EstimationRequest{CaseID: c.ID, Lines: []EstimationLineRequest{
		{Description: "bad", Quantity: dec("0"), UnitCost: dec("1")},
	}}, estimator)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))

	approval, err := e.estimations.Submit(est.ID, estimator)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalEstimation, approval.EntityType)

	_, err = e.estimations.Update(est.ID, &EstimationRequest{CaseID: c.ID, Lines: []EstimationLineRequest{
		{Description: "x", Quantity: dec("1"), UnitCost: dec("1")},
	}}, estimator)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	_, err = e.approvals.Reject(approval.ID, manager, "margin too thin")
	require.NoError(t, err)
	got, err := e.estimations.GetByID(est.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)

	updated, err := e.estimations.Update(est.ID, &EstimationRequest{CaseID: c.ID, Lines: []EstimationLineRequest{
		{Description: "VFD 7.5kW", Quantity: dec("3"), UnitCost: dec("18250.50"), MarginPercent: dec("20")},
	}}, estimator)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, updated.Status)
	assert.Len(t, updated.Lines, 1)

	approval, err = e.estimations.Submit(est.ID, estimator)
	require.NoError(t, err)
	_, err = e.approvals.Approve(approval.ID, manager, "")
	require.NoError(t, err)
	got, err = e.estimations.GetByID(est.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)

	assert.Equal(t, http.StatusConflict, response.StatusOf(e.estimations.Delete(est.ID, estimator)))
}

func TestEstimationService_ClosedCaseRefused(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	c := e.newCase(t, sales)
	e.move(t, c.ID, "cancelled", sales)

	_, err := e.estimations.Create(&EstimationRequest{CaseID: c.ID, Lines: []EstimationLineRequest{
		{Description: "x", Quantity: dec("1"), UnitCost: dec("1")},
	}}, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	_, err = e.estimations.Create(&EstimationRequest{CaseID: 999, Lines: []EstimationLineRequest{
		{Description: "x", Quantity: dec("1"), UnitCost: dec("1")},
	}}, sales)
	assert.Equal(t, http.StatusNotFound, response.StatusOf(err))
}

func TestQuotationService_FromEstimation(t *testing.T) {
	e := newTestEnv(t)
	estimator := e.user(t, "ravi", models.RoleEstimator)
	manager := e.user(t, "meera", models.RoleManager)
	sales := e.user(t, "priya", models.RoleSales)
	c := e.newCase(t, sales)

	draft, err := e.estimations.Create(&EstimationRequest{CaseID: c.ID, Lines: []EstimationLineRequest{
		{Description: "x", Quantity: dec("1"), UnitCost: dec("1")},
	}}, estimator)
	require.NoError(t, err)
	_, err = e.quotations.CreateFromEstimation(draft.ID, &QuotationFromEstimationRequest{}, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	est := e.approvedEstimation(t, c.ID, estimator, manager)
	q, err := e.quotations.CreateFromEstimation(est.ID, &QuotationFromEstimationRequest{TaxPercent: dec("18"), ValidUntil: "2099-12-31"}, sales)
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.True(t, q.Lines[0].UnitPrice.Equal(dec("60000")))
	assert.True(t, q.Subtotal.Equal(dec("120000")))
	assert.True(t, q.TaxAmount.Equal(dec("21600")))
	assert.True(t, q.GrandTotal.Equal(dec("141600")))
	require.NotNil(t, q.EstimationID)
	assert.Equal(t, est.ID, *q.EstimationID)
}

func TestQuotationService_DiscountNeedsApproval(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	manager := e.user(t, "meera", models.RoleManager)
	c := e.newCase(t, sales)

	q, err := e.quotations.Create(&QuotationRequest{CaseID: c.ID, Discount: dec("150"), TaxPercent: dec("18"),
		Lines: []QuotationLineRequest{{Description: "Sensor", Quantity: dec("10"), UnitPrice: dec("100")}}}, sales)
	require.NoError(t, err)
	assert.True(t, q.GrandTotal.Equal(dec("1003")), q.GrandTotal.String())
	assert.True(t, DiscountPercent(q).Equal(dec("15")))

	res, err := e.quotations.Send(q.ID, sales)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	require.NotNil(t, res.Approval)
	assert.Equal(t, models.StatusSubmitted, res.Quotation.Status)

	_, err = e.approvals.Reject(res.Approval.ID, manager, "max 10%")
	require.NoError(t, err)
	got, err := e.quotations.GetByID(q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)

	res, err = e.quotations.Send(q.ID, sales)
	require.NoError(t, err)
	_, err = e.approvals.Approve(res.Approval.ID, manager, "strategic client")
	require.NoError(t, err)
	got, err = e.quotations.GetByID(q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, got.Status)
	assert.NotNil(t, got.SentAt)

	_, err = e.quotations.Create(&QuotationRequest{CaseID: c.ID, Discount: dec("5000"),
		Lines: []QuotationLineRequest{{Description: "Sensor", Quantity: dec("1"), UnitPrice: dec("100")}}}, sales)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))
}

func TestQuotationService_AcceptAfterValidityExpires(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	c := e.newCase(t, sales)

	q, err := e.quotations.Create(&QuotationRequest{CaseID: c.ID, ValidUntil: "2025-03-31",
		Lines: []QuotationLineRequest{{Description: "Panel", Quantity: dec("1"), UnitPrice: dec("500")}}}, sales)
	require.NoError(t, err)
	_, err = e.quotations.Send(q.ID, sales)
	require.NoError(t, err)

	e.quotations.now = func() time.Time { return time.Date(2025, 4, 2, 11, 0, 0, 0, time.UTC) }
	_, err = e.quotations.Accept(q.ID, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	got, err := e.quotations.GetByID(q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, got.Status)
}

func TestSalesOrderService_Lifecycle(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	clients := NewClientService(e.db, e.audit)
	client, err := clients.Create(&ClientRequest{Code: "TML", Name: "Tata Motors"}, sales)
	require.NoError(t, err)
	c, err := e.cases.Create(&CaseCreateRequest{Title: "Conveyor PLC", ClientID: &client.ID}, sales)
	require.NoError(t, err)

	q, err := e.quotations.Create(&QuotationRequest{CaseID: c.ID,
		Lines: []QuotationLineRequest{{Description: "PLC", Quantity: dec("1"), UnitPrice: dec("2500")}}}, sales)
	require.NoError(t, err)

	_, err = e.salesOrders.Create(&SalesOrderRequest{QuotationID: q.ID}, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err), "quotation not accepted yet")

	_, err = e.quotations.Send(q.ID, sales)
	require.NoError(t, err)
	_, err = e.quotations.Accept(q.ID, sales)
	require.NoError(t, err)

	so, err := e.salesOrders.Create(&SalesOrderRequest{QuotationID: q.ID, CustomerPONumber: " 4500012 ", DeliveryDate: "2025-09-30"}, sales)
	require.NoError(t, err)
	assert.Equal(t, "4500012", so.CustomerPONumber)
	assert.True(t, so.Amount.Equal(dec("2500")))
	require.NotNil(t, so.ClientID)
	assert.Equal(t, client.ID, *so.ClientID)

	_, err = e.salesOrders.Create(&SalesOrderRequest{QuotationID: q.ID}, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	_, err = e.salesOrders.Complete(so.ID, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	confirmed, err := e.salesOrders.Confirm(so.ID, sales)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.NotNil(t, confirmed.ConfirmedAt)

	done, err := e.salesOrders.Complete(so.ID, sales)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)

	_, err = e.salesOrders.Cancel(so.ID, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))
}
