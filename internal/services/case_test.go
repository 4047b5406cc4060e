package services

import (
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services/workflow"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

func (e *testEnv) forceState(t *testing.T, caseID uint, state string) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Case{}).Where("id = ?", caseID).
		Updates(map[string]interface{}{"current_state": state, "state_entered_at": time.Now()}).Error)
}

func historyActions(t *testing.T, e *testEnv, caseID uint) []string {
	t.Helper()
	rows, err := e.cases.History(caseID)
	require.NoError(t, err)
	out := make([]string, len(rows))
	for i, h := range rows {
		out[i] = h.Action
	}
	return out
}

func TestCaseService_Create(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	e.cases.now = func() time.Time { return now }

	c := e.newCase(t, sales)
	assert.Equal(t, "VESPL/ENQ/2526/001", c.CaseNumber)
	assert.Equal(t, string(workflow.Enquiry), c.CurrentState)
	assert.Equal(t, models.PriorityNormal, c.Priority)
	assert.Equal(t, 1, c.Version)
	require.NotNil(t, c.SLADueAt)
	assert.True(t, c.SLADueAt.Equal(now.Add(24*time.Hour)))

	second := e.newCase(t, sales)
	assert.Equal(t, "VESPL/ENQ/2526/002", second.CaseNumber)

	assert.Equal(t, []string{models.HistoryCreate}, historyActions(t, e, c.ID))

	_, err := e.cases.Create(&CaseCreateRequest{Title: "x", ClientID: uintPtr(999)}, sales)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))
}

func TestCaseService_ListFilters(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	a := e.newCase(t, sales)
	e.newCase(t, sales)
	e.forceState(t, a.ID, string(workflow.Production))

	page, err := e.cases.List(&CaseListRequest{State: "production"})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, a.ID, page.Items[0].ID)

	page, err = e.cases.List(&CaseListRequest{Search: "retrofit"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	_, err = e.cases.List(&CaseListRequest{From: "02-06-2025"})
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))
}

func TestCaseService_GuardBlocksTransition(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	c := e.newCase(t, sales)
	e.move(t, c.ID, "estimation", sales)

	_, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "quotation"}, sales)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusOf(err))
	assert.Contains(t, err.Error(), "approved estimation")

	got, err := e.cases.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "estimation", got.CurrentState)
}

func TestCaseService_InvalidAndTerminalTransitions(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	c := e.newCase(t, sales)

	_, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "production"}, sales)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))

	cancelled := e.move(t, c.ID, "cancelled", sales)
	assert.NotNil(t, cancelled.ClosedAt)
	assert.Nil(t, cancelled.SLADueAt)

	_, err = e.cases.Transition(c.ID, &TransitionRequest{ToState: "enquiry"}, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	_, err = e.cases.Assign(c.ID, &AssignRequest{AssigneeID: sales.UserID}, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))
}

func TestCaseService_FullLifecycle(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	estimator := e.user(t, "ravi", models.RoleEstimator)
	manager := e.user(t, "meera", models.RoleManager)
	tech := e.user(t, "arun", models.RoleTechnician)

	c := e.newCase(t, sales)
	e.move(t, c.ID, "estimation", sales)

	est := e.approvedEstimation(t, c.ID, estimator, manager)
	assert.True(t, est.SellTotal.Equal(dec("120000")))
	e.move(t, c.ID, "quotation", sales)

	q, err := e.quotations.CreateFromEstimation(est.ID, &QuotationFromEstimationRequest{TaxPercent: dec("18")}, sales)
	require.NoError(t, err)
	sent, err := e.quotations.Send(q.ID, sales)
	require.NoError(t, err)
	require.True(t, sent.Sent)
	_, err = e.quotations.Accept(q.ID, sales)
	require.NoError(t, err)
	e.move(t, c.ID, "order", sales)

	_, err = e.cases.Transition(c.ID, &TransitionRequest{ToState: "production"}, sales)
	assert.Equal(t, http.StatusUnprocessableEntity, response.StatusOf(err))

	so, err := e.salesOrders.Create(&SalesOrderRequest{QuotationID: q.ID, CustomerPONumber: "PO-7781"}, sales)
	require.NoError(t, err)
	_, err = e.salesOrders.Confirm(so.ID, manager)
	require.NoError(t, err)

	e.move(t, c.ID, "production", tech)
	e.move(t, c.ID, "delivery", tech)

	res, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "closed", Comment: "installed"}, tech)
	require.NoError(t, err)
	require.False(t, res.Transitioned)
	require.NotNil(t, res.Approval)
	assert.Equal(t, models.ApprovalPending, res.Approval.Status)

	_, err = e.approvals.Approve(res.Approval.ID, tech, "")
	assert.Equal(t, http.StatusForbidden, response.StatusOf(err))

	_, err = e.approvals.Approve(res.Approval.ID, manager, "signed off")
	require.NoError(t, err)

	closed, err := e.cases.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "closed", closed.CurrentState)
	assert.NotNil(t, closed.ClosedAt)

	actions := historyActions(t, e, c.ID)
	assert.Equal(t, models.HistoryCreate, actions[0])
	assert.Contains(t, actions, models.HistoryApprovalRequested)
	assert.Equal(t, models.HistoryTransition, actions[len(actions)-1])

	history, err := e.cases.History(c.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	require.NotNil(t, last.ActorID)
	assert.Equal(t, manager.UserID, *last.ActorID)
	assert.Contains(t, last.Comment, "signed off")
}

func TestCaseService_ApproverMovesGatedTransitionDirectly(t *testing.T) {
	e := newTestEnv(t)
	tech := e.user(t, "arun", models.RoleTechnician)
	manager := e.user(t, "meera", models.RoleManager)
	c := e.newCase(t, tech)
	e.forceState(t, c.ID, "delivery")

	res, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "closed"}, tech)
	require.NoError(t, err)
	require.NotNil(t, res.Approval)

	_, err = e.cases.Transition(c.ID, &TransitionRequest{ToState: "closed"}, tech)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err), "one pending request per case")

	res, err = e.cases.Transition(c.ID, &TransitionRequest{ToState: "closed"}, manager)
	require.NoError(t, err)
	assert.True(t, res.Transitioned)

	var pending int64
	e.db.Model(&models.ApprovalRequest{}).Where("entity_id = ? AND status = ?", c.ID, models.ApprovalPending).Count(&pending)
	assert.Zero(t, pending)
}

func TestCaseService_RejectedApprovalLeavesState(t *testing.T) {
	e := newTestEnv(t)
	tech := e.user(t, "arun", models.RoleTechnician)
	manager := e.user(t, "meera", models.RoleManager)
	c := e.newCase(t, tech)
	e.forceState(t, c.ID, "production")

	res, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "cancelled"}, tech)
	require.NoError(t, err)
	_, err = e.approvals.Reject(res.Approval.ID, manager, "client still wants it")
	require.NoError(t, err)

	got, err := e.cases.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "production", got.CurrentState)
	assert.Contains(t, historyActions(t, e, c.ID), models.HistoryApprovalRejected)
}

func TestCaseService_StaleApprovalIsRefused(t *testing.T) {
	e := newTestEnv(t)
	tech := e.user(t, "arun", models.RoleTechnician)
	manager := e.user(t, "meera", models.RoleManager)
	c := e.newCase(t, tech)
	e.forceState(t, c.ID, "delivery")

	res, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "closed"}, tech)
	require.NoError(t, err)

	// moved behind the workflow's back
	e.forceState(t, c.ID, "production")

	_, err = e.approvals.Approve(res.Approval.ID, manager, "")
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	approval, err := e.approvals.GetByID(res.Approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, approval.Status)
	got, err := e.cases.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "production", got.CurrentState)
}

func TestCaseService_ApprovalSurvivesVersionBump(t *testing.T) {
	e := newTestEnv(t)
	tech := e.user(t, "arun", models.RoleTechnician)
	manager := e.user(t, "meera", models.RoleManager)
	c := e.newCase(t, tech)
	e.forceState(t, c.ID, "delivery")

	res, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "closed"}, tech)
	require.NoError(t, err)

	// an SLA escalation lands while the sign-off is pending
	require.NoError(t, e.db.Model(&models.Case{}).Where("id = ?", c.ID).
		Update("version", gorm.Expr("version + 1")).Error)

	_, err = e.approvals.Approve(res.Approval.ID, manager, "")
	require.NoError(t, err)
	got, err := e.cases.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "closed", got.CurrentState)
}

func TestCaseService_TimelineSkipsUnreadableChanges(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	c := e.newCase(t, sales)
	require.NoError(t, e.db.Create(&models.AuditLog{EntityType: "case", EntityID: c.ID, Action: "update",
		Username: "legacy-import", Changes: "{truncated"}).Error)

	timeline, err := e.cases.Timeline(c.ID)
	require.NoError(t, err)
	var found bool
	for _, entry := range timeline {
		if entry.Actor == "legacy-import" {
			found = true
			assert.Nil(t, entry.Changes)
		}
	}
	assert.True(t, found)
}

func TestCaseService_VersionConflict(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	c := e.newCase(t, sales)

	stale := 7
	_, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "estimation", ExpectedVersion: &stale}, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	v := c.Version
	updated, err := e.cases.Update(c.ID, &CaseUpdateRequest{Title: "Panel retrofit v2", ExpectedVersion: &v}, sales)
	require.NoError(t, err)
	assert.Equal(t, v+1, updated.Version)

	_, err = e.cases.Update(c.ID, &CaseUpdateRequest{Title: "again", ExpectedVersion: &v}, sales)
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))

	// a writer holding the old row loses the conditional update
	tr, err := workflow.Resolve(workflow.Enquiry, workflow.Estimation, "")
	require.NoError(t, err)
	err = e.db.Transaction(func(tx *gorm.DB) error {
		_, err := e.cases.applyTransition(tx, c, tr, "", sales)
		return err
	})
	assert.Equal(t, http.StatusConflict, response.StatusOf(err))
}

func TestCaseService_ConcurrentTransitions(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	c := e.newCase(t, sales)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "estimation"}, sales)
			if err == nil && res.Transitioned {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := e.cases.GetByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestCaseService_HoldAndResumeKeepsRemainingSLA(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	t0 := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	clock := t0
	e.cases.now = func() time.Time { return clock }

	c := e.newCase(t, sales)
	require.True(t, c.SLADueAt.Equal(t0.Add(24*time.Hour)))

	clock = t0.Add(4 * time.Hour)
	held := e.move(t, c.ID, "on_hold", sales)
	assert.Equal(t, "on_hold", held.CurrentState)
	assert.Equal(t, "enquiry", held.PreviousState)
	assert.Nil(t, held.SLADueAt)
	assert.Equal(t, int64(20*3600), held.SLARemainingSeconds)

	_, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "estimation"}, sales)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err), "a held case only resumes to where it was")

	clock = t0.Add(10 * time.Hour)
	resumed := e.move(t, c.ID, "enquiry", sales)
	assert.Equal(t, "enquiry", resumed.CurrentState)
	assert.Empty(t, resumed.PreviousState)
	require.NotNil(t, resumed.SLADueAt)
	assert.True(t, resumed.SLADueAt.Equal(t0.Add(30*time.Hour)))

	actions := historyActions(t, e, c.ID)
	assert.Equal(t, []string{models.HistoryCreate, models.HistoryHold, models.HistoryResume}, actions)

	history, err := e.cases.History(c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6*3600), history[2].DurationSeconds)
}

func TestCaseService_CancelFromHoldNeedsApprovalWhenSourceDid(t *testing.T) {
	e := newTestEnv(t)
	tech := e.user(t, "arun", models.RoleTechnician)
	c := e.newCase(t, tech)
	e.forceState(t, c.ID, "production")
	e.move(t, c.ID, "on_hold", tech)

	res, err := e.cases.Transition(c.ID, &TransitionRequest{ToState: "cancelled"}, tech)
	require.NoError(t, err)
	assert.False(t, res.Transitioned)
	require.NotNil(t, res.Approval)
}

func TestCaseService_AssignAndComment(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	tech := e.user(t, "arun", models.RoleTechnician)
	c := e.newCase(t, sales)

	assigned, err := e.cases.Assign(c.ID, &AssignRequest{AssigneeID: tech.UserID, Comment: "site visit"}, sales)
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, tech.UserID, *assigned.AssignedTo)
	assert.Equal(t, 2, assigned.Version)

	_, err = e.cases.Comment(c.ID, &CommentRequest{Comment: " drawings received "}, tech)
	require.NoError(t, err)

	history, err := e.cases.History(c.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "assigned to arun: site visit", history[1].Comment)
	assert.Equal(t, "drawings received", history[2].Comment)

	timeline, err := e.cases.Timeline(c.ID)
	require.NoError(t, err)
	sources := map[string]int{}
	for _, entry := range timeline {
		sources[entry.Source]++
	}
	assert.Equal(t, 3, sources["history"])
	assert.Equal(t, 2, sources["audit"])
}

func TestCaseService_AvailableTransitions(t *testing.T) {
	e := newTestEnv(t)
	tech := e.user(t, "arun", models.RoleTechnician)
	manager := e.user(t, "meera", models.RoleManager)
	c := e.newCase(t, tech)
	e.forceState(t, c.ID, "estimation")

	list, err := e.cases.AvailableTransitions(c.ID, tech)
	require.NoError(t, err)
	byTarget := map[workflow.State]AvailableTransition{}
	for _, at := range list {
		byTarget[at.To] = at
	}
	assert.False(t, byTarget[workflow.Quotation].Allowed)
	assert.True(t, strings.HasPrefix(byTarget[workflow.Quotation].Reason, "needs"))
	assert.True(t, byTarget[workflow.Enquiry].Allowed)
	assert.Equal(t, workflow.ActionHold, byTarget[workflow.OnHold].Action)

	e.forceState(t, c.ID, "delivery")
	list, err = e.cases.AvailableTransitions(c.ID, tech)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.True(t, list[0].NeedsApproval)

	list, err = e.cases.AvailableTransitions(c.ID, manager)
	require.NoError(t, err)
	assert.False(t, list[0].NeedsApproval)
}

func TestCaseService_Export(t *testing.T) {
	e := newTestEnv(t)
	sales := e.user(t, "priya", models.RoleSales)
	e.newCase(t, sales)

	table, err := e.cases.Export(&CaseListRequest{})
	require.NoError(t, err)
	assert.Equal(t, "cases", table.Name)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "enquiry", table.Rows[0][4])
}
