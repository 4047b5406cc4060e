package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
)

func TestMetricsHandler_Metrics(t *testing.T) {
	db := newTestDB(t)
	seedSearchable(t, db)
	require.NoError(t, db.Model(&models.Case{}).Where("case_number = ?", "VESPL/CASE/2526/0002").
		Update("sla_breached", true).Error)
	requester := createUser(t, db, "arun", models.RoleTechnician)
	require.NoError(t, db.Create(&models.ApprovalRequest{EntityType: models.ApprovalCaseTransition, EntityID: 1,
		Status: models.ApprovalPending, RequestedBy: requester.ID}).Error)

	audit := services.NewAuditService(db)
	dashboard := services.NewDashboardService(db, nil, services.NewInventoryService(db, audit, nil))
	h := NewMetricsHandler(db, services.NewSyncQueue(), services.GetSSEHub(), dashboard)
	r := gin.New()
	r.GET("/metrics", h.Metrics)

	w, _ := do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	body := w.Body.String()
	assert.Contains(t, body, "# TYPE vtria_uptime_seconds gauge")
	assert.Contains(t, body, "vtria_queue_async_enabled 0")
	assert.Contains(t, body, `vtria_cases{state="estimation"} 1`)
	assert.Contains(t, body, `vtria_cases{state="closed"} 0`)
	assert.Contains(t, body, "vtria_cases_open 2")
	assert.Contains(t, body, "vtria_cases_sla_breached 1")
	assert.Contains(t, body, `vtria_approvals_pending{type="case_transition"} 1`)
	assert.Contains(t, body, "vtria_stock_low_items 0")
}
