package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
	"gorm.io/gorm"
)

func seedSearchable(t *testing.T, db *gorm.DB) {
	t.Helper()
	client := models.Client{Code: "ACME", Name: "Acme Industries", Status: "active"}
	require.NoError(t, db.Create(&client).Error)
	require.NoError(t, db.Create(&models.Case{CaseNumber: "VESPL/CASE/2526/0001", Title: "Acme MCC panel retrofit",
		ClientID: &client.ID, CurrentState: "estimation", StateEnteredAt: time.Now(), Version: 1}).Error)
	require.NoError(t, db.Create(&models.Case{CaseNumber: "VESPL/CASE/2526/0002", Title: "Boiler PLC upgrade",
		CurrentState: "enquiry", StateEnteredAt: time.Now(), Version: 1}).Error)

	vendor := models.Vendor{Code: "ACMS", Name: "Acme Steel", Status: "active"}
	require.NoError(t, db.Create(&vendor).Error)
	wh := models.Warehouse{Code: "MAIN", Name: "Main store", IsActive: true}
	require.NoError(t, db.Create(&wh).Error)
	require.NoError(t, db.Create(&models.PurchaseOrder{PONumber: "VESPL/PO/2526/0001", VendorID: vendor.ID,
		WarehouseID: wh.ID, Status: models.StatusDraft, Total: decimal.RequireFromString("1180")}).Error)
}

func TestSearchHandler_Search(t *testing.T) {
	db := newTestDB(t)
	perms := services.NewPermissionCache(db)
	require.NoError(t, perms.Refresh())
	seedSearchable(t, db)
	h := NewSearchHandler(db, perms)

	search := func(u *models.User, q string) (int, SearchResult) {
		r := gin.New()
		r.GET("/api/search", as(u), h.Search)
		w, env := do(t, r, http.MethodGet, "/api/search?q="+q, nil)
		var res SearchResult
		if w.Code == http.StatusOK {
			require.NoError(t, json.Unmarshal(env.Data, &res))
		}
		return w.Code, res
	}

	manager := createUser(t, db, "meera", models.RoleManager)
	code, _ := search(manager, "a")
	assert.Equal(t, http.StatusBadRequest, code)

	code, res := search(manager, "acme")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Cases, 1)
	assert.Equal(t, "Acme Industries", res.Cases[0].ClientName)
	require.Len(t, res.Clients, 1)
	require.Len(t, res.PurchaseOrders, 1, "matched on vendor name")
	assert.Equal(t, "1180.00", res.PurchaseOrders[0].Total)
	assert.Equal(t, 3, res.Total)

	// sales cannot see purchasing
	sales := createUser(t, db, "priya", models.RoleSales)
	code, res = search(sales, "acme")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Cases, 1)
	assert.Len(t, res.Clients, 1)
	assert.Empty(t, res.PurchaseOrders)

	employee := createUser(t, db, "anita", models.RoleEmployee)
	code, res = search(employee, "VESPL")
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, res.Total)
}
