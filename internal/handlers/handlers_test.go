package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var registerOnce sync.Once

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-handler-testing")
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	require.NoError(t, models.Seed(db))
	services.InitSystemLogger(db)
	registerOnce.Do(func() { require.NoError(t, RegisterValidators()) })
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("secret123")
	require.NoError(t, err)
	u := models.User{Username: username, Password: hash, Email: username + "@vtria.test",
		FullName: username, Role: role, AuthType: "local", IsActive: true}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

// as stands in for AuthRequired by loading a user straight into the context.
func as(u *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, u.ID)
		c.Set(middleware.ContextUsername, u.Username)
		c.Set(middleware.ContextRole, u.Role)
		c.Next()
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestAuthHandler_LoginAndMe(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "meera", models.RoleManager)

	configSvc := services.NewSystemConfigService(db)
	perms := services.NewPermissionCache(db)
	require.NoError(t, perms.Refresh())
	auth := services.NewAuthService(db, &config.JWTConfig{Secret: "x", ExpireHour: 12}, nil, configSvc, nil)
	h := NewAuthHandler(auth, perms)

	r := gin.New()
	r.POST("/api/auth/login", h.Login)
	r.GET("/api/auth/me", middleware.AuthRequired(), h.GetCurrentUser)

	w, _ := do(t, r, http.MethodPost, "/api/auth/login", gin.H{"username": "meera"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/auth/login", gin.H{"username": "meera", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := do(t, r, http.MethodPost, "/api/auth/login", gin.H{"username": "meera", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tokens tokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	assert.NotEmpty(t, tokens.Token)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Contains(t, tokens.Permissions[models.ModuleCases], models.ActionApprove)

	req, _ := http.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.Token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"meera"`)
}

func TestClientHandler_CRUD(t *testing.T) {
	db := newTestDB(t)
	sales := createUser(t, db, "priya", models.RoleSales)
	h := NewClientHandler(services.NewClientService(db, services.NewAuditService(db)))

	r := gin.New()
	g := r.Group("/api/clients", as(sales))
	g.GET("", h.List)
	g.GET("/:id", h.GetByID)
	g.POST("", h.Create)

	w, _ := do(t, r, http.MethodPost, "/api/clients", gin.H{"code": "ACME", "name": "Acme", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := do(t, r, http.MethodPost, "/api/clients", gin.H{"code": "ACME", "name": "Acme Industries"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Client
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotZero(t, created.ID)

	w, _ = do(t, r, http.MethodPost, "/api/clients", gin.H{"code": "ACME", "name": "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, r, http.MethodGet, "/api/clients/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/clients/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = do(t, r, http.MethodGet, "/api/clients", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, int64(1), page.Total)
}

func TestRegisterValidators(t *testing.T) {
	newTestDB(t)

	type filter struct {
		Number string `form:"number" binding:"omitempty,fiscal_doc"`
		State  string `form:"state" binding:"omitempty,state"`
		IPs    string `form:"ips" binding:"omitempty,cidr_list"`
	}
	r := gin.New()
	r.GET("/check", func(c *gin.Context) {
		var p filter
		if !bindQuery(c, &p) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	cases := map[string]int{
		"/check":                             http.StatusNoContent,
		"/check?number=VESPL/PO/2526/001":    http.StatusNoContent,
		"/check?number=PO-1":                 http.StatusBadRequest,
		"/check?state=estimation":            http.StatusNoContent,
		"/check?state=shipped":               http.StatusBadRequest,
		"/check?ips=10.0.0.0/24,192.168.1.7": http.StatusNoContent,
		"/check?ips=10.0.0.0/99":             http.StatusBadRequest,
	}
	for path, want := range cases {
		w, _ := do(t, r, http.MethodGet, path, nil)
		assert.Equal(t, want, w.Code, path)
	}
}

func TestSendExport(t *testing.T) {
	table := &services.ExportTable{Name: "clients", Headers: []string{"Code", "Name"},
		Rows: [][]string{{"ACME", "Acme Industries"}}}
	r := gin.New()
	r.GET("/export", func(c *gin.Context) { sendExport(c, table) })

	w, _ := do(t, r, http.MethodGet, "/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.Contains(t, w.Body.String(), "ACME,Acme Industries")

	w, _ = do(t, r, http.MethodGet, "/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	w, _ = do(t, r, http.MethodGet, "/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthHandler(t *testing.T) {
	db := newTestDB(t)
	h := NewHealthHandler(db, services.NewSyncQueue(), services.GetSSEHub())
	r := gin.New()
	r.GET("/health", h.CheckHealth)

	w, _ := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"queue_mode":"sync"`)
}

func TestClientHandler_TechnicianCannotDelete(t *testing.T) {
	db := newTestDB(t)
	perms := services.NewPermissionCache(db)
	require.NoError(t, perms.Refresh())
	tech := createUser(t, db, "ravi", models.RoleTechnician)
	h := NewClientHandler(services.NewClientService(db, services.NewAuditService(db)))

	r := gin.New()
	g := r.Group("/api/clients", as(tech))
	g.GET("/:id", middleware.RequirePermission(perms, models.ModuleClients, models.ActionView), h.GetByID)
	g.DELETE("/:id", middleware.RequirePermission(perms, models.ModuleClients, models.ActionDelete), h.Delete)

	client := models.Client{Code: "ACME", Name: "Acme", Status: "active"}
	require.NoError(t, db.Create(&client).Error)

	w, _ := do(t, r, http.MethodDelete, "/api/clients/1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/clients/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
