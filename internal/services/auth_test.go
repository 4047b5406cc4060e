package services

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/utils"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

func newTestAuth(t *testing.T, db *gorm.DB) *AuthService {
	t.Helper()
	utils.SetJWTSecret("test-secret")
	configSvc := NewSystemConfigService(db)
	access := NewAccessService(db, &config.AccessConfig{Enabled: true}, configSvc, NewAuditService(db))
	return NewAuthService(db, &config.JWTConfig{ExpireHour: 1}, nil, configSvc, access)
}

func TestAuthService_LoginLocal(t *testing.T) {
	db := newTestDB(t)
	auth := newTestAuth(t, db)
	createTestUser(t, db, "ravi", models.RoleSales)

	result, err := auth.Login(&LoginRequest{Username: "ravi", Password: "secret123"}, "10.0.0.5", "test")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, AccessReasonNoLocations, result.Access.Reason)

	claims, err := utils.ParseToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ravi", claims.Username)
	assert.Equal(t, models.RoleSales, claims.Role)
}

func TestAuthService_LoginFailures(t *testing.T) {
	db := newTestDB(t)
	auth := newTestAuth(t, db)
	u := createTestUser(t, db, "meena", models.RoleHR)

	_, err := auth.Login(&LoginRequest{Username: "meena", Password: "wrong"}, "10.0.0.5", "")
	assert.Equal(t, http.StatusUnauthorized, response.StatusOf(err))

	_, err = auth.Login(&LoginRequest{Username: "meena", Password: "secret123", AuthType: "kerberos"}, "10.0.0.5", "")
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))

	_, err = auth.Login(&LoginRequest{Username: "meena", Password: "secret123", AuthType: "ldap"}, "10.0.0.5", "")
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))

	require.NoError(t, db.Model(u).Update("is_active", false).Error)
	_, err = auth.Login(&LoginRequest{Username: "meena", Password: "secret123"}, "10.0.0.5", "")
	assert.Equal(t, http.StatusUnauthorized, response.StatusOf(err))
}

func TestAuthService_LoginDeniedFromUnknownNetwork(t *testing.T) {
	db := newTestDB(t)
	auth := newTestAuth(t, db)
	createTestUser(t, db, "arun", models.RoleTechnician)
	require.NoError(t, db.Create(&models.OfficeLocation{Code: "PUN", Name: "Pune", AllowedIPs: "192.168.10.0/24", IsActive: true}).Error)

	_, err := auth.Login(&LoginRequest{Username: "arun", Password: "secret123"}, "203.0.113.9", "")
	assert.Equal(t, http.StatusForbidden, response.StatusOf(err))

	result, err := auth.Login(&LoginRequest{Username: "arun", Password: "secret123"}, "192.168.10.44", "")
	require.NoError(t, err)
	require.NotNil(t, result.Access.LocationID)

	claims, err := utils.ParseToken(result.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, claims.LocationID)
	assert.Equal(t, *result.Access.LocationID, *claims.LocationID)
}

func TestAuthService_RefreshRotates(t *testing.T) {
	db := newTestDB(t)
	auth := newTestAuth(t, db)
	createTestUser(t, db, "kiran", models.RoleStore)

	login, err := auth.Login(&LoginRequest{Username: "kiran", Password: "secret123"}, "10.0.0.5", "")
	require.NoError(t, err)

	refreshed, err := auth.Refresh(login.RefreshToken, "10.0.0.5", "")
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// the old token is single use
	_, err = auth.Refresh(login.RefreshToken, "10.0.0.5", "")
	assert.Equal(t, http.StatusUnauthorized, response.StatusOf(err))

	_, err = auth.Refresh(refreshed.RefreshToken, "10.0.0.5", "")
	assert.NoError(t, err)
}

func TestAuthService_ChangePasswordRevokesTokens(t *testing.T) {
	db := newTestDB(t)
	auth := newTestAuth(t, db)
	u := createTestUser(t, db, "lata", models.RoleEmployee)

	login, err := auth.Login(&LoginRequest{Username: "lata", Password: "secret123"}, "10.0.0.5", "")
	require.NoError(t, err)

	err = auth.ChangePassword(u.ID, &ChangePasswordRequest{OldPassword: "nope", NewPassword: "newsecret"})
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))

	require.NoError(t, auth.ChangePassword(u.ID, &ChangePasswordRequest{OldPassword: "secret123", NewPassword: "newsecret"}))

	_, err = auth.Refresh(login.RefreshToken, "10.0.0.5", "")
	assert.Equal(t, http.StatusUnauthorized, response.StatusOf(err))

	_, err = auth.Login(&LoginRequest{Username: "lata", Password: "newsecret"}, "10.0.0.5", "")
	assert.NoError(t, err)
}

func TestAuthService_CreateAdminIfNotExists(t *testing.T) {
	db := newTestDB(t)
	auth := newTestAuth(t, db)

	require.NoError(t, auth.CreateAdminIfNotExists())
	require.NoError(t, auth.CreateAdminIfNotExists())

	var count int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.False(t, auth.IsLDAPEnabled())
}
