package services

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
)

func TestPermissionCache_SeededMatrix(t *testing.T) {
	perms := newTestPermissions(t, newTestDB(t))

	tests := []struct {
		role, module, action string
		allowed              bool
	}{
		{models.RoleTechnician, models.ModuleClients, models.ActionDelete, false},
		{models.RoleTechnician, models.ModuleClients, models.ActionView, true},
		{models.RoleManager, models.ModuleClients, models.ActionDelete, true},
		{models.RoleSales, models.ModuleCases, models.ActionApprove, false},
		{models.RoleManager, models.ModuleCases, models.ActionApprove, true},
		{models.RoleHR, models.ModuleLeave, models.ActionApprove, true},
		{models.RoleEmployee, models.ModuleInventory, models.ActionView, false},
		{models.RoleAdmin, models.ModuleSettings, models.ActionDelete, true},
		{"nobody", models.ModuleDashboard, models.ActionView, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, perms.Allowed(tt.role, tt.module, tt.action), "%s %s:%s", tt.role, tt.module, tt.action)
	}
}

func TestPermissionCache_PermissionsAndRoles(t *testing.T) {
	perms := newTestPermissions(t, newTestDB(t))

	assert.Equal(t, []string{"create", "view"}, perms.Permissions(models.RoleEmployee)[models.ModuleLeave])
	assert.Len(t, perms.Permissions(models.RoleAdmin), len(models.AllModules))
	assert.Equal(t, []string{models.RoleHR, models.RoleManager}, perms.RolesWith(models.ModuleLeave, models.ActionApprove))
}

func TestPermissionCache_SetRolePermissions(t *testing.T) {
	db := newTestDB(t)
	perms := newTestPermissions(t, db)
	audit := NewAuditService(db)
	actor := &Actor{UserID: 1, Username: "admin", Role: models.RoleAdmin}

	err := perms.SetRolePermissions(models.RoleTechnician, &SetRolePermissionsRequest{Permissions: map[string][]string{
		models.ModuleCases:   {models.ActionView},
		models.ModuleClients: {models.ActionView, models.ActionDelete},
	}}, actor, audit)
	require.NoError(t, err)

	assert.True(t, perms.Allowed(models.RoleTechnician, models.ModuleClients, models.ActionDelete))
	assert.False(t, perms.Allowed(models.RoleTechnician, models.ModuleCases, models.ActionEdit))
	assert.False(t, perms.Allowed(models.RoleTechnician, models.ModuleLeave, models.ActionCreate))

	trail, err := audit.Trail("role_permissions", 0)
	require.NoError(t, err)
	assert.Len(t, trail, 1)

	err = perms.SetRolePermissions(models.RoleAdmin, &SetRolePermissionsRequest{}, actor, audit)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))
	err = perms.SetRolePermissions(models.RoleSales, &SetRolePermissionsRequest{Permissions: map[string][]string{"payroll": {"view"}}}, actor, audit)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))
	err = perms.SetRolePermissions(models.RoleSales, &SetRolePermissionsRequest{Permissions: map[string][]string{"cases": {"destroy"}}}, actor, audit)
	assert.Equal(t, http.StatusBadRequest, response.StatusOf(err))
}
