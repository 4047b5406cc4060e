package services

import (
	"sort"
	"sync"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

// PermissionCache holds role -> module -> action grants in memory.
type PermissionCache struct {
	db    *gorm.DB
	mu    sync.RWMutex
	perms map[string]map[string]map[string]bool
}

func NewPermissionCache(db *gorm.DB) *PermissionCache {
	return &PermissionCache{db: db, perms: make(map[string]map[string]map[string]bool)}
}

func (c *PermissionCache) Refresh() error {
	var rows []models.RolePermission
	if err := c.db.Find(&rows).Error; err != nil {
		return err
	}

	perms := make(map[string]map[string]map[string]bool)
	for _, r := range rows {
		if perms[r.Role] == nil {
			perms[r.Role] = make(map[string]map[string]bool)
		}
		if perms[r.Role][r.Module] == nil {
			perms[r.Role][r.Module] = make(map[string]bool)
		}
		perms[r.Role][r.Module][r.Action] = true
	}

	c.mu.Lock()
	c.perms = perms
	c.mu.Unlock()
	return nil
}

// Allowed reports whether role may perform action on module. Admin always may.
func (c *PermissionCache) Allowed(role, module, action string) bool {
	if role == models.RoleAdmin {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.perms[role][module][action]
}

// Permissions returns module -> sorted actions for a role.
func (c *PermissionCache) Permissions(role string) map[string][]string {
	result := make(map[string][]string)
	if role == models.RoleAdmin {
		for _, m := range models.AllModules {
			result[m] = append([]string(nil), models.AllActions...)
		}
		return result
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for module, actions := range c.perms[role] {
		for action := range actions {
			result[module] = append(result[module], action)
		}
		sort.Strings(result[module])
	}
	return result
}

// RolesWith lists the non-admin roles granted action on module.
func (c *PermissionCache) RolesWith(module, action string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var roles []string
	for role, modules := range c.perms {
		if modules[module][action] {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)
	return roles
}

type SetRolePermissionsRequest struct {
	Permissions map[string][]string `json:"permissions" binding:"required"`
}

// SetRolePermissions replaces every grant of a role and refreshes the cache.
func (c *PermissionCache) SetRolePermissions(role string, req *SetRolePermissionsRequest, actor *Actor, audit *AuditService) error {
	if !models.IsValidRole(role) {
		return response.NewBadRequest("unknown role: " + role)
	}
	if role == models.RoleAdmin {
		return response.NewBadRequest("admin permissions cannot be changed")
	}

	var rows []models.RolePermission
	for module, actions := range req.Permissions {
		if !models.IsValidModule(module) {
			return response.NewBadRequest("unknown module: " + module)
		}
		for _, action := range actions {
			if !models.IsValidAction(action) {
				return response.NewBadRequest("unknown action: " + action)
			}
			rows = append(rows, models.RolePermission{Role: role, Module: module, Action: action})
		}
	}

	before := c.Permissions(role)
	err := c.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role = ?", role).Delete(&models.RolePermission{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		if audit != nil {
			return audit.Record(tx, AuditEntry{
				EntityType: "role_permissions",
				Action:     "update",
				Actor:      actor,
				Before:     map[string]interface{}{"role": role, "permissions": before},
				After:      map[string]interface{}{"role": role, "permissions": req.Permissions},
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.Refresh()
}
