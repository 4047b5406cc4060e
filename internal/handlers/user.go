package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type UserHandler struct {
	userService *services.UserService
	perms       *services.PermissionCache
	audit       *services.AuditService
}

func NewUserHandler(userService *services.UserService, perms *services.PermissionCache, audit *services.AuditService) *UserHandler {
	return &UserHandler{userService: userService, perms: perms, audit: audit}
}

func (h *UserHandler) List(c *gin.Context) {
	var req services.UserListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.userService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) Create(c *gin.Context) {
	var req services.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if id == middleware.GetUserID(c) {
		response.BadRequest(c, "cannot modify your own account")
		return
	}
	var req services.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if id == middleware.GetUserID(c) {
		response.BadRequest(c, "cannot delete your own account")
		return
	}
	if err := h.userService.Delete(id, middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "user deleted")
}

// GetRolePermissions
// GET /api/roles/:role/permissions
func (h *UserHandler) GetRolePermissions(c *gin.Context) {
	role := c.Param("role")
	if !models.IsValidRole(role) {
		response.NotFound(c, "unknown role "+role)
		return
	}
	response.Success(c, gin.H{"role": role, "permissions": h.perms.Permissions(role)})
}

// SetRolePermissions replaces a role's grants.
// PUT /api/roles/:role/permissions
func (h *UserHandler) SetRolePermissions(c *gin.Context) {
	role := c.Param("role")
	if !models.IsValidRole(role) {
		response.NotFound(c, "unknown role "+role)
		return
	}
	var req services.SetRolePermissionsRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.perms.SetRolePermissions(role, &req, middleware.Actor(c), h.audit); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"role": role, "permissions": h.perms.Permissions(role)})
}
