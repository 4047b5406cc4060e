package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
	perms       *services.PermissionCache
}

func NewAuthHandler(authService *services.AuthService, perms *services.PermissionCache) *AuthHandler {
	return &AuthHandler{authService: authService, perms: perms}
}

type tokenResponse struct {
	Token           string                   `json:"token"`
	ExpireAt        time.Time                `json:"expire_at"`
	RefreshToken    string                   `json:"refresh_token"`
	RefreshExpireAt time.Time                `json:"refresh_expire_at"`
	User            *models.User             `json:"user,omitempty"`
	Permissions     map[string][]string      `json:"permissions,omitempty"`
	Access          *services.AccessDecision `json:"access,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, tokenResponse{
		Token:           result.AccessToken,
		ExpireAt:        result.AccessExpireAt,
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt,
		User:            result.User,
		Permissions:     h.perms.Permissions(result.User.Role),
		Access:          result.Access,
	})
}

// Refresh rotates a refresh token into a new token pair
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, tokenResponse{
		Token:           result.AccessToken,
		ExpireAt:        result.AccessExpireAt,
		RefreshToken:    result.RefreshToken,
		RefreshExpireAt: result.RefreshExpireAt,
	})
}

// Logout revokes the presented refresh token, or every session of the
// caller when ?all=true.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if c.Query("all") == "true" {
		if err := h.authService.RevokeAllForUser(middleware.GetUserID(c)); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "logged out of all sessions")
		return
	}

	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.RevokeRefreshToken(req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "logged out successfully")
}

// GetCurrentUser returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.authService.GetUserByID(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"user":        user,
		"permissions": h.perms.Permissions(user.Role),
	})
}

// GetAuthConfig returns authentication configuration
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{"ldap_enabled": h.authService.IsLDAPEnabled()})
}

// ChangePassword
// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ChangePassword(middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "password changed, please sign in again")
}
