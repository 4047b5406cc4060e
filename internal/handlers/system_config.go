package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
	ldapFallback  *services.LDAPConfigResponse
}

func NewSystemConfigHandler(configService *services.SystemConfigService, ldap *config.LDAPConfig) *SystemConfigHandler {
	fallback := &services.LDAPConfigResponse{
		Enabled:     ldap.Enabled,
		Host:        ldap.Host,
		Port:        ldap.Port,
		BaseDN:      ldap.BaseDN,
		BindDN:      ldap.BindDN,
		UserFilter:  ldap.UserFilter,
		UseSSL:      ldap.UseSSL,
		PasswordSet: ldap.BindPassword != "",
	}
	return &SystemConfigHandler{configService: configService, ldapFallback: fallback}
}

// List returns settings, optionally one group; secrets are masked.
// GET /api/system-configs?group=
func (h *SystemConfigHandler) List(c *gin.Context) {
	var (
		rows interface{}
		err  error
	)
	if group := c.Query("group"); group != "" {
		rows, err = h.configService.GetByGroup(group)
	} else {
		rows, err = h.configService.ListAll()
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

func (h *SystemConfigHandler) Update(c *gin.Context) {
	var req services.UpdateConfigsRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.configService.BatchUpdate(&req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "settings saved")
}

func (h *SystemConfigHandler) GetLDAPConfig(c *gin.Context) {
	response.Success(c, h.configService.GetLDAPConfig(h.ldapFallback))
}

func (h *SystemConfigHandler) UpdateLDAPConfig(c *gin.Context) {
	var req services.UpdateLDAPConfigRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.configService.UpdateLDAPConfig(&req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.configService.GetLDAPConfig(h.ldapFallback))
}
