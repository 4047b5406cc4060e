package services

import (
	"errors"
	"strconv"
	"strings"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("config_key = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s.GetWithDefault(key, "")))
	if err != nil {
		return defaultValue
	}
	return v
}

func (s *SystemConfigService) GetFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s.GetWithDefault(key, "")), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func (s *SystemConfigService) GetBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(s.GetWithDefault(key, "")))
	if err != nil {
		return defaultValue
	}
	return v
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where("config_key = ?", key).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.SystemConfig{
			Key:   key,
			Value: value,
			Group: groupForKey(key),
		}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where("config_group = ?", group).Order("config_key ASC").Find(&configs).Error; err != nil {
		return nil, err
	}
	return maskSecrets(configs), nil
}

func (s *SystemConfigService) ListAll() ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Order("config_group ASC, config_key ASC").Find(&configs).Error; err != nil {
		return nil, err
	}
	return maskSecrets(configs), nil
}

type UpdateConfigsRequest struct {
	Values map[string]string `json:"values" binding:"required"`
}

// BatchUpdate writes several keys at once. Unknown keys are rejected so a
// typo does not silently create a setting nothing reads.
func (s *SystemConfigService) BatchUpdate(req *UpdateConfigsRequest) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range req.Values {
			if err := validateConfigValue(key, value); err != nil {
				return err
			}
			res := tx.Model(&models.SystemConfig{}).Where("config_key = ?", key).Update("value", value)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return response.NewBadRequest("unknown config key: " + key)
			}
		}
		return nil
	})
}

func validateConfigValue(key, value string) error {
	switch {
	case strings.HasPrefix(key, "sla_hours_"), strings.HasSuffix(key, "_minutes"), strings.HasSuffix(key, "_days"), strings.HasSuffix(key, "_hours"):
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return response.NewBadRequest(key + " must be a non-negative integer")
		}
	case strings.HasSuffix(key, "_enabled"):
		if _, err := strconv.ParseBool(value); err != nil {
			return response.NewBadRequest(key + " must be true or false")
		}
	}
	return nil
}

func maskSecrets(configs []models.SystemConfig) []models.SystemConfig {
	for i := range configs {
		if strings.Contains(configs[i].Key, "password") && configs[i].Value != "" {
			configs[i].Value = "******"
		}
	}
	return configs
}

func groupForKey(key string) string {
	switch {
	case strings.HasPrefix(key, "sla_"):
		return "workflow"
	case strings.HasPrefix(key, "ldap_"):
		return "ldap"
	case strings.HasPrefix(key, "email_"):
		return "email"
	case strings.HasPrefix(key, "attendance_"):
		return "attendance"
	case strings.HasPrefix(key, "access_"):
		return "access"
	default:
		return "general"
	}
}

type LDAPConfigResponse struct {
	Enabled     bool   `json:"enabled"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	BaseDN      string `json:"base_dn"`
	BindDN      string `json:"bind_dn"`
	UserFilter  string `json:"user_filter"`
	UseSSL      bool   `json:"use_ssl"`
	PasswordSet bool   `json:"password_set"`
}

// GetLDAPConfig reads LDAP overrides stored in the database, falling back to
// the file configuration passed in.
func (s *SystemConfigService) GetLDAPConfig(fallback *LDAPConfigResponse) *LDAPConfigResponse {
	if fallback == nil {
		fallback = &LDAPConfigResponse{Port: 389, UserFilter: "(uid=%s)"}
	}
	return &LDAPConfigResponse{
		Enabled:     s.GetBool("ldap_enabled", fallback.Enabled),
		Host:        s.GetWithDefault("ldap_host", fallback.Host),
		Port:        s.GetInt("ldap_port", fallback.Port),
		BaseDN:      s.GetWithDefault("ldap_base_dn", fallback.BaseDN),
		BindDN:      s.GetWithDefault("ldap_bind_dn", fallback.BindDN),
		UserFilter:  s.GetWithDefault("ldap_user_filter", fallback.UserFilter),
		UseSSL:      s.GetBool("ldap_use_ssl", fallback.UseSSL),
		PasswordSet: s.GetWithDefault("ldap_bind_password", "") != "" || fallback.PasswordSet,
	}
}

type UpdateLDAPConfigRequest struct {
	Enabled      *bool   `json:"enabled"`
	Host         *string `json:"host"`
	Port         *int    `json:"port"`
	BaseDN       *string `json:"base_dn"`
	BindDN       *string `json:"bind_dn"`
	BindPassword *string `json:"bind_password"`
	UserFilter   *string `json:"user_filter"`
	UseSSL       *bool   `json:"use_ssl"`
}

func (s *SystemConfigService) UpdateLDAPConfig(req *UpdateLDAPConfigRequest) error {
	updates := map[string]string{}
	if req.Enabled != nil {
		updates["ldap_enabled"] = strconv.FormatBool(*req.Enabled)
	}
	if req.Host != nil {
		updates["ldap_host"] = *req.Host
	}
	if req.Port != nil {
		updates["ldap_port"] = strconv.Itoa(*req.Port)
	}
	if req.BaseDN != nil {
		updates["ldap_base_dn"] = *req.BaseDN
	}
	if req.BindDN != nil {
		updates["ldap_bind_dn"] = *req.BindDN
	}
	if req.BindPassword != nil && *req.BindPassword != "" {
		updates["ldap_bind_password"] = *req.BindPassword
	}
	if req.UserFilter != nil {
		updates["ldap_user_filter"] = *req.UserFilter
	}
	if req.UseSSL != nil {
		updates["ldap_use_ssl"] = strconv.FormatBool(*req.UseSSL)
	}
	for k, v := range updates {
		if err := s.Set(k, v); err != nil {
			return err
		}
	}
	return nil
}
