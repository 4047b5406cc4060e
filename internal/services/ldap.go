package services

import (
	"crypto/tls"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/vtria/erp/internal/config"
)

// LDAPService authenticates directory users. Settings stored in
// system_configs (ldap_*) take precedence over the config file.
type LDAPService struct {
	file      *config.LDAPConfig
	configSvc *SystemConfigService
}

func NewLDAPService(cfg *config.LDAPConfig, configSvc *SystemConfigService) *LDAPService {
	if cfg == nil {
		cfg = &config.LDAPConfig{Port: 389, UserFilter: "(uid=%s)"}
	}
	return &LDAPService{file: cfg, configSvc: configSvc}
}

func (s *LDAPService) effective() *config.LDAPConfig {
	if s.configSvc == nil {
		return s.file
	}
	merged := s.configSvc.GetLDAPConfig(&LDAPConfigResponse{
		Enabled:    s.file.Enabled,
		Host:       s.file.Host,
		Port:       s.file.Port,
		BaseDN:     s.file.BaseDN,
		BindDN:     s.file.BindDN,
		UserFilter: s.file.UserFilter,
		UseSSL:     s.file.UseSSL,
	})
	return &config.LDAPConfig{
		Enabled:      merged.Enabled,
		Host:         merged.Host,
		Port:         merged.Port,
		BaseDN:       merged.BaseDN,
		BindDN:       merged.BindDN,
		BindPassword: s.configSvc.GetWithDefault("ldap_bind_password", s.file.BindPassword),
		UserFilter:   merged.UserFilter,
		UseSSL:       merged.UseSSL,
	}
}

func (s *LDAPService) IsEnabled() bool {
	return s.effective().Enabled
}

// Authenticate authenticates a user against LDAP
func (s *LDAPService) Authenticate(username, password string) (*LDAPUser, error) {
	cfg := s.effective()
	if !cfg.Enabled {
		return nil, fmt.Errorf("LDAP is not enabled")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var conn *ldap.Conn
	var err error

	if cfg.UseSSL {
		conn, err = ldap.DialTLS("tcp", addr, &tls.Config{ServerName: cfg.Host})
	} else {
		conn, err = ldap.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LDAP server: %w", err)
	}
	defer conn.Close()

	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("failed to bind with service account: %w", err)
		}
	}

	filter := fmt.Sprintf(cfg.UserFilter, ldap.EscapeFilter(username))
	searchRequest := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter,
		[]string{"dn", "cn", "mail", "uid", "sAMAccountName"},
		nil,
	)

	result, err := conn.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("user not found in LDAP")
	}
	if len(result.Entries) > 1 {
		return nil, fmt.Errorf("multiple users found in LDAP")
	}

	entry := result.Entries[0]
	if err := conn.Bind(entry.DN, password); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	user := &LDAPUser{
		DN:       entry.DN,
		Username: entry.GetAttributeValue("uid"),
		Email:    entry.GetAttributeValue("mail"),
		FullName: entry.GetAttributeValue("cn"),
	}
	// Active Directory
	if user.Username == "" {
		user.Username = entry.GetAttributeValue("sAMAccountName")
	}
	return user, nil
}

type LDAPUser struct {
	DN       string
	Username string
	Email    string
	FullName string
}
