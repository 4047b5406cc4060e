package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	LDAP     LDAPConfig     `yaml:"ldap"`
	Redis    RedisConfig    `yaml:"redis"`
	Company  CompanyConfig  `yaml:"company"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Access   AccessConfig   `yaml:"access"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"`         // debug, release, test
	CORSOrigins    []string `yaml:"cors_origins"` // empty means any origin
	LoginRateLimit float64  `yaml:"login_rate_limit"` // requests per second per IP
	LoginBurst     int      `yaml:"login_burst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // mysql, postgres, sqlite
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	LogSQL       bool   `yaml:"log_sql"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
}

// RedisConfig for optional async notification queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CompanyConfig drives business keys and working-day calendars.
type CompanyConfig struct {
	Prefix               string `yaml:"prefix"`                  // VESPL
	FiscalYearStartMonth int    `yaml:"fiscal_year_start_month"` // 4 = April
	HolidayCountry       string `yaml:"holiday_country"`         // US, GB, CN, NONE ...
	Timezone             string `yaml:"timezone"`                // Asia/Kolkata
}

type WorkflowConfig struct {
	SLACheckInterval        string `yaml:"sla_check_interval"` // cron spec, e.g. "@every 5m"
	EscalationIntervalHours int    `yaml:"escalation_interval_hours"`
	MaxEscalationLevel      int    `yaml:"max_escalation_level"`
	BusinessDaysOnly        bool   `yaml:"business_days_only"`
}

type AccessConfig struct {
	Enabled            bool     `yaml:"enabled"`
	EnforceAPI         bool     `yaml:"enforce_api"`
	GeofenceAttendance bool     `yaml:"geofence_attendance"`
	TrustedProxies     []string `yaml:"trusted_proxies"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			Mode:           "debug",
			LoginRateLimit: 1,
			LoginBurst:     5,
		},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver:       "mysql",
			DSN:          "vtria:vtria@tcp(127.0.0.1:3306)/vtria_erp?charset=utf8mb4&parseTime=True&loc=Local",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		JWT: JWTConfig{
			Secret:     "vtria-erp-secret-change-in-production",
			ExpireHour: 12,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(uid=%s)",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Company: CompanyConfig{
			Prefix:               "VESPL",
			FiscalYearStartMonth: 4,
			HolidayCountry:       "NONE",
			Timezone:             "Asia/Kolkata",
		},
		Workflow: WorkflowConfig{
			SLACheckInterval:        "@every 5m",
			EscalationIntervalHours: 24,
			MaxEscalationLevel:      3,
			BusinessDaysOnly:        true,
		},
		Access: AccessConfig{
			Enabled:            true,
			EnforceAPI:         false,
			GeofenceAttendance: true,
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
	}
}

// Location returns the configured company timezone, falling back to local time.
func (c *CompanyConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = strings.Split(origins, ",")
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if prefix := os.Getenv("COMPANY_PREFIX"); prefix != "" {
		c.Company.Prefix = prefix
	}
	if country := os.Getenv("COMPANY_COUNTRY"); country != "" {
		c.Company.HolidayCountry = country
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.SMTP.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.SMTP.Port = p
		}
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		c.SMTP.Username = user
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		c.SMTP.Password = pass
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		c.SMTP.From = from
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
