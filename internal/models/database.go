package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vtria/erp/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Dialector picks the gorm driver for the configured database.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func InitDB(cfg *config.DatabaseConfig) error {
	dialector, err := Dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}

	logLevel := logger.Warn
	if cfg.LogSQL {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	return nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&RolePermission{},
		&SystemConfig{},
		&SystemLog{},
		&SchedulerLock{},
		&IMBot{},
		&OfficeLocation{},
		&DocumentSequence{},
		&Client{},
		&Case{},
		&CaseHistory{},
		&ApprovalRequest{},
		&AuditLog{},
		&Estimation{},
		&EstimationLine{},
		&Quotation{},
		&QuotationLine{},
		&SalesOrder{},
		&Vendor{},
		&PurchaseRequisition{},
		&PurchaseRequisitionLine{},
		&PurchaseOrder{},
		&PurchaseOrderLine{},
		&GoodsReceipt{},
		&GoodsReceiptLine{},
		&Warehouse{},
		&Item{},
		&Stock{},
		&StockTransaction{},
		&StockTransfer{},
		&Department{},
		&Employee{},
		&Holiday{},
		&LeaveType{},
		&LeaveBalance{},
		&LeaveApplication{},
		&Attendance{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// DefaultSystemConfigs are inserted on first boot and never overwritten.
var DefaultSystemConfigs = []SystemConfig{
	{Key: "sla_hours_enquiry", Value: "24", Type: "int", Group: "workflow", Label: "SLA hours: enquiry"},
	{Key: "sla_hours_estimation", Value: "72", Type: "int", Group: "workflow", Label: "SLA hours: estimation"},
	{Key: "sla_hours_quotation", Value: "48", Type: "int", Group: "workflow", Label: "SLA hours: quotation"},
	{Key: "sla_hours_order", Value: "24", Type: "int", Group: "workflow", Label: "SLA hours: order"},
	{Key: "sla_hours_production", Value: "240", Type: "int", Group: "workflow", Label: "SLA hours: production"},
	{Key: "sla_hours_delivery", Value: "72", Type: "int", Group: "workflow", Label: "SLA hours: delivery"},
	{Key: "quotation_discount_approval_percent", Value: "10", Type: "float", Group: "sales", Label: "Discount % above which a quotation needs approval"},
	{Key: "access_control_enabled", Value: "true", Type: "bool", Group: "access", Label: "Enable location/IP access control"},
	{Key: "attendance_start_time", Value: "09:30", Type: "string", Group: "attendance", Label: "Shift start (HH:MM)"},
	{Key: "attendance_grace_minutes", Value: "15", Type: "int", Group: "attendance", Label: "Late grace minutes"},
	{Key: "attendance_half_day_minutes", Value: "240", Type: "int", Group: "attendance", Label: "Minimum minutes for a full day"},
	{Key: "auth_access_token_expire_hours", Value: "12", Type: "int", Group: "auth", Label: "Access token lifetime (hours)"},
	{Key: "auth_refresh_token_expire_hours", Value: "720", Type: "int", Group: "auth", Label: "Refresh token lifetime (hours)"},
	{Key: "email_enabled", Value: "false", Type: "bool", Group: "email", Label: "Enable email notifications"},
	{Key: "email_host", Value: "", Type: "string", Group: "email", Label: "SMTP host"},
	{Key: "email_port", Value: "587", Type: "int", Group: "email", Label: "SMTP port"},
	{Key: "email_username", Value: "", Type: "string", Group: "email", Label: "SMTP username"},
	{Key: "email_password", Value: "", Type: "string", Group: "email", Label: "SMTP password"},
	{Key: "email_from", Value: "", Type: "string", Group: "email", Label: "Sender address"},
	{Key: "email_use_tls", Value: "false", Type: "bool", Group: "email", Label: "Use implicit TLS"},
	{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
}

type defaultLeaveType struct {
	code, name      string
	quota, maxCarry int64
	carry           bool
}

var defaultLeaveTypes = []defaultLeaveType{
	{code: "CL", name: "Casual Leave", quota: 12},
	{code: "SL", name: "Sick Leave", quota: 12},
	{code: "EL", name: "Earned Leave", quota: 15, carry: true, maxCarry: 30},
}

// Seed inserts default configs, the permission matrix and leave types.
func Seed(db *gorm.DB) error {
	for _, cfg := range DefaultSystemConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where("config_key = ?", cfg.Key).Count(&count)
		if count == 0 {
			row := cfg
			if err := db.Create(&row).Error; err != nil {
				return err
			}
		}
	}

	var permCount int64
	db.Model(&RolePermission{}).Count(&permCount)
	if permCount == 0 {
		var rows []RolePermission
		for role, modules := range DefaultRolePermissions {
			for module, actions := range modules {
				for _, action := range actions {
					rows = append(rows, RolePermission{Role: role, Module: module, Action: action})
				}
			}
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, 100).Error; err != nil {
			return err
		}
	}

	for _, lt := range defaultLeaveTypes {
		var existing LeaveType
		err := db.Where("code = ?", lt.code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		row := LeaveType{
			Code:            lt.code,
			Name:            lt.name,
			AnnualQuota:     decimal.NewFromInt(lt.quota),
			CarryForward:    lt.carry,
			MaxCarryForward: decimal.NewFromInt(lt.maxCarry),
			IsActive:        true,
		}
		if err := db.Create(&row).Error; err != nil {
			return err
		}
	}

	return nil
}
