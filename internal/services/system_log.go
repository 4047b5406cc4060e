package services

import (
	"encoding/json"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/logger"
	"gorm.io/gorm"
)

var globalDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

func LogInfo(module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	writeLog("info", module, action, message, userID, ip, userAgent, extra)
}

func LogWarning(module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	writeLog("warning", module, action, message, userID, ip, userAgent, extra)
}

func LogError(module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	writeLog("error", module, action, message, userID, ip, userAgent, extra)
}

func writeLog(level, module, action, message string, userID *uint, ip, userAgent string, extra interface{}) {
	if globalDB == nil {
		return
	}

	var extraStr string
	var requestID string
	if extra != nil {
		if m, ok := extra.(map[string]interface{}); ok {
			if rid, ok := m["request_id"].(string); ok {
				requestID = rid
			}
		}
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		RequestID: requestID,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := globalDB.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("failed to persist system log")
	}
}

type SystemLogService struct {
	db        *gorm.DB
	configSvc *SystemConfigService
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db, configSvc: NewSystemConfigService(db)}
}

type SystemLogListRequest struct {
	PageRequest
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*PageResult[models.SystemLog], error) {
	query := s.db.Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.StartDate != "" {
		if from, err := parseDate(req.StartDate); err == nil {
			query = query.Where("created_at >= ?", from)
		}
	}
	if req.EndDate != "" {
		if to, err := parseDate(req.EndDate); err == nil {
			query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
		}
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	return paginate[models.SystemLog](query, &req.PageRequest, "created_at DESC, id DESC")
}

func (s *SystemLogService) GetModules() ([]string, error) {
	var modules []string
	if err := s.db.Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// CleanupOldLogs deletes logs older than retentionDays and reports how many went.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoffTime).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func (s *SystemLogService) GetRetentionDays() int {
	return s.configSvc.GetInt("log_retention_days", 30)
}

func (s *SystemLogService) SetRetentionDays(days int) error {
	return s.configSvc.Set("log_retention_days", itoa(days))
}

// StartLogCleanupScheduler runs the retention sweep once at boot and then daily
// at 02:30. Each sweep also drops expired scheduler locks.
func StartLogCleanupScheduler(db *gorm.DB) *cron.Cron {
	service := NewSystemLogService(db)
	runLogCleanup(service)

	c := cron.New()
	if _, err := c.AddFunc("30 2 * * *", func() { runLogCleanup(service) }); err != nil {
		logger.Errorf("[SystemLog] Failed to schedule cleanup: %v", err)
		return nil
	}
	c.Start()
	return c
}

func runLogCleanup(service *SystemLogService) {
	if purged, err := NewSchedulerLockService(service.db).PurgeExpired(time.Now()); err != nil {
		logger.Errorf("[SystemLog] Failed to purge scheduler locks: %v", err)
	} else if purged > 0 {
		logger.Infof("[SystemLog] Purged %d expired scheduler locks", purged)
	}

	retentionDays := service.GetRetentionDays()
	if retentionDays <= 0 {
		logger.Infof("[SystemLog] Log cleanup disabled (retention_days <= 0)")
		return
	}

	deleted, err := service.CleanupOldLogs(retentionDays)
	if err != nil {
		logger.Errorf("[SystemLog] Failed to cleanup old logs: %v", err)
		return
	}

	if deleted > 0 {
		logger.Infof("[SystemLog] Cleaned up %d logs older than %d days", deleted, retentionDays)
	}
}
