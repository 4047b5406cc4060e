package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services/workflow"
	"github.com/vtria/erp/pkg/logger"
	"gorm.io/gorm"
)

// SLACalculator turns a state and an entry time into a due date.
type SLACalculator struct {
	configSvc        *SystemConfigService
	holidays         *HolidayService
	businessDaysOnly bool
}

func NewSLACalculator(configSvc *SystemConfigService, holidays *HolidayService, cfg *config.WorkflowConfig) *SLACalculator {
	c := &SLACalculator{configSvc: configSvc, holidays: holidays}
	if cfg != nil {
		c.businessDaysOnly = cfg.BusinessDaysOnly
	}
	return c
}

// Hours is the allowance for a state; 0 means the state is not timed.
func (c *SLACalculator) Hours(state workflow.State) int {
	if !state.HasSLA() {
		return 0
	}
	def := workflow.DefaultSLAHours(state)
	if c.configSvc == nil {
		return def
	}
	h := c.configSvc.GetInt("sla_hours_"+string(state), def)
	if h < 0 {
		return 0
	}
	return h
}

// within returns a calculator reading config and holidays through db, so
// it can be used inside an open transaction.
func (c *SLACalculator) within(db *gorm.DB) *SLACalculator {
	if db == nil {
		return c
	}
	cp := *c
	if c.configSvc != nil {
		cp.configSvc = NewSystemConfigService(db)
	}
	if c.holidays != nil {
		h := *c.holidays
		h.db = db
		cp.holidays = &h
	}
	return &cp
}

func (c *SLACalculator) DueAt(state workflow.State, from time.Time) *time.Time {
	h := c.Hours(state)
	if h == 0 {
		return nil
	}
	d := time.Duration(h) * time.Hour
	var due time.Time
	if c.businessDaysOnly && c.holidays != nil {
		due = c.holidays.AddWorkingDuration(from, d)
	} else {
		due = from.Add(d)
	}
	return &due
}

// SLARunResult summarises one monitor pass.
type SLARunResult struct {
	Checked   int64 `json:"checked"`
	Breached  int   `json:"breached"`
	Escalated int   `json:"escalated"`
	Skipped   bool  `json:"skipped,omitempty"`
}

// One pass at a time across instances. The lease only matters when a holder
// dies mid-pass; a finished pass releases it.
const (
	slaLockName  = "sla_monitor"
	slaLockKey   = "pass"
	slaLockLease = 5 * time.Minute
)

// SLAMonitor flags overdue cases and walks them up the escalation ladder.
type SLAMonitor struct {
	db    *gorm.DB
	cfg   config.WorkflowConfig
	locks *SchedulerLockService
	audit *AuditService
	queue TaskQueue
	hub   *SSEHub
}

func NewSLAMonitor(db *gorm.DB, cfg *config.WorkflowConfig, locks *SchedulerLockService, audit *AuditService, queue TaskQueue) *SLAMonitor {
	m := &SLAMonitor{db: db, locks: locks, audit: audit, queue: queue, hub: GetSSEHub()}
	if cfg != nil {
		m.cfg = *cfg
	}
	if m.cfg.EscalationIntervalHours <= 0 {
		m.cfg.EscalationIntervalHours = 24
	}
	if m.cfg.MaxEscalationLevel <= 0 {
		m.cfg.MaxEscalationLevel = 3
	}
	return m
}

var untimedStates = []string{string(workflow.Closed), string(workflow.Cancelled), string(workflow.OnHold)}

// Run performs one pass as of now. While another instance holds the pass
// lock the run is skipped.
func (m *SLAMonitor) Run(now time.Time) (*SLARunResult, error) {
	result := &SLARunResult{}
	if m.locks != nil {
		ok, err := m.locks.TryAcquire(slaLockName, slaLockKey, slaLockLease)
		if err != nil {
			return nil, err
		}
		if !ok {
			result.Skipped = true
			return result, nil
		}
		defer func() {
			if err := m.locks.Release(slaLockName, slaLockKey); err != nil {
				logger.Warn().Err(err).Msg("SLA monitor lock release failed")
			}
		}()
	}

	if err := m.db.Model(&models.Case{}).
		Where("sla_due_at IS NOT NULL AND current_state NOT IN ?", untimedStates).
		Count(&result.Checked).Error; err != nil {
		return nil, err
	}

	var overdue []models.Case
	if err := m.db.Where("sla_breached = ? AND sla_due_at IS NOT NULL AND sla_due_at <= ? AND current_state NOT IN ?",
		false, now, untimedStates).Order("sla_due_at ASC").Find(&overdue).Error; err != nil {
		return nil, err
	}
	for i := range overdue {
		ok, err := m.escalate(&overdue[i], 1, now)
		if err != nil {
			return result, err
		}
		if ok {
			result.Breached++
		}
	}

	var due []models.Case
	if err := m.db.Where("sla_breached = ? AND next_escalation_at IS NOT NULL AND next_escalation_at <= ? AND escalation_level < ? AND current_state NOT IN ?",
		true, now, m.cfg.MaxEscalationLevel, untimedStates).Order("next_escalation_at ASC").Find(&due).Error; err != nil {
		return nil, err
	}
	for i := range due {
		ok, err := m.escalate(&due[i], due[i].EscalationLevel+1, now)
		if err != nil {
			return result, err
		}
		if ok {
			result.Escalated++
		}
	}

	if result.Breached > 0 || result.Escalated > 0 {
		logger.Info().Int64("checked", result.Checked).Int("breached", result.Breached).
			Int("escalated", result.Escalated).Msg("SLA monitor pass")
	}
	return result, nil
}

// escalate moves c to level. It reports false when another writer got
// there first.
func (m *SLAMonitor) escalate(c *models.Case, level int, now time.Time) (bool, error) {
	var next *time.Time
	if level < m.cfg.MaxEscalationLevel {
		t := now.Add(time.Duration(m.cfg.EscalationIntervalHours) * time.Hour)
		next = &t
	}

	overdueBy := time.Duration(0)
	if c.SLADueAt != nil {
		overdueBy = now.Sub(*c.SLADueAt).Truncate(time.Minute)
	}
	comment := fmt.Sprintf("SLA overdue by %s, escalated to level %d", overdueBy, level)

	applied := false
	err := m.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Case{}).
			Where("id = ? AND escalation_level = ? AND current_state = ? AND version = ?", c.ID, c.EscalationLevel, c.CurrentState, c.Version).
			Updates(map[string]interface{}{
				"sla_breached":       true,
				"escalation_level":   level,
				"next_escalation_at": next,
				"version":            gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true

		if err := tx.Create(&models.CaseHistory{
			CaseID:    c.ID,
			FromState: c.CurrentState,
			ToState:   c.CurrentState,
			Action:    models.HistoryEscalate,
			Comment:   comment,
		}).Error; err != nil {
			return err
		}
		return m.audit.Record(tx, AuditEntry{
			EntityType: "case",
			EntityID:   c.ID,
			Action:     "escalate",
			Actor:      SystemActor,
			Before:     map[string]interface{}{"escalation_level": c.EscalationLevel, "sla_breached": c.SLABreached},
			After:      map[string]interface{}{"escalation_level": level, "sla_breached": true},
		})
	})
	if err != nil || !applied {
		return applied, err
	}

	m.hub.Publish(CaseEvent{
		Type:            CaseEventEscalation,
		CaseID:          c.ID,
		CaseNumber:      c.CaseNumber,
		FromState:       c.CurrentState,
		ToState:         c.CurrentState,
		EscalationLevel: level,
	})
	if m.queue != nil {
		task := &NotificationTask{
			Type:         TaskTypeNotifyEscalation,
			CaseID:       c.ID,
			CaseNumber:   c.CaseNumber,
			Title:        c.Title,
			State:        c.CurrentState,
			Level:        level,
			OverdueBy:    overdueBy.String(),
			RecipientIDs: m.recipients(c, level),
		}
		if err := m.queue.Enqueue(task); err != nil {
			logger.Warn().Err(err).Uint("case_id", c.ID).Msg("failed to enqueue escalation")
		}
	}
	LogWarning("Workflow", "Escalate", fmt.Sprintf("%s: %s", c.CaseNumber, comment), nil, "", "",
		map[string]interface{}{"case_id": c.ID, "level": level})
	return true, nil
}

// recipients: level 1 the assignee, level 2 the department manager, level 3
// every manager and admin. Each level falls back to the next when empty.
func (m *SLAMonitor) recipients(c *models.Case, level int) []uint {
	if level <= 1 && c.AssignedTo != nil {
		return []uint{*c.AssignedTo}
	}
	if level <= 2 {
		if c.DepartmentID != nil {
			var dept models.Department
			if m.db.First(&dept, *c.DepartmentID).Error == nil && dept.ManagerID != nil {
				return []uint{*dept.ManagerID}
			}
		}
		var ids []uint
		m.db.Model(&models.User{}).Where("role = ? AND is_active = ?", models.RoleManager, true).Pluck("id", &ids)
		if len(ids) > 0 {
			return ids
		}
	}
	var ids []uint
	m.db.Model(&models.User{}).Where("role IN ? AND is_active = ?", []string{models.RoleManager, models.RoleAdmin}, true).Pluck("id", &ids)
	return ids
}

// StartSLAScheduler runs the monitor on the configured cron spec.
func StartSLAScheduler(monitor *SLAMonitor, spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = "@every 5m"
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := monitor.Run(time.Now()); err != nil {
			logger.Error().Err(err).Msg("SLA monitor failed")
		}
	}); err != nil {
		return nil, err
	}
	c.Start()
	logger.Info().Str("spec", spec).Msg("SLA monitor scheduled")
	return c, nil
}
