package main

import (
	"github.com/robfig/cron/v3"
	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/handlers"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/internal/utils"
	"github.com/vtria/erp/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds every service, background job and the state the router needs.
type appServices struct {
	cfg       *config.Config
	db        *gorm.DB
	taskQueue services.TaskQueue
	worker    *services.Worker
	crons     []*cron.Cron
	hub       *services.SSEHub

	perms        *services.PermissionCache
	audit        *services.AuditService
	configSvc    *services.SystemConfigService
	auth         *services.AuthService
	access       *services.AccessService
	users        *services.UserService
	locations    *services.LocationService
	clients      *services.ClientService
	approvals    *services.ApprovalService
	cases        *services.CaseService
	slaMonitor   *services.SLAMonitor
	estimations  *services.EstimationService
	quotations   *services.QuotationService
	salesOrders  *services.SalesOrderService
	vendors      *services.VendorService
	requisitions *services.RequisitionService
	pos          *services.PurchaseOrderService
	grns         *services.GRNService
	inventory    *services.InventoryService
	departments  *services.DepartmentService
	employees    *services.EmployeeService
	holidays     *services.HolidayService
	leave        *services.LeaveService
	attendance   *services.AttendanceService
	dashboard    *services.DashboardService
	imBots       *services.IMBotService
	systemLogs   *services.SystemLogService
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()
	if err := models.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.Seed(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}
	if err := handlers.RegisterValidators(); err != nil {
		logger.Fatalf("Failed to register validators: %v", err)
	}

	services.InitSystemLogger(db)

	s := &appServices{cfg: cfg, db: db, hub: services.GetSSEHub()}
	loc := cfg.Company.Location()

	s.configSvc = services.NewSystemConfigService(db)
	s.audit = services.NewAuditService(db)
	s.perms = services.NewPermissionCache(db)
	if err := s.perms.Refresh(); err != nil {
		logger.Fatalf("Failed to load role permissions: %v", err)
	}

	// notifications go through Redis when enabled, otherwise inline
	email := services.NewEmailService(s.configSvc, &cfg.SMTP)
	notifier := services.NewNotificationService(db, email)
	s.taskQueue = services.InitTaskQueue(cfg)
	if syncQueue, ok := s.taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(notifier.ProcessTask)
	}
	if worker := services.NewWorker(&cfg.Redis); worker != nil {
		worker.SetProcessor(notifier.ProcessTask)
		if err := worker.Start(); err != nil {
			logger.Error().Err(err).Msg("Failed to start notification worker")
		} else {
			s.worker = worker
		}
	}

	s.access = services.NewAccessService(db, &cfg.Access, s.configSvc, s.audit)
	ldap := services.NewLDAPService(&cfg.LDAP, s.configSvc)
	s.auth = services.NewAuthService(db, &cfg.JWT, ldap, s.configSvc, s.access)
	s.users = services.NewUserService(db, s.audit, s.auth)
	s.locations = services.NewLocationService(db, s.audit)
	s.clients = services.NewClientService(db, s.audit)

	seq := services.NewSequenceService(cfg.Company.Prefix, cfg.Company.FiscalYearStartMonth, loc)
	locks := services.NewSchedulerLockService(db)
	s.holidays = services.NewHolidayService(db, cfg.Company.HolidayCountry, loc)
	s.approvals = services.NewApprovalService(db, s.perms, s.audit, s.taskQueue)

	sla := services.NewSLACalculator(s.configSvc, s.holidays, &cfg.Workflow)
	s.cases = services.NewCaseService(db, s.audit, s.approvals, s.perms, seq, sla)
	s.slaMonitor = services.NewSLAMonitor(db, &cfg.Workflow, locks, s.audit, s.taskQueue)

	s.estimations = services.NewEstimationService(db, s.audit, s.approvals, seq)
	s.quotations = services.NewQuotationService(db, s.audit, s.approvals, seq, s.configSvc)
	s.salesOrders = services.NewSalesOrderService(db, s.audit, seq)

	s.inventory = services.NewInventoryService(db, s.audit, seq)
	s.vendors = services.NewVendorService(db, s.audit)
	s.requisitions = services.NewRequisitionService(db, s.audit, s.approvals, seq)
	s.pos = services.NewPurchaseOrderService(db, s.audit, s.approvals, seq)
	s.grns = services.NewGRNService(db, s.audit, seq)

	s.departments = services.NewDepartmentService(db, s.audit)
	s.employees = services.NewEmployeeService(db, s.audit)
	s.leave = services.NewLeaveService(db, s.audit, s.approvals, s.perms, s.holidays)
	s.attendance = services.NewAttendanceService(db, s.audit, s.access, s.configSvc, loc)

	s.dashboard = services.NewDashboardService(db, s.approvals, s.inventory)
	s.imBots = services.NewIMBotService(db)
	s.systemLogs = services.NewSystemLogService(db)

	if c := services.StartLogCleanupScheduler(db); c != nil {
		s.crons = append(s.crons, c)
	}
	if c, err := services.StartSLAScheduler(s.slaMonitor, cfg.Workflow.SLACheckInterval); err != nil {
		logger.Error().Err(err).Msg("Failed to schedule SLA monitor")
	} else {
		s.crons = append(s.crons, c)
	}
	if c, err := services.StartLeaveRolloverScheduler(s.leave, locks, loc); err != nil {
		logger.Error().Err(err).Msg("Failed to schedule leave rollover")
	} else {
		s.crons = append(s.crons, c)
	}

	if err := s.auth.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return s
}

// shutdown stops schedulers first so no job starts while the queue drains.
func (s *appServices) shutdown() {
	for _, c := range s.crons {
		<-c.Stop().Done()
	}
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close task queue")
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
