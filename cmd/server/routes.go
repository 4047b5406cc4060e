package main

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/handlers"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	cfg := svc.cfg

	r.Use(logger.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	health := handlers.NewHealthHandler(svc.db, svc.taskQueue, svc.hub)
	r.GET("/health", health.CheckHealth)
	metrics := handlers.NewMetricsHandler(svc.db, svc.taskQueue, svc.hub, svc.dashboard)
	r.GET("/metrics", metrics.Metrics)

	authHandler := handlers.NewAuthHandler(svc.auth, svc.perms)
	userHandler := handlers.NewUserHandler(svc.users, svc.perms, svc.audit)
	locationHandler := handlers.NewLocationHandler(svc.locations, svc.access)
	clientHandler := handlers.NewClientHandler(svc.clients)
	caseHandler := handlers.NewCaseHandler(svc.cases, svc.slaMonitor)
	approvalHandler := handlers.NewApprovalHandler(svc.approvals)
	auditHandler := handlers.NewAuditHandler(svc.audit)
	salesHandler := handlers.NewSalesHandler(svc.estimations, svc.quotations, svc.salesOrders)
	purchaseHandler := handlers.NewPurchaseHandler(svc.vendors, svc.requisitions, svc.pos, svc.grns)
	inventoryHandler := handlers.NewInventoryHandler(svc.inventory)
	hrHandler := handlers.NewHRHandler(svc.departments, svc.employees, svc.holidays)
	leaveHandler := handlers.NewLeaveHandler(svc.leave, svc.employees, svc.perms)
	attendanceHandler := handlers.NewAttendanceHandler(svc.attendance, svc.employees)
	dashboardHandler := handlers.NewDashboardHandler(svc.dashboard)
	sseHandler := handlers.NewSSEHandler(svc.hub)
	imBotHandler := handlers.NewIMBotHandler(svc.imBots)
	configHandler := handlers.NewSystemConfigHandler(svc.configSvc, &cfg.LDAP)
	systemLogHandler := handlers.NewSystemLogHandler(svc.systemLogs)
	searchHandler := handlers.NewSearchHandler(svc.db, svc.perms)

	loginLimiter := middleware.NewRateLimiter(cfg.Server.LoginRateLimit, cfg.Server.LoginBurst, middleware.ByIP)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", loginLimiter.Middleware(), authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/config", authHandler.GetAuthConfig)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.LocationAccess(svc.access), middleware.AuditLog())

		perm := func(module, action string) gin.HandlerFunc {
			return middleware.RequirePermission(svc.perms, module, action)
		}
		view := func(module string) gin.HandlerFunc { return perm(module, models.ActionView) }
		create := func(module string) gin.HandlerFunc { return perm(module, models.ActionCreate) }
		edit := func(module string) gin.HandlerFunc { return perm(module, models.ActionEdit) }
		del := func(module string) gin.HandlerFunc { return perm(module, models.ActionDelete) }
		approve := func(module string) gin.HandlerFunc { return perm(module, models.ActionApprove) }

		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.POST("/auth/change-password", authHandler.ChangePassword)

			protected.GET("/dashboard", view(models.ModuleDashboard), dashboardHandler.Get)
			protected.GET("/search", searchHandler.Search)
			protected.GET("/events/cases", sseHandler.StreamCaseEvents)
			protected.POST("/access/validate", locationHandler.Validate)

			users := protected.Group("/users")
			{
				users.GET("", view(models.ModuleUsers), userHandler.List)
				users.GET("/:id", view(models.ModuleUsers), userHandler.GetByID)
				users.POST("", create(models.ModuleUsers), userHandler.Create)
				users.PUT("/:id", edit(models.ModuleUsers), userHandler.Update)
				users.DELETE("/:id", del(models.ModuleUsers), userHandler.Delete)
			}
			protected.GET("/roles/:role/permissions", view(models.ModuleUsers), userHandler.GetRolePermissions)
			protected.PUT("/roles/:role/permissions", middleware.AdminRequired(), userHandler.SetRolePermissions)

			locations := protected.Group("/locations")
			{
				locations.GET("", view(models.ModuleLocations), locationHandler.List)
				locations.GET("/:id", view(models.ModuleLocations), locationHandler.GetByID)
				locations.POST("", create(models.ModuleLocations), locationHandler.Create)
				locations.PUT("/:id", edit(models.ModuleLocations), locationHandler.Update)
				locations.DELETE("/:id", del(models.ModuleLocations), locationHandler.Delete)
			}

			clients := protected.Group("/clients")
			{
				clients.GET("", view(models.ModuleClients), clientHandler.List)
				clients.GET("/:id", view(models.ModuleClients), clientHandler.GetByID)
				clients.POST("", create(models.ModuleClients), clientHandler.Create)
				clients.PUT("/:id", edit(models.ModuleClients), clientHandler.Update)
				clients.DELETE("/:id", del(models.ModuleClients), clientHandler.Delete)
			}

			cases := protected.Group("/cases")
			{
				cases.GET("", view(models.ModuleCases), caseHandler.List)
				cases.GET("/export", view(models.ModuleCases), caseHandler.Export)
				cases.GET("/:id", view(models.ModuleCases), caseHandler.GetByID)
				cases.POST("", create(models.ModuleCases), caseHandler.Create)
				cases.PUT("/:id", edit(models.ModuleCases), caseHandler.Update)
				cases.POST("/:id/transition", edit(models.ModuleCases), caseHandler.Transition)
				cases.POST("/:id/assign", edit(models.ModuleCases), caseHandler.Assign)
				cases.POST("/:id/comment", view(models.ModuleCases), caseHandler.Comment)
				cases.GET("/:id/history", view(models.ModuleCases), caseHandler.History)
				cases.GET("/:id/timeline", view(models.ModuleCases), caseHandler.Timeline)
			}
			protected.POST("/workflow/sla/run", middleware.AdminRequired(), caseHandler.RunSLA)

			approvals := protected.Group("/approvals")
			{
				approvals.GET("", view(models.ModuleApprovals), approvalHandler.List)
				approvals.GET("/mine", approvalHandler.Mine)
				approvals.GET("/:id", view(models.ModuleApprovals), approvalHandler.GetByID)
				// per-entity approve rights are checked by the approval service
				approvals.POST("/:id/approve", approvalHandler.Approve)
				approvals.POST("/:id/reject", approvalHandler.Reject)
			}

			audit := protected.Group("/audit")
			{
				audit.GET("", view(models.ModuleAudit), auditHandler.List)
				audit.GET("/export", view(models.ModuleAudit), auditHandler.Export)
				audit.GET("/:entity_type/:entity_id", view(models.ModuleAudit), auditHandler.Trail)
			}

			estimations := protected.Group("/estimations")
			{
				estimations.GET("", view(models.ModuleSales), salesHandler.ListEstimations)
				estimations.GET("/:id", view(models.ModuleSales), salesHandler.GetEstimation)
				estimations.POST("", create(models.ModuleSales), salesHandler.CreateEstimation)
				estimations.PUT("/:id", edit(models.ModuleSales), salesHandler.UpdateEstimation)
				estimations.POST("/:id/submit", edit(models.ModuleSales), salesHandler.SubmitEstimation)
				estimations.POST("/:id/quotation", create(models.ModuleSales), salesHandler.QuoteEstimation)
				estimations.DELETE("/:id", del(models.ModuleSales), salesHandler.DeleteEstimation)
			}

			quotations := protected.Group("/quotations")
			{
				quotations.GET("", view(models.ModuleSales), salesHandler.ListQuotations)
				quotations.GET("/:id", view(models.ModuleSales), salesHandler.GetQuotation)
				quotations.POST("", create(models.ModuleSales), salesHandler.CreateQuotation)
				quotations.PUT("/:id", edit(models.ModuleSales), salesHandler.UpdateQuotation)
				quotations.POST("/:id/send", edit(models.ModuleSales), salesHandler.SendQuotation)
				quotations.POST("/:id/accept", edit(models.ModuleSales), salesHandler.AcceptQuotation)
				quotations.POST("/:id/reject", edit(models.ModuleSales), salesHandler.RejectQuotation)
			}

			orders := protected.Group("/sales-orders")
			{
				orders.GET("", view(models.ModuleSales), salesHandler.ListOrders)
				orders.GET("/:id", view(models.ModuleSales), salesHandler.GetOrder)
				orders.POST("", create(models.ModuleSales), salesHandler.CreateOrder)
				orders.POST("/:id/confirm", approve(models.ModuleSales), salesHandler.ConfirmOrder)
				orders.POST("/:id/complete", edit(models.ModuleSales), salesHandler.CompleteOrder)
				orders.POST("/:id/cancel", edit(models.ModuleSales), salesHandler.CancelOrder)
			}

			vendors := protected.Group("/vendors")
			{
				vendors.GET("", view(models.ModuleVendors), purchaseHandler.ListVendors)
				vendors.GET("/:id", view(models.ModuleVendors), purchaseHandler.GetVendor)
				vendors.POST("", create(models.ModuleVendors), purchaseHandler.CreateVendor)
				vendors.PUT("/:id", edit(models.ModuleVendors), purchaseHandler.UpdateVendor)
				vendors.DELETE("/:id", del(models.ModuleVendors), purchaseHandler.DeleteVendor)
			}

			requisitions := protected.Group("/requisitions")
			{
				requisitions.GET("", view(models.ModulePurchase), purchaseHandler.ListRequisitions)
				requisitions.GET("/:id", view(models.ModulePurchase), purchaseHandler.GetRequisition)
				requisitions.POST("", create(models.ModulePurchase), purchaseHandler.CreateRequisition)
				requisitions.PUT("/:id", edit(models.ModulePurchase), purchaseHandler.UpdateRequisition)
				requisitions.POST("/:id/submit", create(models.ModulePurchase), purchaseHandler.SubmitRequisition)
			}

			pos := protected.Group("/purchase-orders")
			{
				pos.GET("", view(models.ModulePurchase), purchaseHandler.ListOrders)
				pos.GET("/:id", view(models.ModulePurchase), purchaseHandler.GetOrder)
				pos.POST("", create(models.ModulePurchase), purchaseHandler.CreateOrder)
				pos.PUT("/:id", edit(models.ModulePurchase), purchaseHandler.UpdateOrder)
				pos.POST("/:id/submit", edit(models.ModulePurchase), purchaseHandler.SubmitOrder)
				pos.POST("/:id/cancel", edit(models.ModulePurchase), purchaseHandler.CancelOrder)
			}

			grns := protected.Group("/grns")
			{
				grns.GET("", view(models.ModuleInventory), purchaseHandler.ListReceipts)
				grns.GET("/:id", view(models.ModuleInventory), purchaseHandler.GetReceipt)
				grns.POST("", create(models.ModuleInventory), purchaseHandler.PostReceipt)
			}

			warehouses := protected.Group("/warehouses")
			{
				warehouses.GET("", view(models.ModuleInventory), inventoryHandler.ListWarehouses)
				warehouses.POST("", create(models.ModuleInventory), inventoryHandler.CreateWarehouse)
				warehouses.PUT("/:id", edit(models.ModuleInventory), inventoryHandler.UpdateWarehouse)
			}

			items := protected.Group("/items")
			{
				items.GET("", view(models.ModuleInventory), inventoryHandler.ListItems)
				items.GET("/:id", view(models.ModuleInventory), inventoryHandler.GetItem)
				items.POST("", create(models.ModuleInventory), inventoryHandler.CreateItem)
				items.PUT("/:id", edit(models.ModuleInventory), inventoryHandler.UpdateItem)
			}

			stock := protected.Group("/stock")
			{
				stock.GET("", view(models.ModuleInventory), inventoryHandler.ListStock)
				stock.GET("/export", view(models.ModuleInventory), inventoryHandler.ExportStock)
				stock.GET("/low", view(models.ModuleInventory), inventoryHandler.LowStock)
				stock.GET("/ledger", view(models.ModuleInventory), inventoryHandler.Ledger)
				stock.POST("/adjust", edit(models.ModuleInventory), inventoryHandler.Adjust)
				stock.POST("/transfer", edit(models.ModuleInventory), inventoryHandler.Transfer)
			}

			departments := protected.Group("/departments")
			{
				departments.GET("", view(models.ModuleHR), hrHandler.ListDepartments)
				departments.POST("", create(models.ModuleHR), hrHandler.CreateDepartment)
				departments.PUT("/:id", edit(models.ModuleHR), hrHandler.UpdateDepartment)
				departments.DELETE("/:id", del(models.ModuleHR), hrHandler.DeleteDepartment)
			}

			employees := protected.Group("/employees")
			{
				employees.GET("/me", hrHandler.Me)
				employees.GET("", view(models.ModuleHR), hrHandler.ListEmployees)
				employees.GET("/:id", view(models.ModuleHR), hrHandler.GetEmployee)
				employees.POST("", create(models.ModuleHR), hrHandler.CreateEmployee)
				employees.PUT("/:id", edit(models.ModuleHR), hrHandler.UpdateEmployee)
				employees.POST("/:id/deactivate", del(models.ModuleHR), hrHandler.DeactivateEmployee)
			}

			holidays := protected.Group("/holidays")
			{
				holidays.GET("", hrHandler.ListHolidays)
				holidays.GET("/countries", hrHandler.HolidayCountries)
				holidays.POST("", create(models.ModuleHR), hrHandler.CreateHoliday)
				holidays.PUT("/:id", edit(models.ModuleHR), hrHandler.UpdateHoliday)
				holidays.DELETE("/:id", del(models.ModuleHR), hrHandler.DeleteHoliday)
			}

			leave := protected.Group("/leave")
			{
				leave.GET("/types", leaveHandler.Types)
				leave.GET("/balances", leaveHandler.Balances)
				leave.GET("/applications", view(models.ModuleLeave), leaveHandler.List)
				leave.GET("/applications/mine", leaveHandler.Mine)
				leave.GET("/applications/:id", leaveHandler.GetByID)
				leave.POST("/applications", create(models.ModuleLeave), leaveHandler.Apply)
				leave.POST("/applications/:id/cancel", leaveHandler.Cancel)
				leave.POST("/rollover", middleware.AdminRequired(), leaveHandler.Rollover)
			}

			attendance := protected.Group("/attendance")
			{
				attendance.POST("/check-in", attendanceHandler.CheckIn)
				attendance.POST("/check-out", attendanceHandler.CheckOut)
				attendance.GET("/today", attendanceHandler.Today)
				attendance.GET("/mine", attendanceHandler.Mine)
				attendance.GET("", view(models.ModuleHR), attendanceHandler.List)
				attendance.GET("/report", view(models.ModuleHR), attendanceHandler.Report)
			}

			admin := protected.Group("")
			admin.Use(middleware.AdminRequired())
			{
				admin.GET("/im-bots", imBotHandler.List)
				admin.GET("/im-bots/:id", imBotHandler.GetByID)
				admin.POST("/im-bots", imBotHandler.Create)
				admin.PUT("/im-bots/:id", imBotHandler.Update)
				admin.DELETE("/im-bots/:id", imBotHandler.Delete)
				admin.POST("/im-bots/:id/test", imBotHandler.Test)

				admin.GET("/system-configs", configHandler.List)
				admin.PUT("/system-configs", configHandler.Update)
				admin.GET("/system-configs/ldap", configHandler.GetLDAPConfig)
				admin.PUT("/system-configs/ldap", configHandler.UpdateLDAPConfig)

				admin.GET("/system-logs", systemLogHandler.List)
				admin.GET("/system-logs/modules", systemLogHandler.GetModules)
				admin.GET("/system-logs/retention", systemLogHandler.GetRetention)
				admin.PUT("/system-logs/retention", systemLogHandler.SetRetention)
			}
		}
	}
}
