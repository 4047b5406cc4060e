package models

const (
	ModuleCases      = "cases"
	ModuleApprovals  = "approvals"
	ModuleAudit      = "audit"
	ModuleDashboard  = "dashboard"
	ModuleClients    = "clients"
	ModuleSales      = "sales"
	ModulePurchase   = "purchase"
	ModuleVendors    = "vendors"
	ModuleInventory  = "inventory"
	ModuleHR         = "hr"
	ModuleLeave      = "leave"
	ModuleAttendance = "attendance"
	ModuleUsers      = "users"
	ModuleSettings   = "settings"
	ModuleLocations  = "locations"

	ActionView    = "view"
	ActionCreate  = "create"
	ActionEdit    = "edit"
	ActionDelete  = "delete"
	ActionApprove = "approve"
)

var AllModules = []string{
	ModuleCases, ModuleApprovals, ModuleAudit, ModuleDashboard, ModuleClients,
	ModuleSales, ModulePurchase, ModuleVendors, ModuleInventory, ModuleHR,
	ModuleLeave, ModuleAttendance, ModuleUsers, ModuleSettings, ModuleLocations,
}

var AllActions = []string{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionApprove}

func IsValidModule(module string) bool {
	for _, m := range AllModules {
		if m == module {
			return true
		}
	}
	return false
}

func IsValidAction(action string) bool {
	for _, a := range AllActions {
		if a == action {
			return true
		}
	}
	return false
}

var (
	viewOnly   = []string{ActionView}
	selfServe  = []string{ActionView, ActionCreate}
	editor     = []string{ActionView, ActionCreate, ActionEdit}
	maintainer = []string{ActionView, ActionCreate, ActionEdit, ActionDelete}
	approver   = []string{ActionView, ActionCreate, ActionEdit, ActionApprove}
)

// DefaultRolePermissions is the seeded matrix. Admin is not listed because
// it bypasses every check.
var DefaultRolePermissions = map[string]map[string][]string{
	RoleManager: {
		ModuleCases:      AllActions,
		ModuleApprovals:  []string{ActionView, ActionApprove},
		ModuleAudit:      viewOnly,
		ModuleDashboard:  viewOnly,
		ModuleClients:    AllActions,
		ModuleSales:      AllActions,
		ModulePurchase:   AllActions,
		ModuleVendors:    AllActions,
		ModuleInventory:  AllActions,
		ModuleHR:         viewOnly,
		ModuleLeave:      approver,
		ModuleAttendance: viewOnly,
		ModuleUsers:      viewOnly,
		ModuleSettings:   viewOnly,
		ModuleLocations:  viewOnly,
	},
	RoleSales: {
		ModuleCases:      editor,
		ModuleApprovals:  viewOnly,
		ModuleDashboard:  viewOnly,
		ModuleClients:    editor,
		ModuleSales:      editor,
		ModuleInventory:  viewOnly,
		ModuleLeave:      selfServe,
		ModuleAttendance: selfServe,
	},
	RoleEstimator: {
		ModuleCases:      []string{ActionView, ActionEdit},
		ModuleApprovals:  viewOnly,
		ModuleDashboard:  viewOnly,
		ModuleClients:    viewOnly,
		ModuleSales:      editor,
		ModuleInventory:  viewOnly,
		ModuleLeave:      selfServe,
		ModuleAttendance: selfServe,
	},
	RolePurchase: {
		ModuleCases:      viewOnly,
		ModuleApprovals:  viewOnly,
		ModuleDashboard:  viewOnly,
		ModulePurchase:   maintainer,
		ModuleVendors:    maintainer,
		ModuleInventory:  viewOnly,
		ModuleLeave:      selfServe,
		ModuleAttendance: selfServe,
	},
	RoleStore: {
		ModuleCases:      viewOnly,
		ModuleDashboard:  viewOnly,
		ModulePurchase:   viewOnly,
		ModuleVendors:    viewOnly,
		ModuleInventory:  editor,
		ModuleLeave:      selfServe,
		ModuleAttendance: selfServe,
	},
	RoleHR: {
		ModuleApprovals:  []string{ActionView, ActionApprove},
		ModuleDashboard:  viewOnly,
		ModuleHR:         maintainer,
		ModuleLeave:      approver,
		ModuleAttendance: editor,
		ModuleUsers:      viewOnly,
		ModuleLocations:  viewOnly,
	},
	RoleTechnician: {
		ModuleCases:      []string{ActionView, ActionEdit},
		ModuleDashboard:  viewOnly,
		ModuleClients:    viewOnly,
		ModuleInventory:  viewOnly,
		ModuleLeave:      selfServe,
		ModuleAttendance: selfServe,
	},
	RoleEmployee: {
		ModuleDashboard:  viewOnly,
		ModuleLeave:      selfServe,
		ModuleAttendance: selfServe,
	},
}
