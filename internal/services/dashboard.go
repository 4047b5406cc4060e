package services

import (
	"time"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services/workflow"
	"gorm.io/gorm"
)

// DashboardService aggregates the workflow, approval, HR and stock
// counters shown on the landing page.
type DashboardService struct {
	db        *gorm.DB
	approvals *ApprovalService
	inventory *InventoryService
	now       func() time.Time
}

func NewDashboardService(db *gorm.DB, approvals *ApprovalService, inventory *InventoryService) *DashboardService {
	return &DashboardService{db: db, approvals: approvals, inventory: inventory, now: time.Now}
}

type DashboardRequest struct {
	Days       int  `form:"days" binding:"omitempty,min=1,max=365"`
	LocationID uint `form:"location_id"`
}

type StateCount struct {
	State string `json:"state"`
	Count int64  `json:"count"`
}

type StateDuration struct {
	State        string  `json:"state"`
	AverageHours float64 `json:"average_hours"`
	Samples      int64   `json:"samples"`
}

type ApprovalCount struct {
	EntityType string `json:"entity_type"`
	Count      int64  `json:"count"`
}

type RecentTransition struct {
	CaseID     uint      `json:"case_id"`
	CaseNumber string    `json:"case_number"`
	Title      string    `json:"title"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

type DashboardResponse struct {
	CasesByState       []StateCount       `json:"cases_by_state"`
	OpenCases          int64              `json:"open_cases"`
	BreachedCases      int64              `json:"breached_cases"`
	BreachedByState    []StateCount       `json:"breached_by_state"`
	PendingApprovals   []ApprovalCount    `json:"pending_approvals"`
	AverageStateHours  []StateDuration    `json:"average_state_hours"`
	RecentTransitions  []RecentTransition `json:"recent_transitions"`
	MyOpenCases        []models.Case      `json:"my_open_cases"`
	MyApprovals        int64              `json:"my_approvals"`
	PendingLeave       int64              `json:"pending_leave"`
	POsAwaitingApprove int64              `json:"pos_awaiting_approval"`
	LowStockItems      int64              `json:"low_stock_items"`
	WindowDays         int                `json:"window_days"`
}

var terminalStates = []string{string(workflow.Closed), string(workflow.Cancelled)}

func (s *DashboardService) cases(locationID uint) *gorm.DB {
	q := s.db.Model(&models.Case{})
	if locationID > 0 {
		q = q.Where("location_id = ?", locationID)
	}
	return q
}

func (s *DashboardService) Get(req *DashboardRequest, actor *Actor) (*DashboardResponse, error) {
	days := req.Days
	if days == 0 {
		days = 30
	}
	since := s.now().AddDate(0, 0, -days)
	out := &DashboardResponse{WindowDays: days}

	if err := s.cases(req.LocationID).
		Select("current_state AS state, COUNT(*) AS count").
		Group("current_state").
		Scan(&out.CasesByState).Error; err != nil {
		return nil, err
	}
	out.CasesByState = fillStates(out.CasesByState)
	for _, c := range out.CasesByState {
		if !workflow.State(c.State).IsTerminal() {
			out.OpenCases += c.Count
		}
	}

	if err := s.cases(req.LocationID).
		Select("current_state AS state, COUNT(*) AS count").
		Where("sla_breached = ? AND current_state NOT IN ?", true, terminalStates).
		Group("current_state").
		Scan(&out.BreachedByState).Error; err != nil {
		return nil, err
	}
	for _, c := range out.BreachedByState {
		out.BreachedCases += c.Count
	}

	if err := s.db.Model(&models.ApprovalRequest{}).
		Select("entity_type, COUNT(*) AS count").
		Where("status = ?", models.ApprovalPending).
		Group("entity_type").
		Order("entity_type ASC").
		Scan(&out.PendingApprovals).Error; err != nil {
		return nil, err
	}

	hist := s.db.Table("case_histories AS h").
		Select("h.from_state AS state, AVG(h.duration_seconds) / 3600.0 AS average_hours, COUNT(*) AS samples").
		Where("h.created_at >= ? AND h.from_state <> '' AND h.duration_seconds > 0", since).
		Where("h.action IN ?", []string{models.HistoryTransition, models.HistoryHold, models.HistoryResume}).
		Group("h.from_state").
		Order("h.from_state ASC")
	if req.LocationID > 0 {
		hist = hist.Joins("JOIN cases c ON c.id = h.case_id").Where("c.location_id = ?", req.LocationID)
	}
	if err := hist.Scan(&out.AverageStateHours).Error; err != nil {
		return nil, err
	}

	recent := s.db.Table("case_histories AS h").
		Select("h.case_id, c.case_number, c.title, h.from_state, h.to_state, h.action, COALESCE(u.username, 'system') AS actor, h.created_at").
		Joins("JOIN cases c ON c.id = h.case_id").
		Joins("LEFT JOIN users u ON u.id = h.actor_id").
		Where("h.action IN ?", []string{models.HistoryTransition, models.HistoryHold, models.HistoryResume, models.HistoryEscalate}).
		Order("h.created_at DESC, h.id DESC").
		Limit(10)
	if req.LocationID > 0 {
		recent = recent.Where("c.location_id = ?", req.LocationID)
	}
	if err := recent.Scan(&out.RecentTransitions).Error; err != nil {
		return nil, err
	}

	if actor != nil && actor.UserID > 0 {
		if err := s.db.Preload("Client").
			Where("assigned_to = ? AND current_state NOT IN ?", actor.UserID, terminalStates).
			Order("sla_due_at IS NULL, sla_due_at ASC").
			Limit(20).
			Find(&out.MyOpenCases).Error; err != nil {
			return nil, err
		}
		if s.approvals != nil {
			out.MyApprovals = s.approvals.CountMine(actor)
		}
	}

	s.db.Model(&models.LeaveApplication{}).Where("status = ?", models.LeavePending).Count(&out.PendingLeave)
	s.db.Model(&models.PurchaseOrder{}).Where("status = ?", models.StatusSubmitted).Count(&out.POsAwaitingApprove)
	if s.inventory != nil {
		out.LowStockItems = s.inventory.CountLowStock()
	}
	return out, nil
}

// fillStates returns one row per workflow state, zero where nothing
// matched, in lifecycle order.
func fillStates(rows []StateCount) []StateCount {
	byState := make(map[string]int64, len(rows))
	for _, r := range rows {
		byState[r.State] = r.Count
	}
	all := workflow.AllStates()
	out := make([]StateCount, 0, len(all))
	for _, st := range all {
		out = append(out, StateCount{State: string(st), Count: byState[string(st)]})
	}
	return out
}
