package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services/workflow"
	"github.com/vtria/erp/pkg/logger"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

// CaseService drives cases through the workflow. Every state change is a
// conditional update on (id, current_state, version) so two writers can
// never both win.
type CaseService struct {
	db        *gorm.DB
	audit     *AuditService
	approvals *ApprovalService
	perms     *PermissionCache
	seq       *SequenceService
	sla       *SLACalculator
	hub       *SSEHub
	now       func() time.Time
}

func NewCaseService(db *gorm.DB, audit *AuditService, approvals *ApprovalService, perms *PermissionCache, seq *SequenceService, sla *SLACalculator) *CaseService {
	s := &CaseService{
		db:        db,
		audit:     audit,
		approvals: approvals,
		perms:     perms,
		seq:       seq,
		sla:       sla,
		hub:       GetSSEHub(),
		now:       time.Now,
	}
	if approvals != nil {
		approvals.Register(models.ApprovalCaseTransition, &caseTransitionApproval{s: s})
	}
	return s
}

type CaseCreateRequest struct {
	Title        string `json:"title" binding:"required,max=255"`
	Description  string `json:"description"`
	ClientID     *uint  `json:"client_id"`
	Priority     string `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	AssignedTo   *uint  `json:"assigned_to"`
	DepartmentID *uint  `json:"department_id"`
	LocationID   *uint  `json:"location_id"`
}

type CaseUpdateRequest struct {
	Title           string `json:"title" binding:"required,max=255"`
	Description     string `json:"description"`
	ClientID        *uint  `json:"client_id"`
	Priority        string `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	DepartmentID    *uint  `json:"department_id"`
	LocationID      *uint  `json:"location_id"`
	ExpectedVersion *int   `json:"expected_version"`
}

type CaseListRequest struct {
	PageRequest
	Number     string `form:"number" binding:"omitempty,fiscal_doc"`
	State      string `form:"state" binding:"omitempty,state"`
	Priority   string `form:"priority"`
	AssignedTo uint   `form:"assigned_to"`
	ClientID   uint   `form:"client_id"`
	LocationID uint   `form:"location_id"`
	Breached   *bool  `form:"breached"`
	Search     string `form:"search"`
	From       string `form:"from"`
	To         string `form:"to"`
}

type TransitionRequest struct {
	ToState         string `json:"to_state" binding:"required,state"`
	Comment         string `json:"comment" binding:"max=2000"`
	ExpectedVersion *int   `json:"expected_version"`
}

// TransitionResult is either the moved case or the approval that now gates
// the move.
type TransitionResult struct {
	Transitioned bool                    `json:"transitioned"`
	Case         *models.Case            `json:"case,omitempty"`
	Approval     *models.ApprovalRequest `json:"approval,omitempty"`
}

type AssignRequest struct {
	AssigneeID uint   `json:"assignee_id" binding:"required"`
	Comment    string `json:"comment" binding:"max=2000"`
}

type CommentRequest struct {
	Comment string `json:"comment" binding:"required,max=5000"`
}

func (s *CaseService) filtered(req *CaseListRequest) (*gorm.DB, error) {
	query := s.db.Model(&models.Case{})
	if req.Number != "" {
		query = query.Where("case_number = ?", req.Number)
	}
	if req.State != "" {
		query = query.Where("current_state = ?", req.State)
	}
	if req.Priority != "" {
		query = query.Where("priority = ?", req.Priority)
	}
	if req.AssignedTo > 0 {
		query = query.Where("assigned_to = ?", req.AssignedTo)
	}
	if req.ClientID > 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	if req.LocationID > 0 {
		query = query.Where("location_id = ?", req.LocationID)
	}
	if req.Breached != nil {
		query = query.Where("sla_breached = ?", *req.Breached)
	}
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("case_number LIKE ? OR title LIKE ? OR description LIKE ?", like, like, like)
	}
	if req.From != "" {
		from, err := parseDate(req.From)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at >= ?", from)
	}
	if req.To != "" {
		to, err := parseDate(req.To)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
	}
	return query, nil
}

func (s *CaseService) List(req *CaseListRequest) (*PageResult[models.Case], error) {
	query, err := s.filtered(req)
	if err != nil {
		return nil, err
	}
	return paginate[models.Case](query.Preload("Client").Preload("Assignee"), &req.PageRequest, "created_at DESC, id DESC")
}

func (s *CaseService) GetByID(id uint) (*models.Case, error) {
	var c models.Case
	if err := s.db.Preload("Client").Preload("Assignee").First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "case not found")
	}
	return &c, nil
}

func (s *CaseService) checkRefs(clientID, assigneeID *uint) error {
	if clientID != nil {
		var n int64
		s.db.Model(&models.Client{}).Where("id = ? AND status = ?", *clientID, "active").Count(&n)
		if n == 0 {
			return response.NewBadRequest("client not found or inactive")
		}
	}
	if assigneeID != nil {
		var n int64
		s.db.Model(&models.User{}).Where("id = ? AND is_active = ?", *assigneeID, true).Count(&n)
		if n == 0 {
			return response.NewBadRequest("assignee not found or inactive")
		}
	}
	return nil
}

func (s *CaseService) Create(req *CaseCreateRequest, actor *Actor) (*models.Case, error) {
	if err := s.checkRefs(req.ClientID, req.AssignedTo); err != nil {
		return nil, err
	}

	now := s.now()
	c := models.Case{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		ClientID:       req.ClientID,
		Priority:       models.PriorityNormal,
		CurrentState:   string(workflow.Enquiry),
		AssignedTo:     req.AssignedTo,
		DepartmentID:   req.DepartmentID,
		LocationID:     req.LocationID,
		StateEnteredAt: now,
		Version:        1,
		CreatedBy:      actor.UserID,
	}
	if req.Priority != "" {
		c.Priority = req.Priority
	}
	if c.LocationID == nil {
		c.LocationID = actor.LocationID
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.Next(tx, models.DocEnquiry, now)
		if err != nil {
			return err
		}
		c.CaseNumber = number
		c.SLADueAt = s.sla.within(tx).DueAt(workflow.Enquiry, now)
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.CaseHistory{
			CaseID:  c.ID,
			ToState: c.CurrentState,
			Action:  models.HistoryCreate,
			ActorID: actor.userIDPtr(),
			Comment: c.Title,
		}).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "case", EntityID: c.ID, Action: "create", Actor: actor, After: c})
	})
	if err != nil {
		return nil, err
	}

	s.hub.Publish(CaseEvent{Type: CaseEventTransition, CaseID: c.ID, CaseNumber: c.CaseNumber, ToState: c.CurrentState, ActorID: actor.UserID})
	LogInfo("Case", "Create", "created "+c.CaseNumber, actor.userIDPtr(), actor.IP, actor.UserAgent, map[string]interface{}{"case_id": c.ID})
	return &c, nil
}

func checkVersion(c *models.Case, expected *int) error {
	if expected != nil && *expected != c.Version {
		return response.NewConflict(fmt.Sprintf("case was modified (version %d, expected %d)", c.Version, *expected))
	}
	return nil
}

// Update changes descriptive fields only; state moves go through Transition.
func (s *CaseService) Update(id uint, req *CaseUpdateRequest, actor *Actor) (*models.Case, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(before, req.ExpectedVersion); err != nil {
		return nil, err
	}
	if err := s.checkRefs(req.ClientID, nil); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"title":         strings.TrimSpace(req.Title),
		"description":   req.Description,
		"client_id":     req.ClientID,
		"department_id": req.DepartmentID,
		"location_id":   req.LocationID,
		"version":       gorm.Expr("version + 1"),
	}
	if req.Priority != "" {
		updates["priority"] = req.Priority
	}

	var after models.Case
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Case{}).Where("id = ? AND version = ?", id, before.Version).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewConflict("case was modified concurrently")
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "case", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

func (s *CaseService) Assign(id uint, req *AssignRequest, actor *Actor) (*models.Case, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if workflow.State(before.CurrentState).IsTerminal() {
		return nil, response.NewConflict("case is " + before.CurrentState)
	}
	var assignee models.User
	if err := s.db.Where("id = ? AND is_active = ?", req.AssigneeID, true).First(&assignee).Error; err != nil {
		return nil, notFoundOr(err, "assignee not found or inactive")
	}

	comment := "assigned to " + assignee.Username
	if req.Comment != "" {
		comment += ": " + req.Comment
	}

	var after models.Case
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Case{}).Where("id = ? AND version = ?", id, before.Version).
			Updates(map[string]interface{}{"assigned_to": assignee.ID, "version": gorm.Expr("version + 1")})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewConflict("case was modified concurrently")
		}
		if err := tx.Create(&models.CaseHistory{
			CaseID:    id,
			FromState: before.CurrentState,
			ToState:   before.CurrentState,
			Action:    models.HistoryAssign,
			ActorID:   actor.userIDPtr(),
			Comment:   comment,
		}).Error; err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{
			EntityType: "case",
			EntityID:   id,
			Action:     "assign",
			Actor:      actor,
			Before:     map[string]interface{}{"assigned_to": before.AssignedTo},
			After:      map[string]interface{}{"assigned_to": assignee.ID},
		})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

func (s *CaseService) Comment(id uint, req *CommentRequest, actor *Actor) (*models.CaseHistory, error) {
	c, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	h := models.CaseHistory{
		CaseID:    id,
		FromState: c.CurrentState,
		ToState:   c.CurrentState,
		Action:    models.HistoryComment,
		ActorID:   actor.userIDPtr(),
		Comment:   strings.TrimSpace(req.Comment),
	}
	if err := s.db.Create(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// canApprove reports whether actor may push approval-gated transitions
// through directly.
func (s *CaseService) canApprove(actor *Actor) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	return s.perms != nil && s.perms.Allowed(actor.Role, models.ModuleCases, models.ActionApprove)
}

func transitionError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrTerminalState):
		return response.NewConflict(err.Error())
	case errors.Is(err, workflow.ErrUnknownState), errors.Is(err, workflow.ErrInvalidTransition):
		return response.NewBadRequest(err.Error())
	}
	return err
}

// guardSatisfied checks the document a transition depends on.
func guardSatisfied(db *gorm.DB, caseID uint, g workflow.Guard) (bool, error) {
	var n int64
	var err error
	switch g {
	case workflow.GuardNone:
		return true, nil
	case workflow.GuardApprovedEstimation:
		err = db.Model(&models.Estimation{}).Where("case_id = ? AND status = ?", caseID, models.StatusApproved).Count(&n).Error
	case workflow.GuardAcceptedQuotation:
		err = db.Model(&models.Quotation{}).Where("case_id = ? AND status = ?", caseID, models.StatusAccepted).Count(&n).Error
	case workflow.GuardConfirmedSalesOrder:
		err = db.Model(&models.SalesOrder{}).Where("case_id = ? AND status IN ?", caseID,
			[]string{models.StatusConfirmed, models.StatusCompleted}).Count(&n).Error
	default:
		return false, fmt.Errorf("unknown guard %q", g)
	}
	return n > 0, err
}

func guardError(t workflow.Transition) error {
	return response.NewUnprocessable(fmt.Sprintf("cannot move to %s: case needs %s", t.To, t.Guard.Describe()))
}

// Transition moves a case to req.ToState, or opens an approval when the
// edge is gated and actor cannot approve it.
func (s *CaseService) Transition(id uint, req *TransitionRequest, actor *Actor) (*TransitionResult, error) {
	c, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(c, req.ExpectedVersion); err != nil {
		return nil, err
	}
	from := workflow.State(c.CurrentState)
	t, err := workflow.Resolve(from, workflow.State(req.ToState), workflow.State(c.PreviousState))
	if err != nil {
		return nil, transitionError(err)
	}
	ok, err := guardSatisfied(s.db, c.ID, t.Guard)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, guardError(t)
	}

	if t.RequiresApproval && !s.canApprove(actor) {
		return s.requestApproval(c, t, req.Comment, actor)
	}

	var after *models.Case
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		after, err = s.applyTransition(tx, c, t, req.Comment, actor)
		if err != nil {
			return err
		}
		return s.approvals.CancelPending(tx, models.ApprovalCaseTransition, c.ID, actor)
	})
	if err != nil {
		return nil, err
	}

	s.announceTransition(after, t, actor)
	return &TransitionResult{Transitioned: true, Case: after}, nil
}

func (s *CaseService) requestApproval(c *models.Case, t workflow.Transition, comment string, actor *Actor) (*TransitionResult, error) {
	var approval *models.ApprovalRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		approval, err = s.approvals.Submit(tx, ApprovalSubmission{
			EntityType: models.ApprovalCaseTransition,
			EntityID:   c.ID,
			CaseID:     uintPtr(c.ID),
			Payload: map[string]interface{}{
				"from_state":           string(t.From),
				"to_state":             string(t.To),
				"requested_at_version": c.Version,
				"comment":              comment,
			},
		}, actor)
		if err != nil {
			return err
		}
		return tx.Create(&models.CaseHistory{
			CaseID:    c.ID,
			FromState: c.CurrentState,
			ToState:   string(t.To),
			Action:    models.HistoryApprovalRequested,
			ActorID:   actor.userIDPtr(),
			Comment:   comment,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.approvals.Announce(approval, actor, fmt.Sprintf("%s: %s -> %s", c.CaseNumber, t.From, t.To))
	return &TransitionResult{Transitioned: false, Approval: approval}, nil
}

// applyTransition writes the move inside tx and returns the reloaded case.
func (s *CaseService) applyTransition(tx *gorm.DB, c *models.Case, t workflow.Transition, comment string, actor *Actor) (*models.Case, error) {
	now := s.now()
	sla := s.sla.within(tx)

	updates := map[string]interface{}{
		"current_state":      string(t.To),
		"state_entered_at":   now,
		"sla_breached":       false,
		"escalation_level":   0,
		"next_escalation_at": nil,
		"version":            gorm.Expr("version + 1"),
	}

	historyAction := models.HistoryTransition
	switch t.Action {
	case workflow.ActionHold:
		historyAction = models.HistoryHold
		var remaining int64
		if c.SLADueAt != nil {
			remaining = int64(c.SLADueAt.Sub(now) / time.Second)
		}
		updates["previous_state"] = string(t.From)
		updates["sla_remaining_seconds"] = remaining
		updates["sla_due_at"] = nil
	case workflow.ActionResume:
		historyAction = models.HistoryResume
		var due *time.Time
		if sla.Hours(t.To) > 0 {
			d := now
			if c.SLARemainingSeconds > 0 {
				d = now.Add(time.Duration(c.SLARemainingSeconds) * time.Second)
			}
			due = &d
		}
		updates["previous_state"] = ""
		updates["sla_remaining_seconds"] = 0
		updates["sla_due_at"] = due
	default:
		updates["previous_state"] = ""
		updates["sla_remaining_seconds"] = 0
		updates["sla_due_at"] = sla.DueAt(t.To, now)
		if t.To.IsTerminal() {
			updates["closed_at"] = now
		}
	}

	res := tx.Model(&models.Case{}).
		Where("id = ? AND current_state = ? AND version = ?", c.ID, c.CurrentState, c.Version).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, response.NewConflict("case was modified concurrently, reload and retry")
	}

	duration := int64(0)
	if !c.StateEnteredAt.IsZero() {
		duration = int64(now.Sub(c.StateEnteredAt) / time.Second)
	}
	if err := tx.Create(&models.CaseHistory{
		CaseID:          c.ID,
		FromState:       string(t.From),
		ToState:         string(t.To),
		Action:          historyAction,
		ActorID:         actor.userIDPtr(),
		Comment:         comment,
		DurationSeconds: duration,
	}).Error; err != nil {
		return nil, err
	}

	var after models.Case
	if err := tx.First(&after, c.ID).Error; err != nil {
		return nil, err
	}
	before := *c
	before.Client, before.Assignee = nil, nil
	if err := s.audit.Record(tx, AuditEntry{
		EntityType: "case",
		EntityID:   c.ID,
		Action:     historyAction,
		Actor:      actor,
		Before:     before,
		After:      after,
	}); err != nil {
		return nil, err
	}
	return &after, nil
}

func (s *CaseService) announceTransition(c *models.Case, t workflow.Transition, actor *Actor) {
	s.hub.Publish(CaseEvent{
		Type:       CaseEventTransition,
		CaseID:     c.ID,
		CaseNumber: c.CaseNumber,
		FromState:  string(t.From),
		ToState:    string(t.To),
		ActorID:    actor.UserID,
	})
	LogInfo("Workflow", "Transition", fmt.Sprintf("%s: %s -> %s", c.CaseNumber, t.From, t.To),
		actor.userIDPtr(), actor.IP, actor.UserAgent, map[string]interface{}{"case_id": c.ID, "action": t.Action})
}

// caseTransitionApproval executes or discards a gated transition.
type caseTransitionApproval struct {
	s *CaseService
}

// transitionPayload is what OnApproved replays. The approval pins the source
// state only; edits, reassignment and SLA escalation bump the case version
// without invalidating a pending sign-off.
type transitionPayload struct {
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Comment   string `json:"comment"`
}

func (h *caseTransitionApproval) OnApproved(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	var p transitionPayload
	if err := json.Unmarshal([]byte(req.Payload), &p); err != nil {
		return fmt.Errorf("decode transition payload: %w", err)
	}
	var c models.Case
	if err := tx.First(&c, req.EntityID).Error; err != nil {
		return notFoundOr(err, "case not found")
	}
	if c.CurrentState != p.FromState {
		return response.NewConflict(fmt.Sprintf("case moved to %s since the approval was requested", c.CurrentState))
	}
	t, err := workflow.Resolve(workflow.State(c.CurrentState), workflow.State(p.ToState), workflow.State(c.PreviousState))
	if err != nil {
		return transitionError(err)
	}
	ok, err := guardSatisfied(tx, c.ID, t.Guard)
	if err != nil {
		return err
	}
	if !ok {
		return guardError(t)
	}

	comment := p.Comment
	if req.Comment != "" {
		comment = strings.TrimSpace(comment + "\napproved: " + req.Comment)
	}
	_, err = h.s.applyTransition(tx, &c, t, comment, actor)
	return err
}

func (h *caseTransitionApproval) OnRejected(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	var c models.Case
	if err := tx.Select("id", "current_state").First(&c, req.EntityID).Error; err != nil {
		return notFoundOr(err, "case not found")
	}
	return tx.Create(&models.CaseHistory{
		CaseID:    c.ID,
		FromState: c.CurrentState,
		ToState:   payloadString(req.Payload, "to_state"),
		Action:    models.HistoryApprovalRejected,
		ActorID:   actor.userIDPtr(),
		Comment:   req.Comment,
	}).Error
}

func (s *CaseService) History(id uint) ([]models.CaseHistory, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}
	var rows []models.CaseHistory
	err := s.db.Preload("Actor").Where("case_id = ?", id).Order("created_at ASC, id ASC").Find(&rows).Error
	return rows, err
}

// TimelineEntry is one line of the merged history and audit view.
type TimelineEntry struct {
	At        time.Time `json:"at"`
	Source    string    `json:"source"`
	Action    string    `json:"action"`
	FromState string    `json:"from_state,omitempty"`
	ToState   string    `json:"to_state,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	Changes   []string  `json:"changes,omitempty"`
}

// Timeline merges the case history with audit rows for the case and its
// approvals, oldest first.
func (s *CaseService) Timeline(id uint) ([]TimelineEntry, error) {
	history, err := s.History(id)
	if err != nil {
		return nil, err
	}
	var approvalIDs []uint
	s.db.Model(&models.ApprovalRequest{}).Where("case_id = ?", id).Pluck("id", &approvalIDs)

	var audits []models.AuditLog
	query := s.db.Where("entity_type = ? AND entity_id = ?", "case", id)
	if len(approvalIDs) > 0 {
		query = query.Or("entity_type = ? AND entity_id IN ?", "approval", approvalIDs)
	}
	if err := query.Find(&audits).Error; err != nil {
		return nil, err
	}

	entries := make([]TimelineEntry, 0, len(history)+len(audits))
	for _, h := range history {
		e := TimelineEntry{At: h.CreatedAt, Source: "history", Action: h.Action, FromState: h.FromState, ToState: h.ToState, Comment: h.Comment}
		if h.Actor != nil {
			e.Actor = h.Actor.Username
		}
		entries = append(entries, e)
	}
	for _, a := range audits {
		e := TimelineEntry{At: a.CreatedAt, Source: "audit", Action: a.EntityType + "." + a.Action, Actor: a.Username}
		if a.Changes != "" {
			if err := json.Unmarshal([]byte(a.Changes), &e.Changes); err != nil {
				logger.Debug().Err(err).Uint("audit_id", a.ID).Msg("timeline: unreadable audit changes")
			}
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })
	return entries, nil
}

// AvailableTransition is a move offered to a particular user.
type AvailableTransition struct {
	workflow.Transition
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason,omitempty"`
	NeedsApproval bool   `json:"needs_approval"`
}

func (s *CaseService) AvailableTransitions(id uint, actor *Actor) ([]AvailableTransition, error) {
	c, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	canEdit := s.perms == nil || s.perms.Allowed(actor.Role, models.ModuleCases, models.ActionEdit)
	out := make([]AvailableTransition, 0)
	for _, t := range workflow.Available(workflow.State(c.CurrentState), workflow.State(c.PreviousState)) {
		at := AvailableTransition{Transition: t, Allowed: canEdit}
		if !canEdit {
			at.Reason = "no permission to edit cases"
		} else if ok, err := guardSatisfied(s.db, c.ID, t.Guard); err != nil {
			return nil, err
		} else if !ok {
			at.Allowed = false
			at.Reason = "needs " + t.Guard.Describe()
		}
		at.NeedsApproval = t.RequiresApproval && !s.canApprove(actor)
		out = append(out, at)
	}
	return out, nil
}

func (s *CaseService) Export(req *CaseListRequest) (*ExportTable, error) {
	query, err := s.filtered(req)
	if err != nil {
		return nil, err
	}
	var rows []models.Case
	if err := query.Preload("Client").Preload("Assignee").Order("created_at DESC, id DESC").Limit(50000).Find(&rows).Error; err != nil {
		return nil, err
	}

	table := &ExportTable{
		Name:    "cases",
		Headers: []string{"Case No", "Title", "Client", "Priority", "State", "Assignee", "SLA Due", "Breached", "Escalation", "Created"},
	}
	for _, c := range rows {
		client, assignee := "", ""
		if c.Client != nil {
			client = c.Client.Name
		}
		if c.Assignee != nil {
			assignee = c.Assignee.Username
		}
		table.Rows = append(table.Rows, []string{
			c.CaseNumber,
			c.Title,
			client,
			c.Priority,
			c.CurrentState,
			assignee,
			formatTime(c.SLADueAt),
			strconv.FormatBool(c.SLABreached),
			strconv.Itoa(c.EscalationLevel),
			c.CreatedAt.Format(time.RFC3339),
		})
	}
	return table, nil
}
