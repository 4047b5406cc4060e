package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/logger"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

// ApprovalHandler applies the outcome of a decision to the gated entity.
// Both hooks run inside the decision's transaction.
type ApprovalHandler interface {
	OnApproved(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error
	OnRejected(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error
}

// approvalModules maps an entity type to the permission module whose
// approve action is needed to decide it.
var approvalModules = map[string]string{
	models.ApprovalCaseTransition:      models.ModuleCases,
	models.ApprovalEstimation:          models.ModuleSales,
	models.ApprovalQuotation:           models.ModuleSales,
	models.ApprovalPurchaseRequisition: models.ModulePurchase,
	models.ApprovalPurchaseOrder:       models.ModulePurchase,
	models.ApprovalLeaveApplication:    models.ModuleLeave,
}

func ApprovalModule(entityType string) string {
	return approvalModules[entityType]
}

type ApprovalService struct {
	db    *gorm.DB
	perms *PermissionCache
	audit *AuditService
	queue TaskQueue
	hub   *SSEHub

	mu       sync.RWMutex
	handlers map[string]ApprovalHandler
}

func NewApprovalService(db *gorm.DB, perms *PermissionCache, audit *AuditService, queue TaskQueue) *ApprovalService {
	return &ApprovalService{
		db:       db,
		perms:    perms,
		audit:    audit,
		queue:    queue,
		hub:      GetSSEHub(),
		handlers: make(map[string]ApprovalHandler),
	}
}

func (s *ApprovalService) Register(entityType string, h ApprovalHandler) {
	s.mu.Lock()
	s.handlers[entityType] = h
	s.mu.Unlock()
}

func (s *ApprovalService) handler(entityType string) ApprovalHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[entityType]
}

// ApprovalSubmission is what a domain service asks to have approved.
type ApprovalSubmission struct {
	EntityType string
	EntityID   uint
	CaseID     *uint
	Payload    interface{}
}

// Submit opens a pending request inside the caller's transaction. Call
// Announce after the transaction commits.
func (s *ApprovalService) Submit(tx *gorm.DB, sub ApprovalSubmission, actor *Actor) (*models.ApprovalRequest, error) {
	module := ApprovalModule(sub.EntityType)
	if module == "" {
		return nil, fmt.Errorf("no approval module for %q", sub.EntityType)
	}

	var pending int64
	if err := tx.Model(&models.ApprovalRequest{}).
		Where("entity_type = ? AND entity_id = ? AND status = ?", sub.EntityType, sub.EntityID, models.ApprovalPending).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, response.NewConflict("an approval is already pending for this " + strings.ReplaceAll(sub.EntityType, "_", " "))
	}

	req := models.ApprovalRequest{
		EntityType:   sub.EntityType,
		EntityID:     sub.EntityID,
		CaseID:       sub.CaseID,
		Payload:      toJSON(sub.Payload),
		Status:       models.ApprovalPending,
		RequestedBy:  actor.UserID,
		RequiredRole: s.requiredRoles(module),
	}
	if err := tx.Create(&req).Error; err != nil {
		return nil, err
	}
	if err := s.audit.Record(tx, AuditEntry{
		EntityType: "approval",
		EntityID:   req.ID,
		Action:     "submit",
		Actor:      actor,
		After:      req,
	}); err != nil {
		return nil, err
	}
	return &req, nil
}

// requiredRoles lists the roles able to decide, stored for display only.
func (s *ApprovalService) requiredRoles(module string) string {
	if s.perms == nil {
		return models.RoleAdmin
	}
	var roles []string
	for _, role := range s.perms.RolesWith(module, models.ActionApprove) {
		if s.perms.Allowed(role, models.ModuleApprovals, models.ActionApprove) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return models.RoleAdmin
	}
	joined := strings.Join(roles, ",")
	if len(joined) > 50 {
		joined = joined[:50]
	}
	return joined
}

// Announce notifies the possible deciders of a freshly committed request.
func (s *ApprovalService) Announce(req *models.ApprovalRequest, actor *Actor, summary string) {
	caseNumber := ""
	if req.CaseID != nil {
		var c models.Case
		if s.db.Select("id", "case_number").First(&c, *req.CaseID).Error == nil {
			caseNumber = c.CaseNumber
		}
		s.hub.Publish(CaseEvent{Type: CaseEventApproval, CaseID: *req.CaseID, CaseNumber: caseNumber, ActorID: actor.UserID})
	}

	if s.queue == nil {
		return
	}
	recipients := s.deciderIDs(ApprovalModule(req.EntityType), req.RequestedBy)
	task := &NotificationTask{
		Type:         TaskTypeNotifyApproval,
		ApprovalID:   req.ID,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		CaseNumber:   caseNumber,
		RequestedBy:  actor.Username,
		Summary:      summary,
		RecipientIDs: recipients,
	}
	if req.CaseID != nil {
		task.CaseID = *req.CaseID
	}
	if err := s.queue.Enqueue(task); err != nil {
		logger.Warn().Err(err).Uint("approval_id", req.ID).Msg("failed to enqueue approval notification")
	}
}

func (s *ApprovalService) deciderIDs(module string, exclude uint) []uint {
	roles := []string{models.RoleAdmin}
	if s.perms != nil {
		for _, role := range s.perms.RolesWith(module, models.ActionApprove) {
			if s.perms.Allowed(role, models.ModuleApprovals, models.ActionApprove) {
				roles = append(roles, role)
			}
		}
	}
	var ids []uint
	s.db.Model(&models.User{}).Where("role IN ? AND is_active = ? AND id <> ?", roles, true, exclude).Pluck("id", &ids)
	return ids
}

// CanDecide reports whether actor may approve or reject req.
func (s *ApprovalService) CanDecide(req *models.ApprovalRequest, actor *Actor) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if req.RequestedBy == actor.UserID {
		return response.NewForbidden("cannot decide your own request")
	}
	if s.perms == nil ||
		!s.perms.Allowed(actor.Role, models.ModuleApprovals, models.ActionApprove) ||
		!s.perms.Allowed(actor.Role, ApprovalModule(req.EntityType), models.ActionApprove) {
		return response.NewForbidden("not allowed to decide " + req.EntityType + " approvals")
	}
	return nil
}

type DecisionRequest struct {
	Comment string `json:"comment" binding:"max=2000"`
}

func (s *ApprovalService) Approve(id uint, actor *Actor, comment string) (*models.ApprovalRequest, error) {
	return s.decide(id, actor, comment, models.ApprovalApproved)
}

func (s *ApprovalService) Reject(id uint, actor *Actor, comment string) (*models.ApprovalRequest, error) {
	return s.decide(id, actor, comment, models.ApprovalRejected)
}

func (s *ApprovalService) decide(id uint, actor *Actor, comment, status string) (*models.ApprovalRequest, error) {
	req, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.ApprovalPending {
		return nil, response.NewConflict("approval request is already " + req.Status)
	}
	if err := s.CanDecide(req, actor); err != nil {
		return nil, err
	}
	h := s.handler(req.EntityType)
	if h == nil {
		return nil, response.NewServerError("no handler registered for " + req.EntityType)
	}

	before := *req
	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ApprovalRequest{}).
			Where("id = ? AND status = ?", id, models.ApprovalPending).
			Updates(map[string]interface{}{
				"status":     status,
				"decided_by": actor.UserID,
				"decided_at": now,
				"comment":    comment,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewConflict("approval request was decided concurrently")
		}
		req.Status = status
		req.DecidedBy = uintPtr(actor.UserID)
		req.DecidedAt = &now
		req.Comment = comment

		if status == models.ApprovalApproved {
			if err := h.OnApproved(tx, req, actor); err != nil {
				return err
			}
		} else if err := h.OnRejected(tx, req, actor); err != nil {
			return err
		}

		action := "approve"
		if status == models.ApprovalRejected {
			action = "reject"
		}
		return s.audit.Record(tx, AuditEntry{
			EntityType: "approval",
			EntityID:   req.ID,
			Action:     action,
			Actor:      actor,
			Before:     before,
			After:      req,
		})
	})
	if err != nil {
		return nil, err
	}

	if req.CaseID != nil {
		event := CaseEvent{Type: CaseEventApproval, CaseID: *req.CaseID, ActorID: actor.UserID}
		if req.EntityType == models.ApprovalCaseTransition && status == models.ApprovalApproved {
			var c models.Case
			if s.db.First(&c, *req.CaseID).Error == nil {
				event.Type = CaseEventTransition
				event.CaseNumber = c.CaseNumber
				event.FromState = payloadString(req.Payload, "from_state")
				event.ToState = c.CurrentState
			}
		}
		s.hub.Publish(event)
	}
	logAction := "Approve"
	if status == models.ApprovalRejected {
		logAction = "Reject"
	}
	LogInfo("Approval", logAction,
		fmt.Sprintf("%s #%d %s", req.EntityType, req.EntityID, status), actor.userIDPtr(), actor.IP, actor.UserAgent,
		map[string]interface{}{"approval_id": req.ID})
	return req, nil
}

// CancelPending withdraws open requests for an entity, e.g. when a case is
// moved directly or a leave is cancelled.
func (s *ApprovalService) CancelPending(tx *gorm.DB, entityType string, entityID uint, actor *Actor) error {
	if tx == nil {
		tx = s.db
	}
	return tx.Model(&models.ApprovalRequest{}).
		Where("entity_type = ? AND entity_id = ? AND status = ?", entityType, entityID, models.ApprovalPending).
		Updates(map[string]interface{}{
			"status":     models.ApprovalCancelled,
			"decided_by": actor.userIDPtr(),
			"decided_at": time.Now(),
		}).Error
}

func (s *ApprovalService) GetByID(id uint) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	if err := s.db.Preload("Requester").First(&req, id).Error; err != nil {
		return nil, notFoundOr(err, "approval request not found")
	}
	return &req, nil
}

type ApprovalListRequest struct {
	PageRequest
	Status      string `form:"status" binding:"omitempty,oneof=pending approved rejected cancelled"`
	EntityType  string `form:"entity_type"`
	CaseID      uint   `form:"case_id"`
	RequestedBy uint   `form:"requested_by"`
}

func (s *ApprovalService) List(req *ApprovalListRequest) (*PageResult[models.ApprovalRequest], error) {
	query := s.db.Model(&models.ApprovalRequest{}).Preload("Requester")
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.EntityType != "" {
		query = query.Where("entity_type = ?", req.EntityType)
	}
	if req.CaseID > 0 {
		query = query.Where("case_id = ?", req.CaseID)
	}
	if req.RequestedBy > 0 {
		query = query.Where("requested_by = ?", req.RequestedBy)
	}
	return paginate[models.ApprovalRequest](query, &req.PageRequest, "created_at DESC, id DESC")
}

// DecidableTypes lists the entity types actor may decide.
func (s *ApprovalService) DecidableTypes(actor *Actor) []string {
	var types []string
	for entityType, module := range approvalModules {
		if actor.Role == models.RoleAdmin ||
			(s.perms != nil && s.perms.Allowed(actor.Role, models.ModuleApprovals, models.ActionApprove) &&
				s.perms.Allowed(actor.Role, module, models.ActionApprove)) {
			types = append(types, entityType)
		}
	}
	return types
}

func (s *ApprovalService) mineQuery(actor *Actor) *gorm.DB {
	types := s.DecidableTypes(actor)
	if len(types) == 0 {
		return nil
	}
	query := s.db.Model(&models.ApprovalRequest{}).
		Where("status = ? AND entity_type IN ?", models.ApprovalPending, types)
	if actor.Role != models.RoleAdmin {
		query = query.Where("requested_by <> ?", actor.UserID)
	}
	return query
}

// Mine returns pending requests actor can decide, oldest first.
func (s *ApprovalService) Mine(actor *Actor, page *PageRequest) (*PageResult[models.ApprovalRequest], error) {
	query := s.mineQuery(actor)
	if query == nil {
		page.normalize()
		return &PageResult[models.ApprovalRequest]{Page: page.Page, PageSize: page.PageSize, Items: []models.ApprovalRequest{}}, nil
	}
	return paginate[models.ApprovalRequest](query.Preload("Requester"), page, "created_at ASC, id ASC")
}

// CountMine is the dashboard badge for Mine.
func (s *ApprovalService) CountMine(actor *Actor) int64 {
	query := s.mineQuery(actor)
	if query == nil {
		return 0
	}
	var n int64
	query.Count(&n)
	return n
}

func payloadString(payload, key string) string {
	var m map[string]interface{}
	if json.Unmarshal([]byte(payload), &m) != nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}
