package services

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type RequisitionService struct {
	db        *gorm.DB
	audit     *AuditService
	approvals *ApprovalService
	seq       *SequenceService
}

func NewRequisitionService(db *gorm.DB, audit *AuditService, approvals *ApprovalService, seq *SequenceService) *RequisitionService {
	s := &RequisitionService{db: db, audit: audit, approvals: approvals, seq: seq}
	if approvals != nil {
		approvals.Register(models.ApprovalPurchaseRequisition, s)
	}
	return s
}

type RequisitionLineRequest struct {
	ItemID     uint            `json:"item_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	RequiredBy string          `json:"required_by"`
	Remarks    string          `json:"remarks" binding:"max=500"`
}

type RequisitionRequest struct {
	CaseID  *uint                    `json:"case_id"`
	Remarks string                   `json:"remarks"`
	Lines   []RequisitionLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type RequisitionListRequest struct {
	PageRequest
	CaseID uint   `form:"case_id"`
	Status string `form:"status"`
}

func (s *RequisitionService) buildLines(reqs []RequisitionLineRequest) ([]models.PurchaseRequisitionLine, error) {
	lines := make([]models.PurchaseRequisitionLine, 0, len(reqs))
	for i, r := range reqs {
		if !r.Quantity.IsPositive() {
			return nil, response.NewBadRequest("line " + strconv.Itoa(i+1) + ": quantity must be positive")
		}
		var n int64
		s.db.Model(&models.Item{}).Where("id = ? AND is_active = ?", r.ItemID, true).Count(&n)
		if n == 0 {
			return nil, response.NewBadRequest("line " + strconv.Itoa(i+1) + ": item not found or inactive")
		}
		requiredBy, err := optionalDate(r.RequiredBy)
		if err != nil {
			return nil, err
		}
		lines = append(lines, models.PurchaseRequisitionLine{ItemID: r.ItemID, Quantity: r.Quantity, RequiredBy: requiredBy, Remarks: r.Remarks})
	}
	return lines, nil
}

func (s *RequisitionService) List(req *RequisitionListRequest) (*PageResult[models.PurchaseRequisition], error) {
	query := s.db.Model(&models.PurchaseRequisition{})
	if req.CaseID > 0 {
		query = query.Where("case_id = ?", req.CaseID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	return paginate[models.PurchaseRequisition](query, &req.PageRequest, "created_at DESC, id DESC")
}

func (s *RequisitionService) GetByID(id uint) (*models.PurchaseRequisition, error) {
	var pr models.PurchaseRequisition
	if err := s.db.Preload("Lines").First(&pr, id).Error; err != nil {
		return nil, notFoundOr(err, "requisition not found")
	}
	return &pr, nil
}

func (s *RequisitionService) Create(req *RequisitionRequest, actor *Actor) (*models.PurchaseRequisition, error) {
	if req.CaseID != nil {
		if _, err := openCase(s.db, *req.CaseID); err != nil {
			return nil, err
		}
	}
	lines, err := s.buildLines(req.Lines)
	if err != nil {
		return nil, err
	}
	pr := models.PurchaseRequisition{
		CaseID:      req.CaseID,
		Status:      models.StatusDraft,
		Remarks:     req.Remarks,
		Lines:       lines,
		RequestedBy: actor.UserID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.Next(tx, models.DocRequisition, time.Now())
		if err != nil {
			return err
		}
		pr.RequisitionNo = number
		if err := tx.Create(&pr).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "purchase_requisition", EntityID: pr.ID, Action: "create", Actor: actor, After: pr})
	})
	if err != nil {
		return nil, err
	}
	return &pr, nil
}

func (s *RequisitionService) Update(id uint, req *RequisitionRequest, actor *Actor) (*models.PurchaseRequisition, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if before.Status != models.StatusDraft && before.Status != models.StatusRejected {
		return nil, response.NewConflict("only draft or rejected requisitions can be edited")
	}
	lines, err := s.buildLines(req.Lines)
	if err != nil {
		return nil, err
	}
	var after models.PurchaseRequisition
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, &models.PurchaseRequisition{}, id, []string{models.StatusDraft, models.StatusRejected}, models.StatusDraft,
			map[string]interface{}{"remarks": req.Remarks, "case_id": req.CaseID}); err != nil {
			return err
		}
		if err := tx.Where("requisition_id = ?", id).Delete(&models.PurchaseRequisitionLine{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].RequisitionID = id
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		if err := tx.Preload("Lines").First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "purchase_requisition", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

func (s *RequisitionService) Submit(id uint, actor *Actor) (*models.ApprovalRequest, error) {
	pr, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if pr.Status != models.StatusDraft && pr.Status != models.StatusRejected {
		return nil, response.NewConflict("requisition is already " + pr.Status)
	}
	var approval *models.ApprovalRequest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		approval, err = s.approvals.Submit(tx, ApprovalSubmission{
			EntityType: models.ApprovalPurchaseRequisition,
			EntityID:   id,
			CaseID:     pr.CaseID,
			Payload:    map[string]interface{}{"requisition_no": pr.RequisitionNo, "lines": len(pr.Lines)},
		}, actor)
		if err != nil {
			return err
		}
		return moveStatus(tx, &models.PurchaseRequisition{}, id, []string{models.StatusDraft, models.StatusRejected}, models.StatusSubmitted,
			map[string]interface{}{"approval_id": approval.ID})
	})
	if err != nil {
		return nil, err
	}
	s.approvals.Announce(approval, actor, pr.RequisitionNo)
	return approval, nil
}

func (s *RequisitionService) OnApproved(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	if err := moveStatus(tx, &models.PurchaseRequisition{}, req.EntityID, []string{models.StatusSubmitted}, models.StatusApproved, nil); err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{EntityType: "purchase_requisition", EntityID: req.EntityID, Action: "approve", Actor: actor,
		After: map[string]interface{}{"status": models.StatusApproved}})
}

func (s *RequisitionService) OnRejected(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	if err := moveStatus(tx, &models.PurchaseRequisition{}, req.EntityID, []string{models.StatusSubmitted}, models.StatusRejected, nil); err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{EntityType: "purchase_requisition", EntityID: req.EntityID, Action: "reject", Actor: actor,
		After: map[string]interface{}{"status": models.StatusRejected}})
}
