package services

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/services/workflow"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type EstimationService struct {
	db        *gorm.DB
	audit     *AuditService
	approvals *ApprovalService
	seq       *SequenceService
}

func NewEstimationService(db *gorm.DB, audit *AuditService, approvals *ApprovalService, seq *SequenceService) *EstimationService {
	s := &EstimationService{db: db, audit: audit, approvals: approvals, seq: seq}
	if approvals != nil {
		approvals.Register(models.ApprovalEstimation, s)
	}
	return s
}

type EstimationLineRequest struct {
	ItemID        *uint           `json:"item_id"`
	Description   string          `json:"description" binding:"required,max=500"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
}

type EstimationRequest struct {
	CaseID uint                    `json:"case_id" binding:"required"`
	Notes  string                  `json:"notes"`
	Lines  []EstimationLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type EstimationListRequest struct {
	PageRequest
	CaseID uint   `form:"case_id"`
	Status string `form:"status"`
}

// priceEstimation turns request lines into priced rows and totals.
// sell = cost * (1 + margin/100), every amount rounded to 2 places.
func priceEstimation(reqs []EstimationLineRequest) ([]models.EstimationLine, decimal.Decimal, decimal.Decimal, error) {
	lines := make([]models.EstimationLine, 0, len(reqs))
	costTotal, sellTotal := decimal.Zero, decimal.Zero
	for _, r := range reqs {
		if !r.Quantity.IsPositive() {
			return nil, costTotal, sellTotal, response.NewBadRequest("line quantity must be positive: " + r.Description)
		}
		if r.UnitCost.IsNegative() || r.MarginPercent.IsNegative() {
			return nil, costTotal, sellTotal, response.NewBadRequest("unit cost and margin cannot be negative: " + r.Description)
		}
		cost := r.Quantity.Mul(r.UnitCost).Round(2)
		sell := cost.Mul(hundred.Add(r.MarginPercent)).Div(hundred).Round(2)
		lines = append(lines, models.EstimationLine{
			ItemID:        r.ItemID,
			Description:   r.Description,
			Quantity:      r.Quantity,
			UnitCost:      r.UnitCost,
			MarginPercent: r.MarginPercent,
			CostAmount:    cost,
			SellAmount:    sell,
		})
		costTotal = costTotal.Add(cost)
		sellTotal = sellTotal.Add(sell)
	}
	return lines, costTotal, sellTotal, nil
}

// openCase loads a case that can still take documents.
func openCase(db *gorm.DB, id uint) (*models.Case, error) {
	var c models.Case
	if err := db.First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "case not found")
	}
	if workflow.State(c.CurrentState).IsTerminal() {
		return nil, response.NewConflict("case " + c.CaseNumber + " is " + c.CurrentState)
	}
	return &c, nil
}

func (s *EstimationService) List(req *EstimationListRequest) (*PageResult[models.Estimation], error) {
	query := s.db.Model(&models.Estimation{})
	if req.CaseID > 0 {
		query = query.Where("case_id = ?", req.CaseID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	return paginate[models.Estimation](query, &req.PageRequest, "created_at DESC, id DESC")
}

func (s *EstimationService) GetByID(id uint) (*models.Estimation, error) {
	var e models.Estimation
	if err := s.db.Preload("Lines").First(&e, id).Error; err != nil {
		return nil, notFoundOr(err, "estimation not found")
	}
	return &e, nil
}

func (s *EstimationService) Create(req *EstimationRequest, actor *Actor) (*models.Estimation, error) {
	if _, err := openCase(s.db, req.CaseID); err != nil {
		return nil, err
	}
	lines, cost, sell, err := priceEstimation(req.Lines)
	if err != nil {
		return nil, err
	}

	e := models.Estimation{
		CaseID:    req.CaseID,
		Status:    models.StatusDraft,
		CostTotal: cost,
		SellTotal: sell,
		Notes:     req.Notes,
		Lines:     lines,
		CreatedBy: actor.UserID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.Next(tx, models.DocEstimation, time.Now())
		if err != nil {
			return err
		}
		e.EstimationNo = number
		if err := tx.Create(&e).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "estimation", EntityID: e.ID, Action: "create", Actor: actor, After: e})
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Update replaces the lines of a draft or rejected estimation and puts it
// back to draft.
func (s *EstimationService) Update(id uint, req *EstimationRequest, actor *Actor) (*models.Estimation, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if before.Status != models.StatusDraft && before.Status != models.StatusRejected {
		return nil, response.NewConflict("only draft or rejected estimations can be edited")
	}
	lines, cost, sell, err := priceEstimation(req.Lines)
	if err != nil {
		return nil, err
	}

	var after *models.Estimation
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, &models.Estimation{}, id, []string{models.StatusDraft, models.StatusRejected}, models.StatusDraft,
			map[string]interface{}{"cost_total": cost, "sell_total": sell, "notes": req.Notes}); err != nil {
			return err
		}
		if err := tx.Where("estimation_id = ?", id).Delete(&models.EstimationLine{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].EstimationID = id
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		after = &models.Estimation{}
		if err := tx.Preload("Lines").First(after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "estimation", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}

// Submit sends the estimation for approval.
func (s *EstimationService) Submit(id uint, actor *Actor) (*models.ApprovalRequest, error) {
	e, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusDraft && e.Status != models.StatusRejected {
		return nil, response.NewConflict("estimation is already " + e.Status)
	}

	var approval *models.ApprovalRequest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		approval, err = s.approvals.Submit(tx, ApprovalSubmission{
			EntityType: models.ApprovalEstimation,
			EntityID:   id,
			CaseID:     uintPtr(e.CaseID),
			Payload: map[string]interface{}{
				"estimation_no": e.EstimationNo,
				"cost_total":    e.CostTotal.StringFixed(2),
				"sell_total":    e.SellTotal.StringFixed(2),
			},
		}, actor)
		if err != nil {
			return err
		}
		if err := moveStatus(tx, &models.Estimation{}, id, []string{models.StatusDraft, models.StatusRejected}, models.StatusSubmitted,
			map[string]interface{}{"approval_id": approval.ID}); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "estimation", EntityID: id, Action: "submit", Actor: actor,
			Before: map[string]interface{}{"status": e.Status}, After: map[string]interface{}{"status": models.StatusSubmitted}})
	})
	if err != nil {
		return nil, err
	}
	s.approvals.Announce(approval, actor, e.EstimationNo+" sell total "+e.SellTotal.StringFixed(2))
	return approval, nil
}

func (s *EstimationService) OnApproved(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	return s.decided(tx, req, actor, models.StatusApproved)
}

func (s *EstimationService) OnRejected(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	return s.decided(tx, req, actor, models.StatusRejected)
}

func (s *EstimationService) decided(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor, status string) error {
	if err := moveStatus(tx, &models.Estimation{}, req.EntityID, []string{models.StatusSubmitted}, status, nil); err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{EntityType: "estimation", EntityID: req.EntityID, Action: status, Actor: actor,
		Before: map[string]interface{}{"status": models.StatusSubmitted}, After: map[string]interface{}{"status": status}})
}

func (s *EstimationService) Delete(id uint, actor *Actor) error {
	e, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if e.Status != models.StatusDraft {
		return response.NewConflict("only draft estimations can be deleted")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Estimation{}, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "estimation", EntityID: id, Action: "delete", Actor: actor, Before: e})
	})
}
