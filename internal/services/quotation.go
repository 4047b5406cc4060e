package services

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type QuotationService struct {
	db        *gorm.DB
	audit     *AuditService
	approvals *ApprovalService
	seq       *SequenceService
	configSvc *SystemConfigService
	now       func() time.Time
}

func NewQuotationService(db *gorm.DB, audit *AuditService, approvals *ApprovalService, seq *SequenceService, configSvc *SystemConfigService) *QuotationService {
	s := &QuotationService{db: db, audit: audit, approvals: approvals, seq: seq, configSvc: configSvc, now: time.Now}
	if approvals != nil {
		approvals.Register(models.ApprovalQuotation, s)
	}
	return s
}

type QuotationLineRequest struct {
	ItemID      *uint           `json:"item_id"`
	Description string          `json:"description" binding:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type QuotationRequest struct {
	CaseID     uint                   `json:"case_id" binding:"required"`
	TaxPercent decimal.Decimal        `json:"tax_percent"`
	Discount   decimal.Decimal        `json:"discount"`
	ValidUntil string                 `json:"valid_until"`
	Terms      string                 `json:"terms"`
	Lines      []QuotationLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// QuotationFromEstimationRequest carries the commercial terms; lines come
// from the estimation.
type QuotationFromEstimationRequest struct {
	TaxPercent decimal.Decimal `json:"tax_percent"`
	Discount   decimal.Decimal `json:"discount"`
	ValidUntil string          `json:"valid_until"`
	Terms      string          `json:"terms"`
}

type QuotationListRequest struct {
	PageRequest
	CaseID uint   `form:"case_id"`
	Status string `form:"status"`
}

type quotationTotals struct {
	subtotal, tax, grand decimal.Decimal
}

func totalQuotation(lines []models.QuotationLine, taxPercent, discount decimal.Decimal) (quotationTotals, error) {
	var t quotationTotals
	if taxPercent.IsNegative() || discount.IsNegative() {
		return t, response.NewBadRequest("tax and discount cannot be negative")
	}
	for _, l := range lines {
		t.subtotal = t.subtotal.Add(l.Amount)
	}
	if discount.GreaterThan(t.subtotal) {
		return t, response.NewBadRequest("discount exceeds subtotal")
	}
	taxable := t.subtotal.Sub(discount)
	t.tax = taxable.Mul(taxPercent).Div(hundred).Round(2)
	t.grand = taxable.Add(t.tax)
	return t, nil
}

func quotationLines(reqs []QuotationLineRequest) ([]models.QuotationLine, error) {
	lines := make([]models.QuotationLine, 0, len(reqs))
	for _, r := range reqs {
		if !r.Quantity.IsPositive() || r.UnitPrice.IsNegative() {
			return nil, response.NewBadRequest("invalid quantity or price: " + r.Description)
		}
		lines = append(lines, models.QuotationLine{
			ItemID:      r.ItemID,
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
			Amount:      r.Quantity.Mul(r.UnitPrice).Round(2),
		})
	}
	return lines, nil
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *QuotationService) List(req *QuotationListRequest) (*PageResult[models.Quotation], error) {
	query := s.db.Model(&models.Quotation{})
	if req.CaseID > 0 {
		query = query.Where("case_id = ?", req.CaseID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	return paginate[models.Quotation](query, &req.PageRequest, "created_at DESC, id DESC")
}

func (s *QuotationService) GetByID(id uint) (*models.Quotation, error) {
	var q models.Quotation
	if err := s.db.Preload("Lines").First(&q, id).Error; err != nil {
		return nil, notFoundOr(err, "quotation not found")
	}
	return &q, nil
}

func (s *QuotationService) create(q *models.Quotation, actor *Actor) (*models.Quotation, error) {
	totals, err := totalQuotation(q.Lines, q.TaxPercent, q.Discount)
	if err != nil {
		return nil, err
	}
	q.Subtotal, q.TaxAmount, q.GrandTotal = totals.subtotal, totals.tax, totals.grand
	q.Status = models.StatusDraft
	q.CreatedBy = actor.UserID

	err = s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.Next(tx, models.DocQuotation, s.now())
		if err != nil {
			return err
		}
		q.QuotationNo = number
		if err := tx.Create(q).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "quotation", EntityID: q.ID, Action: "create", Actor: actor, After: q})
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuotationService) Create(req *QuotationRequest, actor *Actor) (*models.Quotation, error) {
	if _, err := openCase(s.db, req.CaseID); err != nil {
		return nil, err
	}
	lines, err := quotationLines(req.Lines)
	if err != nil {
		return nil, err
	}
	validUntil, err := optionalDate(req.ValidUntil)
	if err != nil {
		return nil, err
	}
	return s.create(&models.Quotation{
		CaseID:     req.CaseID,
		TaxPercent: req.TaxPercent,
		Discount:   req.Discount,
		ValidUntil: validUntil,
		Terms:      req.Terms,
		Lines:      lines,
	}, actor)
}

// CreateFromEstimation copies an approved estimation's lines at sell price.
func (s *QuotationService) CreateFromEstimation(estimationID uint, req *QuotationFromEstimationRequest, actor *Actor) (*models.Quotation, error) {
	var est models.Estimation
	if err := s.db.Preload("Lines").First(&est, estimationID).Error; err != nil {
		return nil, notFoundOr(err, "estimation not found")
	}
	if est.Status != models.StatusApproved {
		return nil, response.NewConflict("estimation " + est.EstimationNo + " is not approved")
	}
	if _, err := openCase(s.db, est.CaseID); err != nil {
		return nil, err
	}
	validUntil, err := optionalDate(req.ValidUntil)
	if err != nil {
		return nil, err
	}

	lines := make([]models.QuotationLine, 0, len(est.Lines))
	for _, l := range est.Lines {
		lines = append(lines, models.QuotationLine{
			ItemID:      l.ItemID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.SellAmount.Div(l.Quantity).Round(2),
			Amount:      l.SellAmount,
		})
	}
	return s.create(&models.Quotation{
		CaseID:       est.CaseID,
		EstimationID: uintPtr(est.ID),
		TaxPercent:   req.TaxPercent,
		Discount:     req.Discount,
		ValidUntil:   validUntil,
		Terms:        req.Terms,
		Lines:        lines,
	}, actor)
}

func (s *QuotationService) Update(id uint, req *QuotationRequest, actor *Actor) (*models.Quotation, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if before.Status != models.StatusDraft {
		return nil, response.NewConflict("only draft quotations can be edited")
	}
	lines, err := quotationLines(req.Lines)
	if err != nil {
		return nil, err
	}
	validUntil, err := optionalDate(req.ValidUntil)
	if err != nil {
		return nil, err
	}
	totals, err := totalQuotation(lines, req.TaxPercent, req.Discount)
	if err != nil {
		return nil, err
	}

	var after models.Quotation
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, &models.Quotation{}, id, []string{models.StatusDraft}, models.StatusDraft, map[string]interface{}{
			"tax_percent": req.TaxPercent,
			"discount":    req.Discount,
			"valid_until": validUntil,
			"terms":       req.Terms,
			"subtotal":    totals.subtotal,
			"tax_amount":  totals.tax,
			"grand_total": totals.grand,
		}); err != nil {
			return err
		}
		if err := tx.Where("quotation_id = ?", id).Delete(&models.QuotationLine{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].QuotationID = id
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		if err := tx.Preload("Lines").First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "quotation", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

// DiscountPercent is the discount as a share of the subtotal.
func DiscountPercent(q *models.Quotation) decimal.Decimal {
	if !q.Subtotal.IsPositive() {
		return decimal.Zero
	}
	return q.Discount.Mul(hundred).Div(q.Subtotal).Round(2)
}

// SendResult reports whether the quotation went out or is waiting on a
// discount approval.
type SendResult struct {
	Sent      bool                    `json:"sent"`
	Quotation *models.Quotation       `json:"quotation"`
	Approval  *models.ApprovalRequest `json:"approval,omitempty"`
}

// Send issues a draft quotation. A discount above the configured share of
// the subtotal first needs approval.
func (s *QuotationService) Send(id uint, actor *Actor) (*SendResult, error) {
	q, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if q.Status != models.StatusDraft {
		return nil, response.NewConflict("quotation is already " + q.Status)
	}

	limit := decimal.NewFromFloat(s.configSvc.GetFloat("quotation_discount_approval_percent", 10))
	pct := DiscountPercent(q)
	if pct.GreaterThan(limit) {
		var approval *models.ApprovalRequest
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			approval, err = s.approvals.Submit(tx, ApprovalSubmission{
				EntityType: models.ApprovalQuotation,
				EntityID:   id,
				CaseID:     uintPtr(q.CaseID),
				Payload: map[string]interface{}{
					"quotation_no":     q.QuotationNo,
					"discount_percent": pct.StringFixed(2),
					"grand_total":      q.GrandTotal.StringFixed(2),
				},
			}, actor)
			if err != nil {
				return err
			}
			return moveStatus(tx, &models.Quotation{}, id, []string{models.StatusDraft}, models.StatusSubmitted, nil)
		})
		if err != nil {
			return nil, err
		}
		s.approvals.Announce(approval, actor, q.QuotationNo+" discount "+pct.StringFixed(2)+"%")
		q.Status = models.StatusSubmitted
		return &SendResult{Quotation: q, Approval: approval}, nil
	}

	now := s.now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, &models.Quotation{}, id, []string{models.StatusDraft}, models.StatusSent, map[string]interface{}{"sent_at": now}); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "quotation", EntityID: id, Action: "send", Actor: actor,
			Before: map[string]interface{}{"status": q.Status}, After: map[string]interface{}{"status": models.StatusSent}})
	})
	if err != nil {
		return nil, err
	}
	q.Status = models.StatusSent
	q.SentAt = &now
	return &SendResult{Sent: true, Quotation: q}, nil
}

func (s *QuotationService) OnApproved(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	if err := moveStatus(tx, &models.Quotation{}, req.EntityID, []string{models.StatusSubmitted}, models.StatusSent,
		map[string]interface{}{"sent_at": s.now()}); err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{EntityType: "quotation", EntityID: req.EntityID, Action: "send", Actor: actor,
		Before: map[string]interface{}{"status": models.StatusSubmitted}, After: map[string]interface{}{"status": models.StatusSent}})
}

func (s *QuotationService) OnRejected(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	if err := moveStatus(tx, &models.Quotation{}, req.EntityID, []string{models.StatusSubmitted}, models.StatusDraft, nil); err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{EntityType: "quotation", EntityID: req.EntityID, Action: "discount_rejected", Actor: actor,
		Before: map[string]interface{}{"status": models.StatusSubmitted}, After: map[string]interface{}{"status": models.StatusDraft}})
}

// Accept records the client's acceptance. A quotation past its validity
// date is marked expired instead and the call fails.
func (s *QuotationService) Accept(id uint, actor *Actor) (*models.Quotation, error) {
	q, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if q.Status != models.StatusSent {
		return nil, response.NewConflict("only sent quotations can be accepted")
	}
	now := s.now()
	if q.ValidUntil != nil && dateOf(now, time.UTC).After(*q.ValidUntil) {
		if err := s.decide(q, models.StatusExpired, now, actor); err != nil {
			return nil, err
		}
		return nil, response.NewConflict("quotation " + q.QuotationNo + " expired on " + q.ValidUntil.Format(dateLayout))
	}
	if err := s.decide(q, models.StatusAccepted, now, actor); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *QuotationService) Reject(id uint, actor *Actor) (*models.Quotation, error) {
	q, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if q.Status != models.StatusSent {
		return nil, response.NewConflict("only sent quotations can be rejected")
	}
	if err := s.decide(q, models.StatusRejected, s.now(), actor); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *QuotationService) decide(q *models.Quotation, status string, now time.Time, actor *Actor) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, &models.Quotation{}, q.ID, []string{models.StatusSent}, status, map[string]interface{}{"decided_at": now}); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "quotation", EntityID: q.ID, Action: status, Actor: actor,
			Before: map[string]interface{}{"status": q.Status}, After: map[string]interface{}{"status": status}})
	})
}
