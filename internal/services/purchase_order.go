package services

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type PurchaseOrderService struct {
	db        *gorm.DB
	audit     *AuditService
	approvals *ApprovalService
	seq       *SequenceService
}

func NewPurchaseOrderService(db *gorm.DB, audit *AuditService, approvals *ApprovalService, seq *SequenceService) *PurchaseOrderService {
	s := &PurchaseOrderService{db: db, audit: audit, approvals: approvals, seq: seq}
	if approvals != nil {
		approvals.Register(models.ApprovalPurchaseOrder, s)
	}
	return s
}

type POLineRequest struct {
	ItemID     uint            `json:"item_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
}

type PurchaseOrderRequest struct {
	VendorID      uint            `json:"vendor_id" binding:"required"`
	RequisitionID *uint           `json:"requisition_id"`
	CaseID        *uint           `json:"case_id"`
	WarehouseID   uint            `json:"warehouse_id" binding:"required"`
	ExpectedDate  string          `json:"expected_date"`
	Lines         []POLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type PurchaseOrderListRequest struct {
	PageRequest
	VendorID uint   `form:"vendor_id"`
	CaseID   uint   `form:"case_id"`
	Status   string `form:"status"`
}

type poTotals struct {
	subtotal, tax, total decimal.Decimal
}

func pricePurchaseLines(reqs []POLineRequest) ([]models.PurchaseOrderLine, poTotals, error) {
	var t poTotals
	lines := make([]models.PurchaseOrderLine, 0, len(reqs))
	for i, r := range reqs {
		if !r.Quantity.IsPositive() || r.UnitPrice.IsNegative() || r.TaxPercent.IsNegative() {
			return nil, t, response.NewBadRequest("line " + strconv.Itoa(i+1) + ": invalid quantity, price or tax")
		}
		amount := r.Quantity.Mul(r.UnitPrice).Round(2)
		t.subtotal = t.subtotal.Add(amount)
		t.tax = t.tax.Add(amount.Mul(r.TaxPercent).Div(hundred).Round(2))
		lines = append(lines, models.PurchaseOrderLine{
			ItemID:     r.ItemID,
			Quantity:   r.Quantity,
			UnitPrice:  r.UnitPrice,
			TaxPercent: r.TaxPercent,
			Amount:     amount,
		})
	}
	t.total = t.subtotal.Add(t.tax)
	return lines, t, nil
}

func (s *PurchaseOrderService) checkRefs(req *PurchaseOrderRequest) error {
	var n int64
	s.db.Model(&models.Vendor{}).Where("id = ? AND status = ?", req.VendorID, "active").Count(&n)
	if n == 0 {
		return response.NewBadRequest("vendor not found or inactive")
	}
	s.db.Model(&models.Warehouse{}).Where("id = ? AND is_active = ?", req.WarehouseID, true).Count(&n)
	if n == 0 {
		return response.NewBadRequest("warehouse not found or inactive")
	}
	for i, l := range req.Lines {
		s.db.Model(&models.Item{}).Where("id = ? AND is_active = ?", l.ItemID, true).Count(&n)
		if n == 0 {
			return response.NewBadRequest("line " + strconv.Itoa(i+1) + ": item not found or inactive")
		}
	}
	return nil
}

func (s *PurchaseOrderService) List(req *PurchaseOrderListRequest) (*PageResult[models.PurchaseOrder], error) {
	query := s.db.Model(&models.PurchaseOrder{}).Preload("Vendor")
	if req.VendorID > 0 {
		query = query.Where("vendor_id = ?", req.VendorID)
	}
	if req.CaseID > 0 {
		query = query.Where("case_id = ?", req.CaseID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	return paginate[models.PurchaseOrder](query, &req.PageRequest, "created_at DESC, id DESC")
}

func (s *PurchaseOrderService) GetByID(id uint) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := s.db.Preload("Vendor").Preload("Lines").First(&po, id).Error; err != nil {
		return nil, notFoundOr(err, "purchase order not found")
	}
	return &po, nil
}

// Create raises a draft PO. When it converts an approved requisition the
// requisition is closed in the same transaction.
func (s *PurchaseOrderService) Create(req *PurchaseOrderRequest, actor *Actor) (*models.PurchaseOrder, error) {
	if err := s.checkRefs(req); err != nil {
		return nil, err
	}
	lines, totals, err := pricePurchaseLines(req.Lines)
	if err != nil {
		return nil, err
	}
	expected, err := optionalDate(req.ExpectedDate)
	if err != nil {
		return nil, err
	}

	po := models.PurchaseOrder{
		VendorID:      req.VendorID,
		RequisitionID: req.RequisitionID,
		CaseID:        req.CaseID,
		WarehouseID:   req.WarehouseID,
		Status:        models.StatusDraft,
		Subtotal:      totals.subtotal,
		TaxAmount:     totals.tax,
		Total:         totals.total,
		ExpectedDate:  expected,
		Lines:         lines,
		CreatedBy:     actor.UserID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if req.RequisitionID != nil {
			var pr models.PurchaseRequisition
			if err := tx.First(&pr, *req.RequisitionID).Error; err != nil {
				return notFoundOr(err, "requisition not found")
			}
			if err := moveStatus(tx, &models.PurchaseRequisition{}, pr.ID, []string{models.StatusApproved}, models.StatusClosed, nil); err != nil {
				return response.NewConflict("requisition " + pr.RequisitionNo + " is not approved")
			}
			if po.CaseID == nil {
				po.CaseID = pr.CaseID
			}
		}
		number, err := s.seq.Next(tx, models.DocPurchase, time.Now())
		if err != nil {
			return err
		}
		po.PONumber = number
		if err := tx.Create(&po).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "purchase_order", EntityID: po.ID, Action: "create", Actor: actor, After: po})
	})
	if err != nil {
		return nil, err
	}
	return &po, nil
}

func (s *PurchaseOrderService) Update(id uint, req *PurchaseOrderRequest, actor *Actor) (*models.PurchaseOrder, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if before.Status != models.StatusDraft {
		return nil, response.NewConflict("only draft purchase orders can be edited")
	}
	if err := s.checkRefs(req); err != nil {
		return nil, err
	}
	lines, totals, err := pricePurchaseLines(req.Lines)
	if err != nil {
		return nil, err
	}
	expected, err := optionalDate(req.ExpectedDate)
	if err != nil {
		return nil, err
	}

	var after models.PurchaseOrder
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, &models.PurchaseOrder{}, id, []string{models.StatusDraft}, models.StatusDraft, map[string]interface{}{
			"vendor_id":     req.VendorID,
			"warehouse_id":  req.WarehouseID,
			"expected_date": expected,
			"subtotal":      totals.subtotal,
			"tax_amount":    totals.tax,
			"total":         totals.total,
		}); err != nil {
			return err
		}
		if err := tx.Where("purchase_order_id = ?", id).Delete(&models.PurchaseOrderLine{}).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].PurchaseOrderID = id
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		if err := tx.Preload("Lines").First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "purchase_order", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

func (s *PurchaseOrderService) Submit(id uint, actor *Actor) (*models.ApprovalRequest, error) {
	po, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if po.Status != models.StatusDraft {
		return nil, response.NewConflict("purchase order is already " + po.Status)
	}
	vendor := ""
	if po.Vendor != nil {
		vendor = po.Vendor.Name
	}
	var approval *models.ApprovalRequest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		approval, err = s.approvals.Submit(tx, ApprovalSubmission{
			EntityType: models.ApprovalPurchaseOrder,
			EntityID:   id,
			CaseID:     po.CaseID,
			Payload: map[string]interface{}{
				"po_number": po.PONumber,
				"vendor":    vendor,
				"total":     po.Total.StringFixed(2),
			},
		}, actor)
		if err != nil {
			return err
		}
		return moveStatus(tx, &models.PurchaseOrder{}, id, []string{models.StatusDraft}, models.StatusSubmitted,
			map[string]interface{}{"approval_id": approval.ID})
	})
	if err != nil {
		return nil, err
	}
	s.approvals.Announce(approval, actor, po.PONumber+" "+vendor+" "+po.Total.StringFixed(2))
	return approval, nil
}

func (s *PurchaseOrderService) OnApproved(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	if err := moveStatus(tx, &models.PurchaseOrder{}, req.EntityID, []string{models.StatusSubmitted}, models.StatusApproved, nil); err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{EntityType: "purchase_order", EntityID: req.EntityID, Action: "approve", Actor: actor,
		After: map[string]interface{}{"status": models.StatusApproved}})
}

// OnRejected returns the PO to draft so it can be corrected and resubmitted.
func (s *PurchaseOrderService) OnRejected(tx *gorm.DB, req *models.ApprovalRequest, actor *Actor) error {
	if err := moveStatus(tx, &models.PurchaseOrder{}, req.EntityID, []string{models.StatusSubmitted}, models.StatusDraft,
		map[string]interface{}{"approval_id": nil}); err != nil {
		return err
	}
	return s.audit.Record(tx, AuditEntry{EntityType: "purchase_order", EntityID: req.EntityID, Action: "reject", Actor: actor,
		After: map[string]interface{}{"status": models.StatusDraft}})
}

func (s *PurchaseOrderService) Cancel(id uint, actor *Actor) (*models.PurchaseOrder, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	var after models.PurchaseOrder
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, &models.PurchaseOrder{}, id,
			[]string{models.StatusDraft, models.StatusSubmitted, models.StatusApproved}, models.StatusCancelled, nil); err != nil {
			return err
		}
		if err := s.approvals.CancelPending(tx, models.ApprovalPurchaseOrder, id, actor); err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "purchase_order", EntityID: id, Action: "cancel", Actor: actor,
			Before: map[string]interface{}{"status": before.Status}, After: map[string]interface{}{"status": after.Status}})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

// recomputeReceiptStatus derives the PO status from its lines' received
// quantities.
func recomputeReceiptStatus(tx *gorm.DB, poID uint) (string, error) {
	var lines []models.PurchaseOrderLine
	if err := tx.Where("purchase_order_id = ?", poID).Find(&lines).Error; err != nil {
		return "", err
	}
	complete, started := true, false
	for _, l := range lines {
		if l.ReceivedQuantity.IsPositive() {
			started = true
		}
		if l.ReceivedQuantity.LessThan(l.Quantity) {
			complete = false
		}
	}
	status := models.StatusApproved
	switch {
	case complete && started:
		status = models.StatusReceived
	case started:
		status = models.StatusPartiallyReceived
	}
	return status, tx.Model(&models.PurchaseOrder{}).Where("id = ?", poID).Update("status", status).Error
}
