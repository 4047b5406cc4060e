package services

import (
	"strings"
	"time"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type SalesOrderService struct {
	db    *gorm.DB
	audit *AuditService
	seq   *SequenceService
}

func NewSalesOrderService(db *gorm.DB, audit *AuditService, seq *SequenceService) *SalesOrderService {
	return &SalesOrderService{db: db, audit: audit, seq: seq}
}

type SalesOrderRequest struct {
	QuotationID      uint   `json:"quotation_id" binding:"required"`
	CustomerPONumber string `json:"customer_po_number" binding:"max=100"`
	DeliveryDate     string `json:"delivery_date"`
}

type SalesOrderListRequest struct {
	PageRequest
	CaseID   uint   `form:"case_id"`
	ClientID uint   `form:"client_id"`
	Status   string `form:"status"`
}

func (s *SalesOrderService) List(req *SalesOrderListRequest) (*PageResult[models.SalesOrder], error) {
	query := s.db.Model(&models.SalesOrder{})
	if req.CaseID > 0 {
		query = query.Where("case_id = ?", req.CaseID)
	}
	if req.ClientID > 0 {
		query = query.Where("client_id = ?", req.ClientID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	return paginate[models.SalesOrder](query, &req.PageRequest, "created_at DESC, id DESC")
}

func (s *SalesOrderService) GetByID(id uint) (*models.SalesOrder, error) {
	var so models.SalesOrder
	if err := s.db.First(&so, id).Error; err != nil {
		return nil, notFoundOr(err, "sales order not found")
	}
	return &so, nil
}

// Create books an order against an accepted quotation. Each quotation
// yields at most one order.
func (s *SalesOrderService) Create(req *SalesOrderRequest, actor *Actor) (*models.SalesOrder, error) {
	var q models.Quotation
	if err := s.db.First(&q, req.QuotationID).Error; err != nil {
		return nil, notFoundOr(err, "quotation not found")
	}
	if q.Status != models.StatusAccepted {
		return nil, response.NewConflict("quotation " + q.QuotationNo + " is not accepted")
	}
	c, err := openCase(s.db, q.CaseID)
	if err != nil {
		return nil, err
	}
	var existing int64
	s.db.Unscoped().Model(&models.SalesOrder{}).Where("quotation_id = ?", q.ID).Count(&existing)
	if existing > 0 {
		return nil, response.NewConflict("quotation " + q.QuotationNo + " already has a sales order")
	}
	delivery, err := optionalDate(req.DeliveryDate)
	if err != nil {
		return nil, err
	}

	so := models.SalesOrder{
		CaseID:           q.CaseID,
		QuotationID:      q.ID,
		ClientID:         c.ClientID,
		CustomerPONumber: strings.TrimSpace(req.CustomerPONumber),
		DeliveryDate:     delivery,
		Amount:           q.GrandTotal,
		Status:           models.StatusDraft,
		CreatedBy:        actor.UserID,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.Next(tx, models.DocSalesOrder, time.Now())
		if err != nil {
			return err
		}
		so.OrderNo = number
		if err := tx.Create(&so).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "sales_order", EntityID: so.ID, Action: "create", Actor: actor, After: so})
	})
	if err != nil {
		return nil, err
	}
	return &so, nil
}

func (s *SalesOrderService) Confirm(id uint, actor *Actor) (*models.SalesOrder, error) {
	return s.move(id, []string{models.StatusDraft}, models.StatusConfirmed, map[string]interface{}{"confirmed_at": time.Now()}, actor)
}

func (s *SalesOrderService) Complete(id uint, actor *Actor) (*models.SalesOrder, error) {
	return s.move(id, []string{models.StatusConfirmed}, models.StatusCompleted, nil, actor)
}

func (s *SalesOrderService) Cancel(id uint, actor *Actor) (*models.SalesOrder, error) {
	return s.move(id, []string{models.StatusDraft, models.StatusConfirmed}, models.StatusCancelled, nil, actor)
}

func (s *SalesOrderService) move(id uint, from []string, to string, extra map[string]interface{}, actor *Actor) (*models.SalesOrder, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	var after models.SalesOrder
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, &models.SalesOrder{}, id, from, to, extra); err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "sales_order", EntityID: id, Action: to, Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}
