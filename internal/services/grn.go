package services

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type GRNService struct {
	db    *gorm.DB
	audit *AuditService
	seq   *SequenceService
}

func NewGRNService(db *gorm.DB, audit *AuditService, seq *SequenceService) *GRNService {
	return &GRNService{db: db, audit: audit, seq: seq}
}

type GRNLineRequest struct {
	POLineID         uint            `json:"po_line_id" binding:"required"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	AcceptedQuantity decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity decimal.Decimal `json:"rejected_quantity"`
}

type GRNRequest struct {
	PurchaseOrderID uint             `json:"purchase_order_id" binding:"required"`
	ReceivedAt      string           `json:"received_at"`
	Remarks         string           `json:"remarks"`
	Lines           []GRNLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type GRNListRequest struct {
	PageRequest
	PurchaseOrderID uint `form:"purchase_order_id"`
}

func (s *GRNService) List(req *GRNListRequest) (*PageResult[models.GoodsReceipt], error) {
	query := s.db.Model(&models.GoodsReceipt{})
	if req.PurchaseOrderID > 0 {
		query = query.Where("purchase_order_id = ?", req.PurchaseOrderID)
	}
	return paginate[models.GoodsReceipt](query, &req.PageRequest, "created_at DESC, id DESC")
}

func (s *GRNService) GetByID(id uint) (*models.GoodsReceipt, error) {
	var g models.GoodsReceipt
	if err := s.db.Preload("Lines").First(&g, id).Error; err != nil {
		return nil, notFoundOr(err, "goods receipt not found")
	}
	return &g, nil
}

// Post receives material against a PO: the GRN, PO line progress, stock
// and ledger all commit together.
func (s *GRNService) Post(req *GRNRequest, actor *Actor) (*models.GoodsReceipt, error) {
	var po models.PurchaseOrder
	if err := s.db.Preload("Lines").First(&po, req.PurchaseOrderID).Error; err != nil {
		return nil, notFoundOr(err, "purchase order not found")
	}
	if po.Status != models.StatusApproved && po.Status != models.StatusPartiallyReceived {
		return nil, response.NewConflict("purchase order " + po.PONumber + " is " + po.Status)
	}
	receivedAt := time.Now()
	if req.ReceivedAt != "" {
		d, err := parseDate(req.ReceivedAt)
		if err != nil {
			return nil, err
		}
		receivedAt = d
	}

	poLines := make(map[uint]models.PurchaseOrderLine, len(po.Lines))
	for _, l := range po.Lines {
		poLines[l.ID] = l
	}
	seen := make(map[uint]bool)
	lines := make([]models.GoodsReceiptLine, 0, len(req.Lines))
	for i, r := range req.Lines {
		n := "line " + strconv.Itoa(i+1) + ": "
		pl, ok := poLines[r.POLineID]
		if !ok {
			return nil, response.NewBadRequest(n + "not a line of " + po.PONumber)
		}
		if seen[r.POLineID] {
			return nil, response.NewBadRequest(n + "PO line listed twice")
		}
		seen[r.POLineID] = true
		if !r.ReceivedQuantity.IsPositive() || r.AcceptedQuantity.IsNegative() || r.RejectedQuantity.IsNegative() {
			return nil, response.NewBadRequest(n + "quantities must be positive")
		}
		if !r.AcceptedQuantity.Add(r.RejectedQuantity).Equal(r.ReceivedQuantity) {
			return nil, response.NewBadRequest(n + "accepted + rejected must equal received")
		}
		if pl.ReceivedQuantity.Add(r.AcceptedQuantity).GreaterThan(pl.Quantity) {
			return nil, response.NewUnprocessable(n + "accepted quantity exceeds the balance of " +
				pl.Quantity.Sub(pl.ReceivedQuantity).String())
		}
		lines = append(lines, models.GoodsReceiptLine{
			POLineID:         r.POLineID,
			ItemID:           pl.ItemID,
			ReceivedQuantity: r.ReceivedQuantity,
			AcceptedQuantity: r.AcceptedQuantity,
			RejectedQuantity: r.RejectedQuantity,
		})
	}

	grn := models.GoodsReceipt{
		PurchaseOrderID: po.ID,
		WarehouseID:     po.WarehouseID,
		ReceivedAt:      receivedAt,
		Remarks:         req.Remarks,
		Lines:           lines,
		ReceivedBy:      actor.UserID,
	}
	var status string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		number, err := s.seq.Next(tx, models.DocGRN, time.Now())
		if err != nil {
			return err
		}
		grn.GRNNumber = number
		if err := tx.Create(&grn).Error; err != nil {
			return err
		}
		for _, l := range lines {
			if l.AcceptedQuantity.IsZero() {
				continue
			}
			res := tx.Model(&models.PurchaseOrderLine{}).
				Where("id = ? AND received_quantity + ? <= quantity", l.POLineID, l.AcceptedQuantity).
				Update("received_quantity", gorm.Expr("received_quantity + ?", l.AcceptedQuantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return response.NewConflict("purchase order line was received concurrently, reload and retry")
			}
			if err := applyStockDelta(tx, stockMove{
				ItemID:      l.ItemID,
				WarehouseID: po.WarehouseID,
				Delta:       l.AcceptedQuantity,
				Type:        models.StockTxnGRN,
				Reference:   number,
				Remarks:     po.PONumber,
				ActorID:     actor.UserID,
			}); err != nil {
				return err
			}
		}
		if status, err = recomputeReceiptStatus(tx, po.ID); err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "goods_receipt", EntityID: grn.ID, Action: "create", Actor: actor, After: grn})
	})
	if err != nil {
		return nil, err
	}

	LogInfo("Inventory", "GRN", grn.GRNNumber+" posted against "+po.PONumber+", PO now "+status,
		actor.userIDPtr(), actor.IP, actor.UserAgent, map[string]interface{}{"grn_id": grn.ID, "purchase_order_id": po.ID})
	return &grn, nil
}
