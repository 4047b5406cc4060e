package services

import (
	"strings"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type VendorService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewVendorService(db *gorm.DB, audit *AuditService) *VendorService {
	return &VendorService{db: db, audit: audit}
}

type VendorRequest struct {
	Code          string `json:"code" binding:"required,max=30"`
	Name          string `json:"name" binding:"required,max=200"`
	GSTIN         string `json:"gstin" binding:"omitempty,len=15,alphanum"`
	ContactPerson string `json:"contact_person" binding:"max=150"`
	Email         string `json:"email" binding:"omitempty,email"`
	Phone         string `json:"phone" binding:"max=30"`
	Address       string `json:"address"`
	PaymentTerms  string `json:"payment_terms" binding:"max=100"`
	Status        string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type VendorListRequest struct {
	PageRequest
	Search string `form:"search"`
	Status string `form:"status"`
}

func (s *VendorService) List(req *VendorListRequest) (*PageResult[models.Vendor], error) {
	query := s.db.Model(&models.Vendor{})
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("name LIKE ? OR code LIKE ? OR gstin LIKE ?", like, like, like)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	return paginate[models.Vendor](query, &req.PageRequest, "name ASC")
}

func (s *VendorService) GetByID(id uint) (*models.Vendor, error) {
	var v models.Vendor
	if err := s.db.First(&v, id).Error; err != nil {
		return nil, notFoundOr(err, "vendor not found")
	}
	return &v, nil
}

func (s *VendorService) Create(req *VendorRequest, actor *Actor) (*models.Vendor, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var n int64
	s.db.Unscoped().Model(&models.Vendor{}).Where("code = ?", code).Count(&n)
	if n > 0 {
		return nil, response.NewConflict("vendor code already exists")
	}
	v := models.Vendor{
		Code:          code,
		Name:          strings.TrimSpace(req.Name),
		GSTIN:         strings.ToUpper(req.GSTIN),
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		PaymentTerms:  req.PaymentTerms,
		Status:        "active",
	}
	if req.Status != "" {
		v.Status = req.Status
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&v).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "vendor", EntityID: v.ID, Action: "create", Actor: actor, After: v})
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *VendorService) Update(id uint, req *VendorRequest, actor *Actor) (*models.Vendor, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var n int64
	s.db.Unscoped().Model(&models.Vendor{}).Where("code = ? AND id <> ?", code, id).Count(&n)
	if n > 0 {
		return nil, response.NewConflict("vendor code already exists")
	}
	updates := map[string]interface{}{
		"code":           code,
		"name":           strings.TrimSpace(req.Name),
		"gstin":          strings.ToUpper(req.GSTIN),
		"contact_person": req.ContactPerson,
		"email":          req.Email,
		"phone":          req.Phone,
		"address":        req.Address,
		"payment_terms":  req.PaymentTerms,
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	var after models.Vendor
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Vendor{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "vendor", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

// Delete deactivates the vendor. Vendors with open purchase orders stay.
func (s *VendorService) Delete(id uint, actor *Actor) error {
	before, err := s.GetByID(id)
	if err != nil {
		return err
	}
	var open int64
	s.db.Model(&models.PurchaseOrder{}).
		Where("vendor_id = ? AND status IN ?", id, []string{models.StatusSubmitted, models.StatusApproved, models.StatusPartiallyReceived}).
		Count(&open)
	if open > 0 {
		return response.NewConflict("vendor has open purchase orders")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Vendor{}).Where("id = ?", id).Update("status", "inactive").Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Vendor{}, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "vendor", EntityID: id, Action: "delete", Actor: actor, Before: before})
	})
}
