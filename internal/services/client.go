package services

import (
	"strings"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type ClientService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewClientService(db *gorm.DB, audit *AuditService) *ClientService {
	return &ClientService{db: db, audit: audit}
}

type ClientRequest struct {
	Code          string `json:"code" binding:"required,max=30"`
	Name          string `json:"name" binding:"required,max=200"`
	ContactPerson string `json:"contact_person" binding:"max=150"`
	Email         string `json:"email" binding:"omitempty,email"`
	Phone         string `json:"phone" binding:"max=30"`
	GSTIN         string `json:"gstin" binding:"omitempty,len=15,alphanum"`
	Address       string `json:"address"`
	Status        string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type ClientListRequest struct {
	PageRequest
	Search string `form:"search"`
	Status string `form:"status"`
}

func (s *ClientService) List(req *ClientListRequest) (*PageResult[models.Client], error) {
	query := s.db.Model(&models.Client{})
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("name LIKE ? OR code LIKE ? OR contact_person LIKE ?", like, like, like)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	return paginate[models.Client](query, &req.PageRequest, "name ASC")
}

func (s *ClientService) GetByID(id uint) (*models.Client, error) {
	var client models.Client
	if err := s.db.First(&client, id).Error; err != nil {
		return nil, notFoundOr(err, "client not found")
	}
	return &client, nil
}

func (s *ClientService) Create(req *ClientRequest, actor *Actor) (*models.Client, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var count int64
	s.db.Unscoped().Model(&models.Client{}).Where("code = ?", code).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("client code already exists")
	}

	client := models.Client{
		Code:          code,
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		GSTIN:         strings.ToUpper(req.GSTIN),
		Address:       req.Address,
		Status:        "active",
		CreatedBy:     actor.UserID,
	}
	if req.Status != "" {
		client.Status = req.Status
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&client).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "client", EntityID: client.ID, Action: "create", Actor: actor, After: client})
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *ClientService) Update(id uint, req *ClientRequest, actor *Actor) (*models.Client, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var count int64
	s.db.Unscoped().Model(&models.Client{}).Where("code = ? AND id <> ?", code, id).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("client code already exists")
	}

	updates := map[string]interface{}{
		"code":           code,
		"name":           strings.TrimSpace(req.Name),
		"contact_person": req.ContactPerson,
		"email":          req.Email,
		"phone":          req.Phone,
		"gstin":          strings.ToUpper(req.GSTIN),
		"address":        req.Address,
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}

	var after models.Client
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Client{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "client", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

// Delete marks the client inactive and soft deletes it. Clients with open
// cases are kept.
func (s *ClientService) Delete(id uint, actor *Actor) error {
	before, err := s.GetByID(id)
	if err != nil {
		return err
	}
	var open int64
	s.db.Model(&models.Case{}).
		Where("client_id = ? AND current_state NOT IN ?", id, []string{"closed", "cancelled"}).
		Count(&open)
	if open > 0 {
		return response.NewConflict("client has open cases")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Client{}).Where("id = ?", id).Update("status", "inactive").Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Client{}, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "client", EntityID: id, Action: "delete", Actor: actor, Before: before})
	})
}
