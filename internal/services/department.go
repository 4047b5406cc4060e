package services

import (
	"strings"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type DepartmentService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewDepartmentService(db *gorm.DB, audit *AuditService) *DepartmentService {
	return &DepartmentService{db: db, audit: audit}
}

type DepartmentRequest struct {
	Code      string `json:"code" binding:"required,max=30"`
	Name      string `json:"name" binding:"required,max=150"`
	ManagerID *uint  `json:"manager_id"`
}

func (s *DepartmentService) List() ([]models.Department, error) {
	var rows []models.Department
	return rows, s.db.Order("name ASC").Find(&rows).Error
}

func (s *DepartmentService) GetByID(id uint) (*models.Department, error) {
	var d models.Department
	if err := s.db.First(&d, id).Error; err != nil {
		return nil, notFoundOr(err, "department not found")
	}
	return &d, nil
}

func (s *DepartmentService) checkManager(id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	s.db.Model(&models.User{}).Where("id = ? AND is_active = ?", *id, true).Count(&n)
	if n == 0 {
		return response.NewBadRequest("manager user not found or inactive")
	}
	return nil
}

func (s *DepartmentService) Create(req *DepartmentRequest, actor *Actor) (*models.Department, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var n int64
	s.db.Unscoped().Model(&models.Department{}).Where("code = ?", code).Count(&n)
	if n > 0 {
		return nil, response.NewConflict("department code already exists")
	}
	if err := s.checkManager(req.ManagerID); err != nil {
		return nil, err
	}
	d := models.Department{Code: code, Name: strings.TrimSpace(req.Name), ManagerID: req.ManagerID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&d).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "department", EntityID: d.ID, Action: "create", Actor: actor, After: d})
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DepartmentService) Update(id uint, req *DepartmentRequest, actor *Actor) (*models.Department, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.checkManager(req.ManagerID); err != nil {
		return nil, err
	}
	var after models.Department
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Department{}).Where("id = ?", id).Updates(map[string]interface{}{
			"name":       strings.TrimSpace(req.Name),
			"manager_id": req.ManagerID,
		}).Error; err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "department", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

func (s *DepartmentService) Delete(id uint, actor *Actor) error {
	before, err := s.GetByID(id)
	if err != nil {
		return err
	}
	var n int64
	s.db.Model(&models.Employee{}).Where("department_id = ? AND status = ?", id, "active").Count(&n)
	if n > 0 {
		return response.NewConflict("department still has active employees")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Department{}, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "department", EntityID: id, Action: "delete", Actor: actor, Before: before})
	})
}
