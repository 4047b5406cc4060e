package services

import (
	"strings"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type EmployeeService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewEmployeeService(db *gorm.DB, audit *AuditService) *EmployeeService {
	return &EmployeeService{db: db, audit: audit}
}

type EmployeeRequest struct {
	EmployeeCode string `json:"employee_code" binding:"required,max=30"`
	FullName     string `json:"full_name" binding:"required,max=150"`
	Email        string `json:"email" binding:"omitempty,email"`
	Phone        string `json:"phone" binding:"max=30"`
	DepartmentID *uint  `json:"department_id"`
	Designation  string `json:"designation" binding:"max=100"`
	UserID       *uint  `json:"user_id"`
	LocationID   *uint  `json:"location_id"`
	JoiningDate  string `json:"joining_date"`
	Status       string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type EmployeeListRequest struct {
	PageRequest
	Search       string `form:"search"`
	DepartmentID uint   `form:"department_id"`
	LocationID   uint   `form:"location_id"`
	Status       string `form:"status"`
}

func (s *EmployeeService) List(req *EmployeeListRequest) (*PageResult[models.Employee], error) {
	query := s.db.Model(&models.Employee{}).Preload("Department")
	if req.Search != "" {
		like := "%" + req.Search + "%"
		query = query.Where("full_name LIKE ? OR employee_code LIKE ? OR email LIKE ?", like, like, like)
	}
	if req.DepartmentID > 0 {
		query = query.Where("department_id = ?", req.DepartmentID)
	}
	if req.LocationID > 0 {
		query = query.Where("location_id = ?", req.LocationID)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	return paginate[models.Employee](query, &req.PageRequest, "employee_code ASC")
}

func (s *EmployeeService) GetByID(id uint) (*models.Employee, error) {
	var e models.Employee
	if err := s.db.Preload("Department").First(&e, id).Error; err != nil {
		return nil, notFoundOr(err, "employee not found")
	}
	return &e, nil
}

// ForUser finds the active employee record linked to a login.
func (s *EmployeeService) ForUser(userID uint) (*models.Employee, error) {
	return employeeForUser(s.db, userID)
}

func employeeForUser(db *gorm.DB, userID uint) (*models.Employee, error) {
	var e models.Employee
	if err := db.Where("user_id = ? AND status = ?", userID, "active").First(&e).Error; err != nil {
		return nil, notFoundOr(err, "no active employee record is linked to this user")
	}
	return &e, nil
}

func (s *EmployeeService) validate(req *EmployeeRequest, id uint) error {
	if req.DepartmentID != nil {
		var n int64
		s.db.Model(&models.Department{}).Where("id = ?", *req.DepartmentID).Count(&n)
		if n == 0 {
			return response.NewBadRequest("department not found")
		}
	}
	if req.UserID != nil {
		var n int64
		s.db.Model(&models.User{}).Where("id = ?", *req.UserID).Count(&n)
		if n == 0 {
			return response.NewBadRequest("user not found")
		}
		s.db.Unscoped().Model(&models.Employee{}).Where("user_id = ? AND id <> ?", *req.UserID, id).Count(&n)
		if n > 0 {
			return response.NewConflict("user is already linked to another employee")
		}
	}
	return nil
}

func (s *EmployeeService) Create(req *EmployeeRequest, actor *Actor) (*models.Employee, error) {
	code := strings.ToUpper(strings.TrimSpace(req.EmployeeCode))
	var n int64
	s.db.Unscoped().Model(&models.Employee{}).Where("employee_code = ?", code).Count(&n)
	if n > 0 {
		return nil, response.NewConflict("employee code already exists")
	}
	if err := s.validate(req, 0); err != nil {
		return nil, err
	}
	joining, err := optionalDate(req.JoiningDate)
	if err != nil {
		return nil, err
	}
	e := models.Employee{
		EmployeeCode: code,
		FullName:     strings.TrimSpace(req.FullName),
		Email:        req.Email,
		Phone:        req.Phone,
		DepartmentID: req.DepartmentID,
		Designation:  req.Designation,
		UserID:       req.UserID,
		LocationID:   req.LocationID,
		JoiningDate:  joining,
		Status:       "active",
	}
	if req.Status != "" {
		e.Status = req.Status
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&e).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "employee", EntityID: e.ID, Action: "create", Actor: actor, After: e})
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EmployeeService) Update(id uint, req *EmployeeRequest, actor *Actor) (*models.Employee, error) {
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(req, id); err != nil {
		return nil, err
	}
	joining, err := optionalDate(req.JoiningDate)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"full_name":     strings.TrimSpace(req.FullName),
		"email":         req.Email,
		"phone":         req.Phone,
		"department_id": req.DepartmentID,
		"designation":   req.Designation,
		"user_id":       req.UserID,
		"location_id":   req.LocationID,
		"joining_date":  joining,
	}
	if req.Status != "" {
		updates["status"] = req.Status
	}
	var after models.Employee
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Employee{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		before.Department = nil
		return s.audit.Record(tx, AuditEntry{EntityType: "employee", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

// Deactivate is the employee delete: records stay for leave and attendance
// history.
func (s *EmployeeService) Deactivate(id uint, actor *Actor) error {
	before, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if before.Status == "inactive" {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Employee{}).Where("id = ?", id).Update("status", "inactive").Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "employee", EntityID: id, Action: "deactivate", Actor: actor,
			Before: map[string]interface{}{"status": before.Status}, After: map[string]interface{}{"status": "inactive"}})
	})
}
