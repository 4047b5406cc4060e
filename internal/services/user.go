package services

import (
	"strings"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/utils"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type UserService struct {
	db    *gorm.DB
	audit *AuditService
	auth  *AuthService
}

func NewUserService(db *gorm.DB, audit *AuditService, auth *AuthService) *UserService {
	return &UserService{db: db, audit: audit, auth: auth}
}

type UserListRequest struct {
	PageRequest
	Username   string `form:"username"`
	Role       string `form:"role"`
	AuthType   string `form:"auth_type"`
	LocationID uint   `form:"location_id"`
	IsActive   *bool  `form:"is_active"`
}

func (s *UserService) List(req *UserListRequest) (*PageResult[models.User], error) {
	query := s.db.Model(&models.User{})
	if req.Username != "" {
		like := "%" + req.Username + "%"
		query = query.Where("username LIKE ? OR full_name LIKE ?", like, like)
	}
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}
	if req.AuthType != "" {
		query = query.Where("auth_type = ?", req.AuthType)
	}
	if req.LocationID > 0 {
		query = query.Where("location_id = ?", req.LocationID)
	}
	if req.IsActive != nil {
		query = query.Where("is_active = ?", *req.IsActive)
	}
	return paginate[models.User](query, &req.PageRequest, "id ASC")
}

func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return &user, nil
}

type CreateUserRequest struct {
	Username   string `json:"username" binding:"required,min=3,max=100"`
	Password   string `json:"password" binding:"required,min=6"`
	Email      string `json:"email" binding:"omitempty,email"`
	FullName   string `json:"full_name" binding:"max=150"`
	Role       string `json:"role" binding:"required"`
	LocationID *uint  `json:"location_id"`
}

func (s *UserService) Create(req *CreateUserRequest, actor *Actor) (*models.User, error) {
	if !models.IsValidRole(req.Role) {
		return nil, response.NewBadRequest("invalid role: " + req.Role)
	}
	username := strings.TrimSpace(req.Username)

	var count int64
	s.db.Unscoped().Model(&models.User{}).Where("username = ?", username).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("username already exists")
	}
	if err := s.checkLocation(req.LocationID); err != nil {
		return nil, err
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:   username,
		Password:   hashed,
		Email:      req.Email,
		FullName:   req.FullName,
		Role:       req.Role,
		AuthType:   "local",
		LocationID: req.LocationID,
		IsActive:   true,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "user", EntityID: user.ID, Action: "create", Actor: actor, After: user})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type UpdateUserRequest struct {
	Role       *string `json:"role"`
	IsActive   *bool   `json:"is_active"`
	FullName   *string `json:"full_name"`
	Email      *string `json:"email" binding:"omitempty,email"`
	LocationID *uint   `json:"location_id"`
	Password   *string `json:"password" binding:"omitempty,min=6"`
}

func (s *UserService) Update(id uint, req *UpdateUserRequest, actor *Actor) (*models.User, error) {
	if id == actor.UserID && (req.Role != nil || (req.IsActive != nil && !*req.IsActive)) {
		return nil, response.NewBadRequest("cannot change your own role or disable your own account")
	}
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Role != nil {
		if !models.IsValidRole(*req.Role) {
			return nil, response.NewBadRequest("invalid role: " + *req.Role)
		}
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.LocationID != nil {
		if *req.LocationID == 0 {
			updates["location_id"] = nil
		} else {
			if err := s.checkLocation(req.LocationID); err != nil {
				return nil, err
			}
			updates["location_id"] = *req.LocationID
		}
	}
	if req.Password != nil {
		if before.AuthType != "local" {
			return nil, response.NewBadRequest("cannot set a password for an LDAP user")
		}
		hashed, err := utils.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		updates["password"] = hashed
	}
	if len(updates) == 0 {
		return nil, response.NewBadRequest("no fields to update")
	}

	var after models.User
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "user", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}

	if (req.IsActive != nil && !*req.IsActive) || req.Password != nil {
		if s.auth != nil {
			s.auth.RevokeAllForUser(id)
		}
	}
	return &after, nil
}

func (s *UserService) Delete(id uint, actor *Actor) error {
	if id == actor.UserID {
		return response.NewBadRequest("cannot delete your own account")
	}
	user, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		var admins int64
		s.db.Model(&models.User{}).Where("role = ? AND is_active = ?", models.RoleAdmin, true).Count(&admins)
		if admins <= 1 {
			return response.NewConflict("cannot delete the last admin")
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.User{}, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "user", EntityID: id, Action: "delete", Actor: actor, Before: user})
	})
	if err != nil {
		return err
	}
	if s.auth != nil {
		s.auth.RevokeAllForUser(id)
	}
	return nil
}

func (s *UserService) checkLocation(id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	s.db.Model(&models.OfficeLocation{}).Where("id = ?", *id).Count(&count)
	if count == 0 {
		return response.NewBadRequest("location does not exist")
	}
	return nil
}
