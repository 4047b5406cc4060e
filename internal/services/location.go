package services

import (
	"strings"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/utils"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type LocationService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewLocationService(db *gorm.DB, audit *AuditService) *LocationService {
	return &LocationService{db: db, audit: audit}
}

type LocationRequest struct {
	Code         string   `json:"code" binding:"required,max=30"`
	Name         string   `json:"name" binding:"required,max=150"`
	Address      string   `json:"address"`
	Latitude     *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude" binding:"omitempty,longitude"`
	RadiusMeters int      `json:"radius_meters" binding:"omitempty,min=10,max=50000"`
	AllowedIPs   string   `json:"allowed_ips" binding:"omitempty,cidr_list"`
	IsActive     *bool    `json:"is_active"`
}

func (r *LocationRequest) validate() error {
	if (r.Latitude == nil) != (r.Longitude == nil) {
		return response.NewBadRequest("latitude and longitude must be set together")
	}
	if r.Latitude != nil && !utils.ValidCoordinates(*r.Latitude, *r.Longitude) {
		return response.NewBadRequest("coordinates out of range")
	}
	if err := ValidateIPRules(r.AllowedIPs); err != nil {
		return response.NewBadRequest(err.Error())
	}
	return nil
}

func (s *LocationService) List(activeOnly bool) ([]models.OfficeLocation, error) {
	var rows []models.OfficeLocation
	query := s.db.Order("id ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LocationService) GetByID(id uint) (*models.OfficeLocation, error) {
	var loc models.OfficeLocation
	if err := s.db.First(&loc, id).Error; err != nil {
		return nil, notFoundOr(err, "location not found")
	}
	return &loc, nil
}

func (s *LocationService) Create(req *LocationRequest, actor *Actor) (*models.OfficeLocation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))

	var count int64
	s.db.Model(&models.OfficeLocation{}).Where("code = ?", code).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("location code already exists")
	}

	loc := models.OfficeLocation{
		Code:         code,
		Name:         req.Name,
		Address:      req.Address,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: req.RadiusMeters,
		AllowedIPs:   strings.Join(splitAndTrim(req.AllowedIPs, ","), ","),
		IsActive:     true,
	}
	if loc.RadiusMeters == 0 {
		loc.RadiusMeters = 200
	}
	if req.IsActive != nil {
		loc.IsActive = *req.IsActive
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&loc).Error; err != nil {
			return err
		}
		// gorm skips zero values on create, so an explicit inactive flag needs a second write
		if !loc.IsActive {
			if err := tx.Model(&loc).Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "location", EntityID: loc.ID, Action: "create", Actor: actor, After: loc})
	})
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *LocationService) Update(id uint, req *LocationRequest, actor *Actor) (*models.OfficeLocation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	before, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	var count int64
	s.db.Model(&models.OfficeLocation{}).Where("code = ? AND id <> ?", code, id).Count(&count)
	if count > 0 {
		return nil, response.NewConflict("location code already exists")
	}

	updates := map[string]interface{}{
		"code":        code,
		"name":        req.Name,
		"address":     req.Address,
		"latitude":    req.Latitude,
		"longitude":   req.Longitude,
		"allowed_ips": strings.Join(splitAndTrim(req.AllowedIPs, ","), ","),
	}
	if req.RadiusMeters > 0 {
		updates["radius_meters"] = req.RadiusMeters
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	var after models.OfficeLocation
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OfficeLocation{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&after, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "location", EntityID: id, Action: "update", Actor: actor, Before: before, After: after})
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

func (s *LocationService) Delete(id uint, actor *Actor) error {
	before, err := s.GetByID(id)
	if err != nil {
		return err
	}
	var users int64
	s.db.Model(&models.User{}).Where("location_id = ?", id).Count(&users)
	if users > 0 {
		return response.NewConflict("location is assigned to users")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.OfficeLocation{}, id).Error; err != nil {
			return err
		}
		return s.audit.Record(tx, AuditEntry{EntityType: "location", EntityID: id, Action: "delete", Actor: actor, Before: before})
	})
}
