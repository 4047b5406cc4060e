package services

import (
	"fmt"
	"math"
	"net/netip"
	"strings"

	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/internal/utils"
	"gorm.io/gorm"
)

const (
	AccessReasonDisabled            = "disabled"
	AccessReasonAdminBypass         = "admin_bypass"
	AccessReasonNoLocations         = "no_locations"
	AccessReasonMatched             = "matched"
	AccessReasonCoordinatesRequired = "coordinates_required"
	AccessReasonIPNotAllowed        = "ip_not_allowed"
	AccessReasonOutsideGeofence     = "outside_geofence"
)

type AccessRequest struct {
	UserID     uint     `json:"user_id"`
	Username   string   `json:"username,omitempty"`
	Role       string   `json:"role"`
	LocationID *uint    `json:"location_id,omitempty"`
	IP         string   `json:"ip"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	RequireGeo bool     `json:"require_geo"`
}

type AccessDecision struct {
	Allowed        bool     `json:"allowed"`
	LocationID     *uint    `json:"location_id,omitempty"`
	LocationName   string   `json:"location_name,omitempty"`
	Reason         string   `json:"reason"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// AccessService validates a caller's network address and position against
// the configured office locations.
type AccessService struct {
	db        *gorm.DB
	cfg       *config.AccessConfig
	configSvc *SystemConfigService
	audit     *AuditService
}

func NewAccessService(db *gorm.DB, cfg *config.AccessConfig, configSvc *SystemConfigService, audit *AuditService) *AccessService {
	if cfg == nil {
		cfg = &config.AccessConfig{Enabled: true}
	}
	return &AccessService{db: db, cfg: cfg, configSvc: configSvc, audit: audit}
}

func (s *AccessService) Enabled() bool {
	if !s.cfg.Enabled {
		return false
	}
	if s.configSvc == nil {
		return true
	}
	return s.configSvc.GetBool("access_control_enabled", true)
}

// GeofenceAttendance reports whether check-in must carry coordinates.
func (s *AccessService) GeofenceAttendance() bool { return s.cfg.GeofenceAttendance }

// EnforceAPI reports whether every protected route is IP checked.
func (s *AccessService) EnforceAPI() bool { return s.cfg.EnforceAPI }

func (s *AccessService) Validate(req *AccessRequest) (*AccessDecision, error) {
	if !s.Enabled() {
		return &AccessDecision{Allowed: true, Reason: AccessReasonDisabled}, nil
	}
	if req.Role == models.RoleAdmin {
		return &AccessDecision{Allowed: true, Reason: AccessReasonAdminBypass}, nil
	}

	candidates, err := s.candidates(req.LocationID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &AccessDecision{Allowed: true, Reason: AccessReasonNoLocations}, nil
	}

	hasCoords := req.Latitude != nil && req.Longitude != nil
	if req.RequireGeo && !hasCoords {
		return s.deny(req, &AccessDecision{Reason: AccessReasonCoordinatesRequired}), nil
	}
	if hasCoords && !utils.ValidCoordinates(*req.Latitude, *req.Longitude) {
		return s.deny(req, &AccessDecision{Reason: AccessReasonCoordinatesRequired}), nil
	}

	addr := parseClientIP(req.IP)
	checkGeo := hasCoords || req.RequireGeo

	ipPassed := false
	nearest := math.Inf(1)
	var nearestID *uint

	for i := range candidates {
		loc := &candidates[i]
		if !ipAllowed(loc.IPRules(), addr) {
			continue
		}
		ipPassed = true

		if !checkGeo || !loc.HasGeofence() {
			return &AccessDecision{
				Allowed:      true,
				LocationID:   uintPtr(loc.ID),
				LocationName: loc.Name,
				Reason:       AccessReasonMatched,
			}, nil
		}

		dist := utils.DistanceMeters(*req.Latitude, *req.Longitude, *loc.Latitude, *loc.Longitude)
		if dist <= float64(loc.RadiusMeters) {
			d := math.Round(dist*10) / 10
			return &AccessDecision{
				Allowed:        true,
				LocationID:     uintPtr(loc.ID),
				LocationName:   loc.Name,
				Reason:         AccessReasonMatched,
				DistanceMeters: &d,
			}, nil
		}
		if dist < nearest {
			nearest = dist
			nearestID = uintPtr(loc.ID)
		}
	}

	if !ipPassed {
		return s.deny(req, &AccessDecision{Reason: AccessReasonIPNotAllowed}), nil
	}
	d := math.Round(nearest*10) / 10
	return s.deny(req, &AccessDecision{
		Reason:         AccessReasonOutsideGeofence,
		LocationID:     nearestID,
		DistanceMeters: &d,
	}), nil
}

// candidates is the user's own active location, or every active location
// when the user has none (or it was deactivated).
func (s *AccessService) candidates(locationID *uint) ([]models.OfficeLocation, error) {
	var rows []models.OfficeLocation
	if locationID != nil {
		if err := s.db.Where("id = ? AND is_active = ?", *locationID, true).Find(&rows).Error; err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return rows, nil
		}
	}
	if err := s.db.Where("is_active = ?", true).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccessService) deny(req *AccessRequest, decision *AccessDecision) *AccessDecision {
	decision.Allowed = false

	actor := &Actor{UserID: req.UserID, Username: req.Username, Role: req.Role, IP: req.IP}
	if s.audit != nil {
		if err := s.audit.Record(nil, AuditEntry{
			EntityType: "access",
			EntityID:   req.UserID,
			Action:     "denied",
			Actor:      actor,
			After: map[string]interface{}{
				"reason":          decision.Reason,
				"ip":              req.IP,
				"latitude":        req.Latitude,
				"longitude":       req.Longitude,
				"location_id":     decision.LocationID,
				"distance_meters": decision.DistanceMeters,
			},
		}); err != nil {
			LogError("Access", "Audit", err.Error(), actor.userIDPtr(), req.IP, "", nil)
		}
	}
	LogWarning("Access", "Denied", fmt.Sprintf("access denied for %s: %s", req.Username, decision.Reason),
		actor.userIDPtr(), req.IP, "", map[string]interface{}{"reason": decision.Reason})
	return decision
}

func parseClientIP(ip string) netip.Addr {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return netip.Addr{}
	}
	return addr.Unmap()
}

// ipAllowed matches addr against IPs and CIDRs. An empty rule list allows any address.
func ipAllowed(rules []string, addr netip.Addr) bool {
	if len(rules) == 0 {
		return true
	}
	if !addr.IsValid() {
		return false
	}
	for _, rule := range rules {
		if strings.Contains(rule, "/") {
			prefix, err := netip.ParsePrefix(rule)
			if err != nil {
				continue
			}
			if prefix.Masked().Contains(addr) {
				return true
			}
			continue
		}
		if a, err := netip.ParseAddr(rule); err == nil && a.Unmap() == addr {
			return true
		}
	}
	return false
}

// ValidateIPRules checks a comma separated list of IPs and CIDRs.
func ValidateIPRules(list string) error {
	for _, rule := range splitAndTrim(list, ",") {
		if strings.Contains(rule, "/") {
			if _, err := netip.ParsePrefix(rule); err != nil {
				return fmt.Errorf("invalid CIDR %q", rule)
			}
			continue
		}
		if _, err := netip.ParseAddr(rule); err != nil {
			return fmt.Errorf("invalid IP %q", rule)
		}
	}
	return nil
}
