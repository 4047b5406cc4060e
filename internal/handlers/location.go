package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type LocationHandler struct {
	locationService *services.LocationService
	accessService   *services.AccessService
}

func NewLocationHandler(locationService *services.LocationService, accessService *services.AccessService) *LocationHandler {
	return &LocationHandler{locationService: locationService, accessService: accessService}
}

func (h *LocationHandler) List(c *gin.Context) {
	locations, err := h.locationService.List(c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, locations)
}

func (h *LocationHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	location, err := h.locationService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, location)
}

func (h *LocationHandler) Create(c *gin.Context) {
	var req services.LocationRequest
	if !bindJSON(c, &req) {
		return
	}
	location, err := h.locationService.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, location)
}

func (h *LocationHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.LocationRequest
	if !bindJSON(c, &req) {
		return
	}
	location, err := h.locationService.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, location)
}

func (h *LocationHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.locationService.Delete(id, middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "location deleted")
}

type validateAccessRequest struct {
	Latitude  *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" binding:"omitempty,longitude"`
}

// Validate checks the caller's IP and optional coordinates against their
// office locations without side effects beyond the denial audit.
// POST /api/access/validate
func (h *LocationHandler) Validate(c *gin.Context) {
	var req validateAccessRequest
	if !bindJSON(c, &req) {
		return
	}
	decision, err := h.accessService.Validate(&services.AccessRequest{
		UserID:     middleware.GetUserID(c),
		Username:   middleware.GetUsername(c),
		Role:       middleware.GetRole(c),
		LocationID: middleware.GetLocationID(c),
		IP:         c.ClientIP(),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		RequireGeo: req.Latitude != nil || req.Longitude != nil,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, decision)
}
