package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/middleware"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type ClientHandler struct {
	clientService *services.ClientService
}

func NewClientHandler(clientService *services.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

func (h *ClientHandler) List(c *gin.Context) {
	var req services.ClientListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.clientService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *ClientHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	client, err := h.clientService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, client)
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req services.ClientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.clientService.Create(&req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, client)
}

func (h *ClientHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.ClientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.clientService.Update(id, &req, middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, client)
}

func (h *ClientHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.clientService.Delete(id, middleware.Actor(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "client deleted")
}
