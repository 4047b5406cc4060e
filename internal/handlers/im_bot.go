package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vtria/erp/internal/services"
	"github.com/vtria/erp/pkg/response"
)

type IMBotHandler struct {
	imBotService *services.IMBotService
}

func NewIMBotHandler(imBotService *services.IMBotService) *IMBotHandler {
	return &IMBotHandler{imBotService: imBotService}
}

func (h *IMBotHandler) List(c *gin.Context) {
	var req services.IMBotListRequest
	if !bindQuery(c, &req) {
		return
	}
	result, err := h.imBotService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	paginated(c, result)
}

func (h *IMBotHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	bot, err := h.imBotService.GetByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bot)
}

func (h *IMBotHandler) Create(c *gin.Context) {
	var req services.CreateIMBotRequest
	if !bindJSON(c, &req) {
		return
	}
	bot, err := h.imBotService.Create(&req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bot)
}

func (h *IMBotHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateIMBotRequest
	if !bindJSON(c, &req) {
		return
	}
	bot, err := h.imBotService.Update(id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bot)
}

func (h *IMBotHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.imBotService.Delete(id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "bot deleted")
}

// Test posts a sample message to the bot's webhook.
func (h *IMBotHandler) Test(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.imBotService.Test(id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "test message sent")
}
