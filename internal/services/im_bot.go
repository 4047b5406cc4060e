package services

import (
	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/response"
	"gorm.io/gorm"
)

type IMBotService struct {
	db *gorm.DB
}

func NewIMBotService(db *gorm.DB) *IMBotService {
	return &IMBotService{db: db}
}

type IMBotListRequest struct {
	PageRequest
	Name     string `form:"name"`
	Type     string `form:"type"`
	IsActive *bool  `form:"is_active"`
}

type CreateIMBotRequest struct {
	Name             string `json:"name" binding:"required"`
	Type             string `json:"type" binding:"required,oneof=wechat_work dingtalk feishu slack generic"`
	Webhook          string `json:"webhook" binding:"required,url"`
	Secret           string `json:"secret"`
	IsActive         bool   `json:"is_active"`
	EscalationNotify bool   `json:"escalation_notify"`
	ApprovalNotify   bool   `json:"approval_notify"`
}

type UpdateIMBotRequest struct {
	Name             string `json:"name"`
	Type             string `json:"type" binding:"omitempty,oneof=wechat_work dingtalk feishu slack generic"`
	Webhook          string `json:"webhook" binding:"omitempty,url"`
	Secret           string `json:"secret"`
	IsActive         *bool  `json:"is_active"`
	EscalationNotify *bool  `json:"escalation_notify"`
	ApprovalNotify   *bool  `json:"approval_notify"`
}

func (s *IMBotService) List(req *IMBotListRequest) (*PageResult[models.IMBot], error) {
	query := s.db.Model(&models.IMBot{})
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.Type != "" {
		query = query.Where("type = ?", req.Type)
	}
	if req.IsActive != nil {
		query = query.Where("is_active = ?", *req.IsActive)
	}
	return paginate[models.IMBot](query, &req.PageRequest, "created_at DESC")
}

func (s *IMBotService) GetByID(id uint) (*models.IMBot, error) {
	var bot models.IMBot
	if err := s.db.First(&bot, id).Error; err != nil {
		return nil, notFoundOr(err, "im bot not found")
	}
	return &bot, nil
}

func (s *IMBotService) Create(req *CreateIMBotRequest) (*models.IMBot, error) {
	bot := models.IMBot{
		Name:             req.Name,
		Type:             req.Type,
		Webhook:          req.Webhook,
		Secret:           req.Secret,
		IsActive:         req.IsActive,
		EscalationNotify: req.EscalationNotify,
		ApprovalNotify:   req.ApprovalNotify,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&bot).Error; err != nil {
			return err
		}
		// boolean columns carry db defaults; write the requested values explicitly
		return tx.Model(&bot).Updates(map[string]interface{}{
			"is_active":         req.IsActive,
			"escalation_notify": req.EscalationNotify,
			"approval_notify":   req.ApprovalNotify,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

func (s *IMBotService) Update(id uint, req *UpdateIMBotRequest) (*models.IMBot, error) {
	bot, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Type != "" {
		updates["type"] = req.Type
	}
	if req.Webhook != "" {
		updates["webhook"] = req.Webhook
	}
	if req.Secret != "" {
		updates["secret"] = req.Secret
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.EscalationNotify != nil {
		updates["escalation_notify"] = *req.EscalationNotify
	}
	if req.ApprovalNotify != nil {
		updates["approval_notify"] = *req.ApprovalNotify
	}
	if len(updates) == 0 {
		return bot, nil
	}

	if err := s.db.Model(bot).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *IMBotService) Delete(id uint) error {
	result := s.db.Delete(&models.IMBot{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return response.NewNotFound("im bot not found")
	}
	return nil
}

// Test sends a sample message through the bot's adapter.
func (s *IMBotService) Test(id uint) error {
	bot, err := s.GetByID(id)
	if err != nil {
		return err
	}
	msg := &NotificationMessage{
		Kind:   "test",
		Title:  "VTRIA ERP test notification",
		Fields: []NotificationField{{Label: "Bot", Value: bot.Name}},
	}
	if err := getAdapter(bot.Type).Send(bot, msg); err != nil {
		return response.NewBadRequest("webhook test failed: " + err.Error())
	}
	return nil
}
