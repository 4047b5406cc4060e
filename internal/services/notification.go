package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/logger"
	"gorm.io/gorm"
)

// NotificationService delivers queued notification tasks by email and to
// the active IM bots subscribed to that kind of event.
type NotificationService struct {
	db    *gorm.DB
	email *EmailService
}

func NewNotificationService(db *gorm.DB, email *EmailService) *NotificationService {
	return &NotificationService{db: db, email: email}
}

// ProcessTask is the TaskProcessor for both the sync queue and the worker.
// Delivery failures on one channel do not stop the others.
func (s *NotificationService) ProcessTask(ctx context.Context, task *NotificationTask) error {
	msg := BuildNotificationMessage(task)

	var errs []error
	if s.email != nil {
		if recipients := s.recipientEmails(task.RecipientIDs); len(recipients) > 0 {
			if err := s.email.SendNotification(msg, recipients); err != nil {
				errs = append(errs, fmt.Errorf("email: %w", err))
			}
		}
	}

	bots, err := s.subscribedBots(task.Type)
	if err != nil {
		errs = append(errs, err)
	}
	for i := range bots {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		bot := &bots[i]
		if err := getAdapter(bot.Type).Send(bot, msg); err != nil {
			logger.Warn().Err(err).Str("bot", bot.Name).Msg("IM notification failed")
			errs = append(errs, fmt.Errorf("bot %s: %w", bot.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *NotificationService) subscribedBots(taskType string) ([]models.IMBot, error) {
	query := s.db.Where("is_active = ?", true)
	switch taskType {
	case TaskTypeNotifyEscalation:
		query = query.Where("escalation_notify = ?", true)
	case TaskTypeNotifyApproval:
		query = query.Where("approval_notify = ?", true)
	default:
		return nil, nil
	}
	var bots []models.IMBot
	err := query.Find(&bots).Error
	return bots, err
}

func (s *NotificationService) recipientEmails(ids []uint) []string {
	if len(ids) == 0 {
		return nil
	}
	var users []models.User
	s.db.Select("email").Where("id IN ? AND is_active = ? AND email <> ''", ids, true).Find(&users)
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails
}

// BuildNotificationMessage renders a task into a platform-neutral message.
func BuildNotificationMessage(task *NotificationTask) *NotificationMessage {
	switch task.Type {
	case TaskTypeNotifyEscalation:
		msg := &NotificationMessage{
			Kind:  "escalation",
			Title: fmt.Sprintf("SLA breach: %s escalated to level %d", task.CaseNumber, task.Level),
			Fields: []NotificationField{
				{Label: "Case", Value: task.CaseNumber},
				{Label: "Title", Value: task.Title},
				{Label: "State", Value: task.State},
				{Label: "Escalation level", Value: fmt.Sprintf("%d", task.Level)},
			},
		}
		if task.OverdueBy != "" {
			msg.Fields = append(msg.Fields, NotificationField{Label: "Overdue by", Value: task.OverdueBy})
		}
		return msg
	case TaskTypeNotifyApproval:
		msg := &NotificationMessage{
			Kind:  "approval",
			Title: fmt.Sprintf("Approval requested: %s #%d", task.EntityType, task.EntityID),
			Fields: []NotificationField{
				{Label: "Request", Value: fmt.Sprintf("#%d", task.ApprovalID)},
				{Label: "Type", Value: task.EntityType},
				{Label: "Requested by", Value: task.RequestedBy},
			},
			Body: task.Summary,
		}
		if task.CaseNumber != "" {
			msg.Fields = append(msg.Fields, NotificationField{Label: "Case", Value: task.CaseNumber})
		}
		return msg
	default:
		return &NotificationMessage{Kind: task.Type, Title: task.Summary}
	}
}
