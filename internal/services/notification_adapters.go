package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vtria/erp/internal/models"
	"github.com/vtria/erp/pkg/logger"
)

// NotificationField is one label/value row of a message.
type NotificationField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// NotificationMessage is the platform-neutral content handed to adapters.
type NotificationMessage struct {
	Kind   string              `json:"kind"` // escalation, approval
	Title  string              `json:"title"`
	Fields []NotificationField `json:"fields"`
	Body   string              `json:"body,omitempty"`
}

// Markdown renders the message for bots that accept markdown.
func (m *NotificationMessage) Markdown() string {
	var sb strings.Builder
	icon := "📋"
	if m.Kind == "escalation" {
		icon = "🚨"
	}
	fmt.Fprintf(&sb, "%s **%s**\n\n", icon, m.Title)
	for _, f := range m.Fields {
		fmt.Fprintf(&sb, "**%s**: %s\n", f.Label, f.Value)
	}
	if m.Body != "" {
		sb.WriteString("\n---\n")
		sb.WriteString(m.Body)
	}
	return sb.String()
}

// PlainText drops markdown emphasis.
func (m *NotificationMessage) PlainText() string {
	return strings.ReplaceAll(m.Markdown(), "**", "")
}

// NotificationAdapter sends a message to one IM platform, handling its
// payload format and signing.
type NotificationAdapter interface {
	Send(bot *models.IMBot, msg *NotificationMessage) error
}

func getAdapter(botType string) NotificationAdapter {
	switch botType {
	case "wechat_work":
		return &wecomAdapter{}
	case "dingtalk":
		return &dingtalkAdapter{}
	case "feishu":
		return &feishuAdapter{}
	case "slack":
		return &slackAdapter{}
	default:
		return &genericAdapter{}
	}
}

var notificationHTTPClient = &http.Client{Timeout: 10 * time.Second}

func postJSONWithClient(client *http.Client, webhookURL string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	logger.Debug().Int("status", resp.StatusCode).Int("payload_len", len(body)).Msg("webhook delivered")

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var parts []string
	remaining := msg
	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			parts = append(parts, remaining)
			break
		}

		chunk := remaining[:maxLen]
		breakPoint := maxLen
		for i := len(chunk) - 1; i > maxLen/2; i-- {
			if chunk[i] == '\n' {
				breakPoint = i + 1
				break
			}
		}

		parts = append(parts, remaining[:breakPoint])
		remaining = remaining[breakPoint:]
	}
	return parts
}

func dingTalkSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func feishuSign(timestamp int64, secret string) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, secret)
	h := hmac.New(sha256.New, []byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func dingTalkWebhookURL(webhook, secret string) string {
	if secret == "" {
		return webhook
	}
	timestamp := time.Now().UnixMilli()
	sign := dingTalkSign(timestamp, secret)
	sep := "&"
	if !strings.Contains(webhook, "?") {
		sep = "?"
	}
	return fmt.Sprintf("%s%stimestamp=%d&sign=%s", webhook, sep, timestamp, url.QueryEscape(sign))
}

// wecomAdapter handles WeCom (Enterprise WeChat) bots
type wecomAdapter struct{}

func (a *wecomAdapter) Send(bot *models.IMBot, msg *NotificationMessage) error {
	parts := splitMessage(msg.Markdown(), 4000)
	for i, part := range parts {
		content := part
		if len(parts) > 1 {
			content = fmt.Sprintf("**[%d/%d]**\n\n%s", i+1, len(parts), part)
		}
		payload := map[string]interface{}{
			"msgtype":  "markdown",
			"markdown": map[string]string{"content": content},
		}
		if err := postJSONWithClient(notificationHTTPClient, bot.Webhook, payload); err != nil {
			return err
		}
	}
	return nil
}

// dingtalkAdapter handles DingTalk bots
type dingtalkAdapter struct{}

func (a *dingtalkAdapter) Send(bot *models.IMBot, msg *NotificationMessage) error {
	webhookURL := dingTalkWebhookURL(bot.Webhook, bot.Secret)
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": msg.Title,
			"text":  msg.Markdown(),
		},
	}
	return postJSONWithClient(notificationHTTPClient, webhookURL, payload)
}

// feishuAdapter handles Feishu (Lark) bots
type feishuAdapter struct{}

func (a *feishuAdapter) Send(bot *models.IMBot, msg *NotificationMessage) error {
	payload := map[string]interface{}{
		"msg_type": "text",
		"content":  map[string]string{"text": msg.PlainText()},
	}
	if bot.Secret != "" {
		timestamp := time.Now().Unix()
		payload["timestamp"] = fmt.Sprintf("%d", timestamp)
		payload["sign"] = feishuSign(timestamp, bot.Secret)
	}
	return postJSONWithClient(notificationHTTPClient, bot.Webhook, payload)
}

// slackAdapter handles Slack incoming webhooks
type slackAdapter struct{}

func (a *slackAdapter) Send(bot *models.IMBot, msg *NotificationMessage) error {
	var lines []string
	for _, f := range msg.Fields {
		lines = append(lines, fmt.Sprintf("*%s*: %s", f.Label, f.Value))
	}
	header := fmt.Sprintf("*%s*", msg.Title)
	if msg.Kind == "escalation" {
		header = ":rotating_light: " + header
	}

	blocks := []map[string]interface{}{
		{"type": "section", "text": map[string]string{"type": "mrkdwn", "text": header}},
		{"type": "section", "text": map[string]string{"type": "mrkdwn", "text": strings.Join(lines, "\n")}},
	}
	if msg.Body != "" {
		blocks = append(blocks, map[string]interface{}{
			"type": "section", "text": map[string]string{"type": "mrkdwn", "text": msg.Body},
		})
	}
	payload := map[string]interface{}{
		"text":   msg.Title,
		"blocks": blocks,
	}
	return postJSONWithClient(notificationHTTPClient, bot.Webhook, payload)
}

// genericAdapter posts the structured message as-is
type genericAdapter struct{}

func (a *genericAdapter) Send(bot *models.IMBot, msg *NotificationMessage) error {
	return postJSONWithClient(notificationHTTPClient, bot.Webhook, msg)
}
