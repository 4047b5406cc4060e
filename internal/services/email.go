package services

import (
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/vtria/erp/internal/config"
	"github.com/vtria/erp/pkg/logger"
)

type EmailService struct {
	configSvc *SystemConfigService
	fallback  *config.SMTPConfig
}

type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

func NewEmailService(configSvc *SystemConfigService, fallback *config.SMTPConfig) *EmailService {
	if fallback == nil {
		fallback = &config.SMTPConfig{Port: 587}
	}
	return &EmailService{configSvc: configSvc, fallback: fallback}
}

// GetConfig merges email_* system configs over the smtp file section.
func (s *EmailService) GetConfig() *EmailConfig {
	cfg := &EmailConfig{
		Enabled:  s.fallback.Host != "",
		Host:     s.fallback.Host,
		Port:     s.fallback.Port,
		Username: s.fallback.Username,
		Password: s.fallback.Password,
		From:     s.fallback.From,
		UseTLS:   s.fallback.UseTLS,
	}
	if s.configSvc != nil {
		cfg.Enabled = s.configSvc.GetBool("email_enabled", cfg.Enabled)
		if v := s.configSvc.GetWithDefault("email_host", ""); v != "" {
			cfg.Host = v
		}
		cfg.Port = s.configSvc.GetInt("email_port", cfg.Port)
		if v := s.configSvc.GetWithDefault("email_username", ""); v != "" {
			cfg.Username = v
		}
		if v := s.configSvc.GetWithDefault("email_password", ""); v != "" {
			cfg.Password = v
		}
		if v := s.configSvc.GetWithDefault("email_from", ""); v != "" {
			cfg.From = v
		}
		cfg.UseTLS = s.configSvc.GetBool("email_use_tls", cfg.UseTLS)
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return cfg
}

// SendNotification mails msg to recipients. Disabled or unconfigured email is a no-op.
func (s *EmailService) SendNotification(msg *NotificationMessage, recipients []string) error {
	cfg := s.GetConfig()
	if !cfg.Enabled || cfg.Host == "" || len(recipients) == 0 {
		return nil
	}
	subject := "[VTRIA ERP] " + msg.Title
	return s.sendEmail(cfg, recipients, subject, buildEmailBody(msg))
}

func buildEmailBody(m *NotificationMessage) string {
	var sb strings.Builder

	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(m.Title)))
	sb.WriteString("<table style=\"border-collapse: collapse; margin-bottom: 20px;\">")
	for _, f := range m.Fields {
		sb.WriteString(fmt.Sprintf("<tr><td style=\"padding: 8px; border: 1px solid #ddd; font-weight: bold;\">%s</td><td style=\"padding: 8px; border: 1px solid #ddd;\">%s</td></tr>",
			html.EscapeString(f.Label), html.EscapeString(f.Value)))
	}
	sb.WriteString("</table>")
	if m.Body != "" {
		sb.WriteString(fmt.Sprintf("<div style=\"white-space: pre-wrap;\">%s</div>", html.EscapeString(m.Body)))
	}
	sb.WriteString("<hr><p style=\"color: #888; font-size: 12px;\">VTRIA ERP</p>")
	sb.WriteString("</body></html>")
	return sb.String()
}

func (s *EmailService) sendEmail(cfg *EmailConfig, to []string, subject, body string) error {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("From: %s\r\n", from))
	message.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ",")))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	var err error
	if cfg.UseTLS {
		err = sendEmailTLS(cfg, addr, auth, from, to, message.String())
	} else {
		err = smtp.SendMail(addr, auth, from, to, []byte(message.String()))
	}
	if err != nil {
		logger.Errorf("[Email] Failed to send email: %v", err)
		return err
	}

	logger.Infof("[Email] Sent %q to %d recipients", subject, len(to))
	return nil
}

func sendEmailTLS(cfg *EmailConfig, addr string, auth smtp.Auth, from string, to []string, message string) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return err
	}
	return w.Close()
}
