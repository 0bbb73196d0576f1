package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Email is one outgoing message handed to a delivery provider
type Email struct {
	FromName  string
	FromEmail string `validate:"required,email"`
	To        string `validate:"required,email"`
	ReplyTo   string `validate:"omitempty,email"`
	Subject   string `validate:"max=998"`
	HTML      string
}

// Mailer delivers an email and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, email Email) (string, error)
}

// MailerConfig selects and configures the delivery provider
type MailerConfig struct {
	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
}

// NewMailer returns SendGrid when an API key is set, SMTP when a host is
// set, and a console mailer otherwise.
func NewMailer(cfg MailerConfig) Mailer {
	switch {
	case cfg.SendGridAPIKey != "":
		logrus.Info("✅ Email delivery via SendGrid")
		return NewSendGridMailer(cfg.SendGridAPIKey)
	case cfg.SMTPHost != "":
		logrus.WithField("smtp_host", cfg.SMTPHost).Info("✅ Email delivery via SMTP")
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	default:
		logrus.Warn("⚠️  Email delivery in console-only mode (set SENDGRID_API_KEY or SMTP_HOST)")
		return &ConsoleMailer{}
	}
}

// SendGridMailer sends through the SendGrid v3 API
type SendGridMailer struct {
	client *sendgrid.Client
}

func NewSendGridMailer(apiKey string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey)}
}

func (m *SendGridMailer) Send(ctx context.Context, email Email) (string, error) {
	if err := ValidateStruct(email); err != nil {
		return "", fmt.Errorf("invalid email: %w", err)
	}

	from := mail.NewEmail(email.FromName, email.FromEmail)
	to := mail.NewEmail("", email.To)
	message := mail.NewSingleEmail(from, email.Subject, to, "", email.HTML)
	if email.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", email.ReplyTo))
	}

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return "", fmt.Errorf("sendgrid returned error status %d: %s", response.StatusCode, response.Body)
	}

	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 && ids[0] != "" {
		return ids[0], nil
	}
	return uuid.New().String(), nil
}

// SMTPMailer sends through a plain SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
}

func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	dialer := gomail.NewDialer(host, port, username, password)
	dialer.TLSConfig = &tls.Config{ServerName: host}
	return &SMTPMailer{dialer: dialer}
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) (string, error) {
	if err := ValidateStruct(email); err != nil {
		return "", fmt.Errorf("invalid email: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), domainOf(email.FromEmail))

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", email.FromEmail, email.FromName)
	msg.SetHeader("To", email.To)
	if email.ReplyTo != "" {
		msg.SetHeader("Reply-To", email.ReplyTo)
	}
	msg.SetHeader("Subject", email.Subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody("text/html", email.HTML)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("send failed: %w", err)
	}
	return messageID, nil
}

// ConsoleMailer logs emails instead of sending them (development mode)
type ConsoleMailer struct{}

func (m *ConsoleMailer) Send(ctx context.Context, email Email) (string, error) {
	if err := ValidateStruct(email); err != nil {
		return "", fmt.Errorf("invalid email: %w", err)
	}
	messageID := uuid.New().String()
	logrus.WithFields(logrus.Fields{
		"to":         email.To,
		"from":       email.FromEmail,
		"reply_to":   email.ReplyTo,
		"subject":    email.Subject,
		"message_id": messageID,
	}).Info("📧 Email NOT sent (development mode)")
	return messageID, nil
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		return address[i+1:]
	}
	return "localhost"
}
