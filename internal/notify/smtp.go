// Package notify implements the notification transport behind the alert
// dispatcher. The SMTP sender mirrors the platform's email delivery setup.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	To       []string
}

// SMTPNotifier delivers alert messages over SMTP with STARTTLS.
type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

// Send delivers one message and returns its message id. The underlying SMTP
// client has no cancellation hook, so ctx only bounds the caller's intent;
// a hung transport call is a known operational gap.
func (n *SMTPNotifier) Send(ctx context.Context, subject, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(n.cfg.To) == 0 {
		return "", fmt.Errorf("no alert recipients configured")
	}

	msgID := fmt.Sprintf("<%s@agrosense>", uuid.New().String())

	e := email.NewEmail()
	e.From = fmt.Sprintf("%s <%s>", n.cfg.FromName, n.cfg.From)
	e.To = n.cfg.To
	e.Subject = subject
	e.Text = []byte(body)
	e.Headers.Set("Message-Id", msgID)

	addr := fmt.Sprintf("%s:%s", n.cfg.Host, n.cfg.Port)
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)

	err := e.SendWithStartTLS(addr, auth, &tls.Config{ServerName: n.cfg.Host})
	if err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return msgID, nil
}
