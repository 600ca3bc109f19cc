package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// Email is an outgoing plain-text message
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends email
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// LogMailer writes emails to the log instead of sending them
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Email) error {
	m.Logger.Info("Email (not sent, no SMTP host configured)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}

// SMTPMailer sends through an SMTP relay with PLAIN auth
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) Send(ctx context.Context, msg Email) error {
	addr := m.Host + ":" + strconv.Itoa(m.Port)

	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(addr, auth, m.From, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// EmailHandler delivers SEND_EMAIL jobs through a Mailer
type EmailHandler struct {
	mailer Mailer
	logger *slog.Logger
}

func (h *EmailHandler) HandleSend(ctx context.Context, job *domain.Job) error {
	p, err := decode[*domain.SendEmailPayload](job)
	if err != nil {
		return err
	}
	if p.To == "" || strings.ContainsAny(p.To, "\r\n") {
		return domain.NewPermanentError(fmt.Errorf("%w: invalid recipient", domain.ErrInvalidPayload))
	}
	if strings.ContainsAny(p.Subject, "\r\n") {
		return domain.NewPermanentError(fmt.Errorf("%w: invalid subject", domain.ErrInvalidPayload))
	}

	return h.mailer.Send(ctx, Email{To: p.To, Subject: p.Subject, Body: p.Body})
}
