package report

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"gedusentinel/lib/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("services/monitor/report")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type MailerOptions struct {
	Smtp       SmtpConfig
	SenderName string
	To         []string
	Cc         []string
}

// Mailer delivers rendered reports over SMTP.
type Mailer struct {
	options MailerOptions
}

func NewMailer(options MailerOptions) Mailer {
	return Mailer{options: options}
}

func (m Mailer) Deliver(ctx context.Context, subject, html string) error {
	ctx, span := tracer.Start(ctx, "mailer:Deliver")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("%s <%s>", m.options.SenderName, m.options.Smtp.EmailAddress)
	mail.To = m.options.To
	mail.Cc = m.options.Cc
	mail.Subject = subject
	mail.HTML = []byte(html)

	addr := fmt.Sprintf("%s:%d", m.options.Smtp.Server, m.options.Smtp.Port)
	err := mail.Send(addr, smtp.PlainAuth(
		"",
		m.options.Smtp.EmailAddress,
		m.options.Smtp.Password,
		m.options.Smtp.Server,
	))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}

	slog.InfoContext(ctx, "sent report email", "to", m.options.To, "subject", subject)
	return nil
}

// SendTest pushes a canned message through the sink so a fresh SMTP
// configuration can be verified without waiting for a schedule change.
func (m Mailer) SendTest(ctx context.Context) error {
	return m.Deliver(ctx, "Sentinel test message", "<strong>it works</strong>")
}
