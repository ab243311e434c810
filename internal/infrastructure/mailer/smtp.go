package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"

	"NewsletterHub/internal/config"
	"NewsletterHub/internal/ports"
)

// SMTPSender delivers via plain SMTP with STARTTLS-capable PLAIN auth. With
// no credentials configured it logs what would have been sent and reports
// success, so development flows work without a mail account.
type SMTPSender struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender wires the SMTP transport from configuration.
func NewSMTPSender(cfg config.SMTPConfig, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger}
}

// Send builds a multipart/alternative message and submits it. Dev mode
// (missing credentials) short-circuits with a log line.
func (s *SMTPSender) Send(ctx context.Context, msg ports.Message) error {
	body := buildMIMEMessage(s.cfg.From, msg)

	if s.cfg.Username == "" || s.cfg.Password == "" {
		if s.logger != nil {
			s.logger.Info("smtp credentials not configured, simulating send",
				"to", msg.To, "subject", msg.Subject, "newsletter_id", msg.NewsletterID)
		}
		return nil
	}

	addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, []byte(body)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}

	return nil
}

// buildMIMEMessage assembles a multipart/alternative document with an
// optional plain-text part ahead of the HTML part.
func buildMIMEMessage(from string, msg ports.Message) string {
	const boundary = "newsletterhub-alt"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	if msg.Text != "" {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Text)
		b.WriteString("\r\n")
	}

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(msg.HTML)
	fmt.Fprintf(&b, "\r\n--%s--\r\n", boundary)

	return b.String()
}
