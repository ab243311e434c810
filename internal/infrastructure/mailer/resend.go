package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v3"

	"NewsletterHub/internal/config"
	"NewsletterHub/internal/ports"
)

// ResendSender delivers via the Resend API (production transport).
type ResendSender struct {
	client *resend.Client
	from   string
}

var _ Sender = (*ResendSender)(nil)

// NewResendSender builds a Resend-backed transport.
func NewResendSender(cfg config.ResendConfig) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(cfg.APIKey),
		from:   cfg.From,
	}
}

// Send submits the rendered message through the Resend API.
func (s *ResendSender) Send(ctx context.Context, msg ports.Message) error {
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Tags: []resend.Tag{
			{Name: "newsletter_id", Value: msg.NewsletterID},
		},
	}

	if _, err := s.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend send to %s: %w", msg.To, err)
	}

	return nil
}
