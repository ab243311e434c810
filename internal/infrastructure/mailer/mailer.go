package mailer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"NewsletterHub/internal/ports"
)

// Mailer composes a transport with id generation and the
// failure-is-a-boolean delivery contract the pipeline relies on.
type Mailer struct {
	sender Sender
	logger *slog.Logger
}

var _ ports.Mailer = (*Mailer)(nil)

// New wires a transport into the Mailer.
func New(sender Sender, logger *slog.Logger) *Mailer {
	return &Mailer{sender: sender, logger: logger}
}

// NewNewsletterID mints the short unique token embedded in tracking URLs.
func NewNewsletterID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Send delivers one message, generating a newsletter id when the caller left
// it empty. Transport failures are logged and reported as delivered=false;
// they are never an error.
func (m *Mailer) Send(ctx context.Context, msg ports.Message) (bool, string, error) {
	if msg.NewsletterID == "" {
		msg.NewsletterID = NewNewsletterID()
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		if m.logger != nil {
			m.logger.Error("delivery failed", "to", msg.To, "newsletter_id", msg.NewsletterID, "error", err)
		}
		return false, msg.NewsletterID, nil
	}

	return true, msg.NewsletterID, nil
}
