package mailer

import (
	"context"

	"NewsletterHub/internal/ports"
)

// Sender is the raw transport behind the Mailer. Implementations return an
// error only for actual delivery failures; configuration-less development
// mode is a successful simulated send.
type Sender interface {
	Send(ctx context.Context, msg ports.Message) error
}
