package ports

import (
	"context"
	"time"

	"NewsletterHub/internal/domain"
)

// ArticleSource pulls candidate articles for a single topic. Implementations
// are best-effort: upstream failures yield an empty list rather than an error
// that aborts the caller.
type ArticleSource interface {
	FetchTopic(ctx context.Context, topic string, max int) ([]domain.Article, error)
}

// Summarizer turns an article into a short blurb and adapts a blurb to a
// subscriber's interests.
type Summarizer interface {
	Summarize(ctx context.Context, article domain.Article) (string, error)
	Personalize(ctx context.Context, summary string, interests []string) (string, error)
}

// Message is a fully rendered email ready for a transport.
type Message struct {
	To           string
	Subject      string
	HTML         string
	Text         string
	NewsletterID string
}

// Mailer delivers one message. A transport failure comes back as
// delivered=false with a nil error; the newsletter id actually used is always
// returned (generated when the caller left it empty).
type Mailer interface {
	Send(ctx context.Context, msg Message) (delivered bool, newsletterID string, err error)
}

// SubscriberStore persists subscribers. Records are soft-deactivated, never
// deleted.
type SubscriberStore interface {
	Create(ctx context.Context, email string, interests []string) (domain.Subscriber, error)
	GetByEmail(ctx context.Context, email string) (domain.Subscriber, error)
	ListActive(ctx context.Context) ([]domain.Subscriber, error)
	Deactivate(ctx context.Context, email string) error
}

// DeliveryStore persists delivery records and applies tracking mutations.
// RecordOpen and RecordClick must be atomic per record and must no-op (nil
// error) when the newsletter id is unknown.
type DeliveryStore interface {
	Create(ctx context.Context, d domain.Delivery) error
	Get(ctx context.Context, newsletterID string) (domain.Delivery, error)
	List(ctx context.Context) ([]domain.Delivery, error)
	RecordOpen(ctx context.Context, newsletterID string) error
	RecordClick(ctx context.Context, newsletterID string, position int) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
