package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"NewsletterHub/internal/config"
	"NewsletterHub/internal/domain"
	"NewsletterHub/internal/ports"
)

func smtpDevConfig() config.SMTPConfig {
	return config.SMTPConfig{Host: "smtp.example.com", Port: "587", From: "news@example.com"}
}

func issueItems() []domain.IssueItem {
	return []domain.IssueItem{
		{
			Article: domain.Article{Title: "First headline", URL: "https://news.example/one", Source: "technews"},
			Summary: "Summary one.",
		},
		{
			Article: domain.Article{Title: "Second headline", URL: "https://news.example/two", Source: "technews"},
			Summary: "Summary two.",
		},
	}
}

func TestRenderWithTracking(t *testing.T) {
	t.Parallel()

	r := NewRenderer("http://localhost:8000/")

	html, err := r.Render(issueItems(), []string{"tech", "ai"}, "reader@example.com", "abc123")
	if err != nil {
		t.Fatalf("render error: %v", err)
	}

	if !strings.Contains(html, "http://localhost:8000/track/open/abc123") {
		t.Fatal("tracking pixel url missing")
	}
	if !strings.Contains(html, "http://localhost:8000/track/click/abc123/1?url=") {
		t.Fatal("first click link missing")
	}
	if !strings.Contains(html, "http://localhost:8000/track/click/abc123/2?url=") {
		t.Fatal("second click link missing")
	}
	if !strings.Contains(html, "#1: First headline") || !strings.Contains(html, "#2: Second headline") {
		t.Fatal("positions not rendered in order")
	}
	if !strings.Contains(html, "tech, ai") {
		t.Fatal("interests not rendered")
	}
	if !strings.Contains(html, "/unsubscribe/reader@example.com") {
		t.Fatal("unsubscribe link missing")
	}
}

func TestRenderWithoutIdentifierDegrades(t *testing.T) {
	t.Parallel()

	r := NewRenderer("http://localhost:8000")

	html, err := r.Render(issueItems(), []string{"tech"}, "reader@example.com", "")
	if err != nil {
		t.Fatalf("render error: %v", err)
	}

	if strings.Contains(html, "/track/open/") {
		t.Fatal("pixel embedded without an identifier")
	}
	if strings.Contains(html, "/track/click/") {
		t.Fatal("click wrapping present without an identifier")
	}
	if !strings.Contains(html, `href="https://news.example/one"`) {
		t.Fatal("direct article link missing")
	}
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	r := NewRenderer("http://localhost:8000")
	text := r.RenderText(issueItems())

	if !strings.Contains(text, "#1: First headline") || !strings.Contains(text, "#2: Second headline") {
		t.Fatal("positions not rendered")
	}
	if !strings.Contains(text, "https://news.example/one") {
		t.Fatal("article url missing from text body")
	}
	if strings.Contains(text, "<") {
		t.Fatal("markup leaked into text body")
	}
}

type recordingSender struct {
	sent []ports.Message
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg ports.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestMailerGeneratesIdentifier(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	m := New(sender, nil)

	delivered, id, err := m.Send(context.Background(), ports.Message{To: "reader@example.com", Subject: "s", HTML: "<p>hi</p>"})
	if err != nil {
		t.Fatalf("send error: %v", err)
	}
	if !delivered {
		t.Fatal("expected delivered=true")
	}
	if id == "" {
		t.Fatal("expected a generated newsletter id")
	}
	if len(sender.sent) != 1 || sender.sent[0].NewsletterID != id {
		t.Fatalf("sender did not receive the generated id: %+v", sender.sent)
	}
}

func TestMailerAbsorbsTransportFailure(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{err: errors.New("connection refused")}
	m := New(sender, nil)

	delivered, id, err := m.Send(context.Background(), ports.Message{To: "reader@example.com", NewsletterID: "abc123"})
	if err != nil {
		t.Fatalf("transport failure must not surface as error, got %v", err)
	}
	if delivered {
		t.Fatal("expected delivered=false")
	}
	if id != "abc123" {
		t.Fatalf("caller-provided id must be preserved: %s", id)
	}
}

func TestSMTPSenderDevMode(t *testing.T) {
	t.Parallel()

	s := NewSMTPSender(smtpDevConfig(), nil)

	err := s.Send(context.Background(), ports.Message{To: "reader@example.com", Subject: "s", HTML: "<p>hi</p>"})
	if err != nil {
		t.Fatalf("dev mode must simulate success, got %v", err)
	}
}

func TestBuildMIMEMessageParts(t *testing.T) {
	t.Parallel()

	body := buildMIMEMessage("news@example.com", ports.Message{
		To:      "reader@example.com",
		Subject: "Your Tech News Digest",
		HTML:    "<p>hi</p>",
		Text:    "hi",
	})

	if !strings.Contains(body, "Content-Type: multipart/alternative") {
		t.Fatal("missing multipart header")
	}
	if !strings.Contains(body, "text/plain") || !strings.Contains(body, "text/html") {
		t.Fatal("missing alternative parts")
	}
	if !strings.Contains(body, "To: reader@example.com") {
		t.Fatal("missing recipient header")
	}
}
