package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsletterHub/internal/config"
	"NewsletterHub/internal/domain"
	"NewsletterHub/internal/infrastructure/mailer"
	"NewsletterHub/internal/metrics"
	"NewsletterHub/internal/ports"
)

// Renderer turns a personalized issue into email bodies.
type Renderer interface {
	Render(items []domain.IssueItem, interests []string, email, newsletterID string) (string, error)
	RenderText(items []domain.IssueItem) string
}

// PipelineDeps wires all driven adapters into the newsletter pipeline.
type PipelineDeps struct {
	Subscribers ports.SubscriberStore
	Deliveries  ports.DeliveryStore
	Source      ports.ArticleSource
	Summarizer  ports.Summarizer
	Mailer      ports.Mailer
	Renderer    Renderer
	Limits      config.PipelineConfig
	Logger      *slog.Logger
}

// Pipeline builds and delivers one personalized newsletter issue per active
// subscriber. Per-subscriber failures are logged and never abort the run.
type Pipeline struct {
	subscribers ports.SubscriberStore
	deliveries  ports.DeliveryStore
	source      ports.ArticleSource
	summarizer  ports.Summarizer
	mailer      ports.Mailer
	renderer    Renderer
	limits      config.PipelineConfig
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		subscribers: deps.Subscribers,
		deliveries:  deps.Deliveries,
		source:      deps.Source,
		summarizer:  deps.Summarizer,
		mailer:      deps.Mailer,
		renderer:    deps.Renderer,
		limits:      deps.Limits,
		logger:      deps.Logger,
	}
}

// Run executes one full send cycle and returns the number of subscribers a
// send was attempted for. A nil error does not mean every send succeeded.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	metrics.PipelineRuns.Inc()

	subscribers, err := p.subscribers.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active subscribers: %w", err)
	}

	p.logger.Info("pipeline run started", "subscribers", len(subscribers))

	processed := 0
	for _, sub := range subscribers {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		if p.processSubscriber(ctx, sub) {
			processed++
		}

		if pause := p.limits.Pause(); pause > 0 {
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return processed, ctx.Err()
			}
		}
	}

	p.logger.Info("pipeline run finished", "processed", processed)

	return processed, nil
}

// processSubscriber builds and sends one issue. Returns true when a send was
// attempted for this subscriber.
func (p *Pipeline) processSubscriber(ctx context.Context, sub domain.Subscriber) bool {
	interests := normalizeInterests(sub.Interests)
	if len(interests) == 0 {
		p.logger.Debug("skipping subscriber without interests", "email", sub.Email)
		return false
	}

	articles := p.collectArticles(ctx, interests)
	if len(articles) == 0 {
		p.logger.Warn("no articles found for subscriber", "email", sub.Email, "interests", interests)
		return false
	}
	if len(articles) > p.limits.MaxArticlesPerIssue {
		articles = articles[:p.limits.MaxArticlesPerIssue]
	}

	newsletterID := mailer.NewNewsletterID()
	items := p.summarizeArticles(ctx, articles, interests)

	html, err := p.renderer.Render(items, interests, sub.Email, newsletterID)
	if err != nil {
		p.logger.Error("render issue", "email", sub.Email, "error", err)
		return false
	}

	msg := ports.Message{
		To:           sub.Email,
		Subject:      fmt.Sprintf("Your %s Digest", strings.Join(interests, " & ")),
		HTML:         html,
		Text:         p.renderer.RenderText(items),
		NewsletterID: newsletterID,
	}

	delivered, newsletterID, err := p.mailer.Send(ctx, msg)
	if err != nil {
		p.logger.Error("send issue", "email", sub.Email, "error", err)
		return false
	}
	if delivered {
		metrics.NewslettersSent.Inc()
	}

	record := domain.Delivery{
		NewsletterID:    newsletterID,
		Email:           sub.Email,
		SentAt:          time.Now(),
		ClickedArticles: []int{},
	}
	if err := p.deliveries.Create(ctx, record); err != nil {
		p.logger.Error("persist delivery record", "newsletter_id", newsletterID, "error", err)
	}

	p.logger.Info("issue processed",
		"email", sub.Email,
		"newsletter_id", newsletterID,
		"articles", len(items),
		"delivered", delivered)

	return true
}

// collectArticles fetches candidates for the leading interests. Source
// failures for one interest are absorbed so remaining interests still
// contribute.
func (p *Pipeline) collectArticles(ctx context.Context, interests []string) []domain.Article {
	topics := interests
	if len(topics) > p.limits.MaxInterests {
		topics = topics[:p.limits.MaxInterests]
	}

	var articles []domain.Article
	for _, topic := range topics {
		found, err := p.source.FetchTopic(ctx, topic, p.limits.ArticlesPerInterest)
		if err != nil {
			p.logger.Warn("fetch topic", "topic", topic, "error", err)
			continue
		}
		articles = append(articles, found...)
	}

	return articles
}

// summarizeArticles produces a personalized blurb per article. When the
// summarizer fails for one article, that article keeps a plain blurb and the
// issue still goes out.
func (p *Pipeline) summarizeArticles(ctx context.Context, articles []domain.Article, interests []string) []domain.IssueItem {
	items := make([]domain.IssueItem, 0, len(articles))
	for _, article := range articles {
		blurb, err := p.summarizer.Summarize(ctx, article)
		if err == nil {
			blurb, err = p.summarizer.Personalize(ctx, blurb, interests)
		}
		if err != nil {
			p.logger.Warn("summarize article", "url", article.URL, "error", err)
			blurb = fmt.Sprintf("Read the full story: %s", article.Title)
		}

		items = append(items, domain.IssueItem{Article: article, Summary: blurb})
	}

	return items
}

func normalizeInterests(interests []string) []string {
	normalized := make([]string, 0, len(interests))
	for _, interest := range interests {
		interest = strings.TrimSpace(interest)
		if interest != "" {
			normalized = append(normalized, interest)
		}
	}
	return normalized
}
