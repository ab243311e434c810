package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"NewsletterHub/internal/config"
	"NewsletterHub/internal/domain"
	"NewsletterHub/internal/ports"
	"NewsletterHub/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
// Scraping is best-effort telemetry for the pipeline: a failing site
// contributes nothing instead of failing the fetch.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchTopic scans every configured site serving the topic and concatenates
// results up to max. An unknown topic or all-failing sites yield an empty
// list and a nil error.
func (s *StrategySource) FetchTopic(ctx context.Context, topic string, max int) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	if max <= 0 {
		return nil, nil
	}

	topic = strings.ToLower(strings.TrimSpace(topic))
	s.debug("fetch topic", "topic", topic, "max", max)

	var aggregated []domain.Article
	for _, site := range s.sites {
		if !servesTopic(site, topic) {
			continue
		}
		if len(aggregated) >= max {
			break
		}

		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			s.warn("unresolvable scanner", "site", site.Name, "scanner", site.Scanner, "error", err)
			continue
		}

		req := scanner.Request{
			SiteName: site.Name,
			URL:      site.URL,
			Topic:    topic,
			Max:      max - len(aggregated),
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			s.warn("scan failed", "site", site.Name, "error", err)
			continue
		}

		s.debug("site produced articles", "site", site.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	if len(aggregated) > max {
		aggregated = aggregated[:max]
	}

	s.debug("strategy source done", "topic", topic, "total_articles", len(aggregated))
	return aggregated, nil
}

func servesTopic(site config.SiteConfig, topic string) bool {
	for _, t := range site.Topics {
		if strings.EqualFold(strings.TrimSpace(t), topic) {
			return true
		}
	}
	return false
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
