package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsletterHub/internal/domain"
	"NewsletterHub/internal/scanner"
)

// Headlines shorter than this are navigation items, not articles.
const minTitleLength = 20

// HeadlineScanner extracts article headlines from news landing pages by
// walking heading tags with anchors. It is intentionally selector-agnostic so
// it works across most news sites without per-site configuration.
type HeadlineScanner struct {
	client *http.Client
}

var _ scanner.Scanner = (*HeadlineScanner)(nil)

// NewHeadlineScanner wires an HTTP client with a bounded timeout.
func NewHeadlineScanner(client *http.Client) *HeadlineScanner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HeadlineScanner{client: client}
}

// Name identifies the strategy inside the registry.
func (h *HeadlineScanner) Name() string {
	return "headline"
}

// Scan fetches the site front page and returns up to req.Max articles.
func (h *HeadlineScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("no url provided for site %s", req.SiteName)
	}

	doc, err := h.fetchDocument(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", req.SiteName, err)
	}

	return extractHeadlines(doc, req), nil
}

func (h *HeadlineScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsletterHub/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("site returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractHeadlines(doc *goquery.Document, req scanner.Request) []domain.Article {
	max := req.Max
	if max <= 0 {
		max = 5
	}

	collected := make([]domain.Article, 0, max)
	seen := map[string]struct{}{}

	doc.Find("h2, h3, h4").EachWithBreak(func(i int, heading *goquery.Selection) bool {
		title := strings.TrimSpace(heading.Text())
		if len(title) < minTitleLength {
			return true
		}

		link := heading.Find("a").First()
		href, exists := link.Attr("href")
		if !exists {
			// Some layouts wrap the heading in the anchor instead.
			href, exists = heading.Closest("a").Attr("href")
		}
		if !exists || href == "" {
			return true
		}

		articleURL := resolveURL(req.URL, href)
		if articleURL == "" {
			return true
		}
		if _, ok := seen[articleURL]; ok {
			return true
		}
		seen[articleURL] = struct{}{}

		collected = append(collected, domain.Article{
			Title:  title,
			URL:    articleURL,
			Source: req.SiteName,
		})

		return len(collected) < max
	})

	return collected
}

func resolveURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	return parsed.ResolveReference(ref).String()
}
