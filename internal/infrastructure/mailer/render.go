package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"NewsletterHub/internal/domain"
)

// newsletterTemplate is the single HTML document sent to subscribers. The
// pixel block is omitted entirely when no newsletter id was supplied.
const newsletterTemplate = `<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background: #4F46E5; color: white; padding: 20px; text-align: center; }
  .article { margin: 20px 0; padding: 15px; border-left: 4px solid #4F46E5; background: #f9f9f9; }
  .title { font-size: 18px; font-weight: bold; color: #1F2937; }
  .summary { margin: 10px 0; color: #4B5563; }
  .read-more { color: #4F46E5; text-decoration: none; }
  .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #E5E7EB; color: #6B7280; font-size: 12px; text-align: center; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Your Personalized Newsletter</h1>
    <p>Curated based on your interests: {{.Interests}}</p>
  </div>
{{range .Items}}  <div class="article">
    <div class="title">#{{.Position}}: {{.Title}}</div>
    <div class="summary">{{.Summary}}</div>
    <a href="{{.LinkURL}}" class="read-more">Read full article &rarr;</a>
  </div>
{{end}}  <div class="footer">
    <p>You received this email because you subscribed to our newsletter.</p>
    <p><a href="{{.UnsubscribeURL}}">Unsubscribe</a></p>
  </div>
</div>
{{if .PixelURL}}<img src="{{.PixelURL}}" width="1" height="1" alt="" style="display:none">
{{end}}</body>
</html>
`

var newsletterTmpl = template.Must(template.New("newsletter").Parse(newsletterTemplate))

// Renderer produces the newsletter HTML document with tracking URLs rooted at
// the service base URL.
type Renderer struct {
	baseURL string
}

// NewRenderer trims any trailing slash so URL joining stays predictable.
func NewRenderer(baseURL string) *Renderer {
	return &Renderer{baseURL: strings.TrimRight(baseURL, "/")}
}

type renderItem struct {
	Position int
	Title    string
	Summary  string
	LinkURL  string
}

type renderData struct {
	Interests      string
	Items          []renderItem
	PixelURL       string
	UnsubscribeURL string
}

// Render builds the HTML body for one issue. With an empty newsletterID the
// document still renders: links point straight at the articles and no
// tracking pixel is embedded.
func (r *Renderer) Render(items []domain.IssueItem, interests []string, email, newsletterID string) (string, error) {
	data := renderData{
		Interests:      strings.Join(interests, ", "),
		UnsubscribeURL: fmt.Sprintf("%s/unsubscribe/%s", r.baseURL, url.PathEscape(email)),
	}

	if newsletterID != "" {
		data.PixelURL = fmt.Sprintf("%s/track/open/%s", r.baseURL, url.PathEscape(newsletterID))
	}

	for i, item := range items {
		position := i + 1
		link := item.Article.URL
		if newsletterID != "" {
			link = fmt.Sprintf("%s/track/click/%s/%d?url=%s",
				r.baseURL, url.PathEscape(newsletterID), position, url.QueryEscape(item.Article.URL))
		}
		data.Items = append(data.Items, renderItem{
			Position: position,
			Title:    item.Article.Title,
			Summary:  item.Summary,
			LinkURL:  link,
		})
	}

	var buf bytes.Buffer
	if err := newsletterTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render newsletter: %w", err)
	}

	return buf.String(), nil
}

// RenderText produces the plain-text alternative for clients that refuse
// HTML. No tracking links here, just the articles.
func (r *Renderer) RenderText(items []domain.IssueItem) string {
	var b strings.Builder
	b.WriteString("Your Personalized Newsletter\n\n")
	for i, item := range items {
		fmt.Fprintf(&b, "#%d: %s\n%s\n%s\n\n", i+1, item.Article.Title, item.Summary, item.Article.URL)
	}
	return b.String()
}
