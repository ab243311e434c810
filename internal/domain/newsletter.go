package domain

import "time"

// Subscriber is a newsletter recipient. Interests are kept as a slice in
// memory; comma-joining happens only at the storage boundary.
type Subscriber struct {
	ID        int64
	Email     string
	Interests []string
	Active    bool
	CreatedAt time.Time
}

// Article is an ephemeral candidate produced by a source per request.
// It is never persisted.
type Article struct {
	Title  string
	URL    string
	Source string
}

// IssueItem pairs an article with its personalized summary inside one issue.
type IssueItem struct {
	Article Article
	Summary string
}

// Delivery records a single sent newsletter and its engagement counters.
// One row per successful send attempt, mutated only by tracking hits.
type Delivery struct {
	NewsletterID    string     `json:"newsletter_id"`
	Email           string     `json:"email"`
	SentAt          time.Time  `json:"sent_at"`
	Opened          bool       `json:"opened"`
	OpenCount       int        `json:"open_count"`
	FirstOpenedAt   *time.Time `json:"first_opened_at,omitempty"`
	Clicked         bool       `json:"clicked"`
	ClickCount      int        `json:"click_count"`
	LastClickedAt   *time.Time `json:"last_clicked_at,omitempty"`
	ClickedArticles []int      `json:"clicked_articles"`
}

// DeliveryStats aggregates engagement across all deliveries.
// Rates are percentages rounded to one decimal.
type DeliveryStats struct {
	TotalSent int     `json:"total_sent"`
	Opened    int     `json:"opened"`
	Clicked   int     `json:"clicked"`
	OpenRate  float64 `json:"open_rate"`
	ClickRate float64 `json:"click_rate"`
	CTOR      float64 `json:"ctor"`
}
