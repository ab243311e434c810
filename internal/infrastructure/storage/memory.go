package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"NewsletterHub/internal/domain"
	"NewsletterHub/internal/ports"
)

// MemorySubscribers is an in-process SubscriberStore used when no database
// DSN is configured and in tests. Semantics mirror the Postgres store.
type MemorySubscribers struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]domain.Subscriber
}

var _ ports.SubscriberStore = (*MemorySubscribers)(nil)

// NewMemorySubscribers returns an empty in-memory subscriber store.
func NewMemorySubscribers() *MemorySubscribers {
	return &MemorySubscribers{
		nextID:  1,
		byEmail: make(map[string]domain.Subscriber),
	}
}

func (s *MemorySubscribers) Create(ctx context.Context, email string, interests []string) (domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, ok := s.byEmail[key]; ok {
		return domain.Subscriber{}, ErrDuplicateEmail
	}

	sub := domain.Subscriber{
		ID:        s.nextID,
		Email:     email,
		Interests: append([]string(nil), interests...),
		Active:    true,
		CreatedAt: time.Now(),
	}
	s.nextID++
	s.byEmail[key] = sub

	return sub, nil
}

func (s *MemorySubscribers) GetByEmail(ctx context.Context, email string) (domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return domain.Subscriber{}, ErrNotFound
	}

	return sub, nil
}

func (s *MemorySubscribers) ListActive(ctx context.Context) ([]domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subs []domain.Subscriber
	for _, sub := range s.byEmail {
		if sub.Active {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })

	return subs, nil
}

func (s *MemorySubscribers) Deactivate(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	sub, ok := s.byEmail[key]
	if !ok {
		return ErrNotFound
	}

	sub.Active = false
	s.byEmail[key] = sub

	return nil
}

// MemoryDeliveries is an in-process DeliveryStore with the same tracking
// semantics as the Postgres store: atomic increments under one lock, no-op on
// unknown ids.
type MemoryDeliveries struct {
	mu    sync.Mutex
	byID  map[string]domain.Delivery
	order []string
}

var _ ports.DeliveryStore = (*MemoryDeliveries)(nil)

// NewMemoryDeliveries returns an empty in-memory delivery store.
func NewMemoryDeliveries() *MemoryDeliveries {
	return &MemoryDeliveries{byID: make(map[string]domain.Delivery)}
}

func (s *MemoryDeliveries) Create(ctx context.Context, d domain.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ClickedArticles == nil {
		d.ClickedArticles = []int{}
	}
	if _, ok := s.byID[d.NewsletterID]; !ok {
		s.order = append(s.order, d.NewsletterID)
	}
	s.byID[d.NewsletterID] = d

	return nil
}

func (s *MemoryDeliveries) Get(ctx context.Context, newsletterID string) (domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[newsletterID]
	if !ok {
		return domain.Delivery{}, ErrNotFound
	}

	return copyDelivery(d), nil
}

func (s *MemoryDeliveries) List(ctx context.Context) ([]domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deliveries := make([]domain.Delivery, 0, len(s.order))
	for _, id := range s.order {
		deliveries = append(deliveries, copyDelivery(s.byID[id]))
	}

	return deliveries, nil
}

func (s *MemoryDeliveries) RecordOpen(ctx context.Context, newsletterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[newsletterID]
	if !ok {
		return nil
	}

	d.Opened = true
	d.OpenCount++
	if d.FirstOpenedAt == nil {
		now := time.Now()
		d.FirstOpenedAt = &now
	}
	s.byID[newsletterID] = d

	return nil
}

func (s *MemoryDeliveries) RecordClick(ctx context.Context, newsletterID string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.byID[newsletterID]
	if !ok {
		return nil
	}

	d.Clicked = true
	d.ClickCount++
	now := time.Now()
	d.LastClickedAt = &now
	if !containsPosition(d.ClickedArticles, position) {
		d.ClickedArticles = append(append([]int(nil), d.ClickedArticles...), position)
	}
	s.byID[newsletterID] = d

	return nil
}

func containsPosition(positions []int, position int) bool {
	for _, p := range positions {
		if p == position {
			return true
		}
	}
	return false
}

func copyDelivery(d domain.Delivery) domain.Delivery {
	d.ClickedArticles = append([]int(nil), d.ClickedArticles...)
	if d.FirstOpenedAt != nil {
		t := *d.FirstOpenedAt
		d.FirstOpenedAt = &t
	}
	if d.LastClickedAt != nil {
		t := *d.LastClickedAt
		d.LastClickedAt = &t
	}
	return d
}
