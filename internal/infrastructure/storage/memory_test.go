package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"NewsletterHub/internal/domain"
)

func TestMemorySubscribersDuplicateEmail(t *testing.T) {
	t.Parallel()

	store := NewMemorySubscribers()
	ctx := context.Background()

	if _, err := store.Create(ctx, "alice@example.com", []string{"ai"}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := store.Create(ctx, "Alice@Example.com", []string{"web3"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestMemorySubscribersDeactivate(t *testing.T) {
	t.Parallel()

	store := NewMemorySubscribers()
	ctx := context.Background()

	if _, err := store.Create(ctx, "bob@example.com", []string{"ai"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Deactivate(ctx, "bob@example.com"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active subscribers, got %d", len(active))
	}

	// Deactivating again still finds the record.
	if err := store.Deactivate(ctx, "bob@example.com"); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}
	if err := store.Deactivate(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemorySubscribersListActiveOrder(t *testing.T) {
	t.Parallel()

	store := NewMemorySubscribers()
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if _, err := store.Create(ctx, email, nil); err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 subscribers, got %d", len(active))
	}
	for i := 1; i < len(active); i++ {
		if active[i].ID <= active[i-1].ID {
			t.Fatalf("subscribers out of id order: %v", active)
		}
	}
}

func TestMemoryDeliveriesUnknownIDNoOp(t *testing.T) {
	t.Parallel()

	store := NewMemoryDeliveries()
	ctx := context.Background()

	if err := store.RecordOpen(ctx, "missing"); err != nil {
		t.Fatalf("record open on unknown id: %v", err)
	}
	if err := store.RecordClick(ctx, "missing", 1); err != nil {
		t.Fatalf("record click on unknown id: %v", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryDeliveriesOpenTracking(t *testing.T) {
	t.Parallel()

	store := NewMemoryDeliveries()
	ctx := context.Background()

	if err := store.Create(ctx, domain.Delivery{NewsletterID: "abc12345", Email: "a@example.com", SentAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.RecordOpen(ctx, "abc12345"); err != nil {
		t.Fatalf("first open: %v", err)
	}
	first, err := store.Get(ctx, "abc12345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !first.Opened || first.OpenCount != 1 || first.FirstOpenedAt == nil {
		t.Fatalf("unexpected record after first open: %+v", first)
	}

	if err := store.RecordOpen(ctx, "abc12345"); err != nil {
		t.Fatalf("second open: %v", err)
	}
	second, err := store.Get(ctx, "abc12345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if second.OpenCount != 2 {
		t.Fatalf("expected open count 2, got %d", second.OpenCount)
	}
	if !second.FirstOpenedAt.Equal(*first.FirstOpenedAt) {
		t.Fatalf("first opened timestamp changed on second open")
	}
}

func TestMemoryDeliveriesClickSetSemantics(t *testing.T) {
	t.Parallel()

	store := NewMemoryDeliveries()
	ctx := context.Background()

	if err := store.Create(ctx, domain.Delivery{NewsletterID: "abc12345", Email: "a@example.com", SentAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, pos := range []int{1, 2, 1} {
		if err := store.RecordClick(ctx, "abc12345", pos); err != nil {
			t.Fatalf("record click %d: %v", pos, err)
		}
	}

	d, err := store.Get(ctx, "abc12345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.ClickCount != 3 {
		t.Fatalf("expected click count 3, got %d", d.ClickCount)
	}
	if len(d.ClickedArticles) != 2 || d.ClickedArticles[0] != 1 || d.ClickedArticles[1] != 2 {
		t.Fatalf("expected clicked set [1 2], got %v", d.ClickedArticles)
	}
	if d.LastClickedAt == nil {
		t.Fatalf("expected last clicked timestamp")
	}
}

func TestMemoryDeliveriesConcurrentOpens(t *testing.T) {
	t.Parallel()

	store := NewMemoryDeliveries()
	ctx := context.Background()

	if err := store.Create(ctx, domain.Delivery{NewsletterID: "abc12345", Email: "a@example.com", SentAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}

	const opens = 50
	var wg sync.WaitGroup
	wg.Add(opens)
	for i := 0; i < opens; i++ {
		go func() {
			defer wg.Done()
			_ = store.RecordOpen(ctx, "abc12345")
		}()
	}
	wg.Wait()

	d, err := store.Get(ctx, "abc12345")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.OpenCount != opens {
		t.Fatalf("expected %d opens, got %d", opens, d.OpenCount)
	}
}

func TestInterestsRoundTrip(t *testing.T) {
	t.Parallel()

	joined := joinInterests([]string{"ai", " web3 ", "", "startups"})
	if joined != "ai,web3,startups" {
		t.Fatalf("unexpected joined interests: %q", joined)
	}

	split := splitInterests("ai, web3 ,,startups")
	if len(split) != 3 || split[0] != "ai" || split[1] != "web3" || split[2] != "startups" {
		t.Fatalf("unexpected split interests: %v", split)
	}

	if got := splitInterests(""); len(got) != 0 {
		t.Fatalf("expected empty split, got %v", got)
	}
}
