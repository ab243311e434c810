package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"NewsletterHub/internal/domain"
	"NewsletterHub/internal/infrastructure/storage"
)

const fallbackURL = "https://news.example.com"

type testServer struct {
	ts          *httptest.Server
	subscribers *storage.MemorySubscribers
	deliveries  *storage.MemoryDeliveries
	runs        *atomic.Int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	subscribers := storage.NewMemorySubscribers()
	deliveries := storage.NewMemoryDeliveries()
	runs := &atomic.Int64{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandlers(subscribers, deliveries, func() { runs.Add(1) }, fallbackURL, logger)
	srv := New("127.0.0.1:0", h, logger)

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, subscribers: subscribers, deliveries: deliveries, runs: runs}
}

func (s *testServer) postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	resp, err := http.Post(s.ts.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (s *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := http.Get(s.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func seedDelivery(t *testing.T, s *testServer, newsletterID string) {
	t.Helper()

	err := s.deliveries.Create(context.Background(), domain.Delivery{
		NewsletterID: newsletterID,
		Email:        "reader@example.com",
		SentAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("seed delivery: %v", err)
	}
}

func TestSubscribeAndDuplicate(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp := s.postJSON(t, "/subscribe", map[string]any{
		"email":     "alice@example.com",
		"interests": []string{"ai", "web3"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string]any](t, resp)
	if body["user_id"] == nil {
		t.Fatalf("expected user_id in response, got %v", body)
	}

	resp = s.postJSON(t, "/subscribe", map[string]any{"email": "alice@example.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubscribeDuplicateAfterUnsubscribe(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp := s.postJSON(t, "/subscribe", map[string]any{"email": "bob@example.com", "interests": []string{"ai"}})
	resp.Body.Close()

	resp = s.postJSON(t, "/unsubscribe/bob@example.com", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unsubscribe: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// The record survives deactivation, so the email stays taken.
	resp = s.postJSON(t, "/subscribe", map[string]any{"email": "bob@example.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on resubscribe, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSubscribeEmptyEmail(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp := s.postJSON(t, "/subscribe", map[string]any{"email": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListUsersExcludesUnsubscribed(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, email := range []string{"a@example.com", "b@example.com"} {
		resp := s.postJSON(t, "/subscribe", map[string]any{"email": email, "interests": []string{"ai"}})
		resp.Body.Close()
	}
	resp := s.postJSON(t, "/unsubscribe/a@example.com", nil)
	resp.Body.Close()

	resp = s.get(t, "/users")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	users := decodeBody[[]subscriberResponse](t, resp)
	if len(users) != 1 || users[0].Email != "b@example.com" {
		t.Fatalf("unexpected users: %+v", users)
	}
	if len(users[0].Interests) != 1 || users[0].Interests[0] != "ai" {
		t.Fatalf("interests not returned as list: %+v", users[0])
	}
}

func TestUnsubscribeUnknownAndIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp := s.postJSON(t, "/unsubscribe/nobody@example.com", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = s.postJSON(t, "/subscribe", map[string]any{"email": "c@example.com", "interests": []string{"ai"}})
	resp.Body.Close()

	for i := 0; i < 2; i++ {
		resp = s.postJSON(t, "/unsubscribe/c@example.com", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unsubscribe attempt %d: expected 200, got %d", i+1, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestTrackOpenPixelAndCounting(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	seedDelivery(t, s, "abc12345")

	for i := 0; i < 2; i++ {
		resp := s.get(t, "/track/open/abc12345")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/gif" {
			t.Fatalf("expected image/gif, got %q", ct)
		}
		pixel, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("read pixel: %v", err)
		}
		if len(pixel) != len(transparentGIF) || !bytes.Equal(pixel, transparentGIF) {
			t.Fatalf("pixel bytes changed, got %d bytes", len(pixel))
		}
	}

	d, err := s.deliveries.Get(context.Background(), "abc12345")
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if !d.Opened || d.OpenCount != 2 || d.FirstOpenedAt == nil {
		t.Fatalf("unexpected tracking state: %+v", d)
	}
}

func TestTrackOpenUnknownIDStillServesPixel(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp := s.get(t, "/track/open/deadbeef")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc == "" {
		t.Fatalf("expected cache-suppressing headers")
	}
	resp.Body.Close()
}

func TestTrackClickRedirectAndSetSemantics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	seedDelivery(t, s, "abc12345")

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	article := "https://example.com/story"
	for _, pos := range []int{1, 2, 1} {
		resp, err := client.Get(fmt.Sprintf("%s/track/click/abc12345/%d?url=%s", s.ts.URL, pos, article))
		if err != nil {
			t.Fatalf("click: %v", err)
		}
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("expected 302, got %d", resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != article {
			t.Fatalf("expected redirect to article, got %q", loc)
		}
		resp.Body.Close()
	}

	d, err := s.deliveries.Get(context.Background(), "abc12345")
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if d.ClickCount != 3 {
		t.Fatalf("expected click count 3, got %d", d.ClickCount)
	}
	if len(d.ClickedArticles) != 2 {
		t.Fatalf("expected clicked set of 2, got %v", d.ClickedArticles)
	}
}

func TestTrackClickFallbackRedirect(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(s.ts.URL + "/track/click/deadbeef/1")
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != fallbackURL {
		t.Fatalf("expected fallback redirect, got %q", loc)
	}
}

func TestTrackClickNonNumericPositionRedirectsOnly(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	seedDelivery(t, s, "abc12345")

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(s.ts.URL + "/track/click/abc12345/first")
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("expected 302, got %d", resp.StatusCode)
	}

	d, err := s.deliveries.Get(context.Background(), "abc12345")
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if d.Clicked || d.ClickCount != 0 {
		t.Fatalf("non-numeric position must not record a click: %+v", d)
	}
}

func TestAnalyticsRecordNotFound(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp := s.get(t, "/analytics/deadbeef")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAnalyticsRecord(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	seedDelivery(t, s, "abc12345")

	ctx := context.Background()
	if err := s.deliveries.RecordOpen(ctx, "abc12345"); err != nil {
		t.Fatalf("record open: %v", err)
	}
	if err := s.deliveries.RecordClick(ctx, "abc12345", 2); err != nil {
		t.Fatalf("record click: %v", err)
	}

	resp := s.get(t, "/analytics/abc12345")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	d := decodeBody[domain.Delivery](t, resp)
	if !d.Opened || d.OpenCount != 1 || d.ClickCount != 1 {
		t.Fatalf("unexpected record: %+v", d)
	}
	if len(d.ClickedArticles) != 1 || d.ClickedArticles[0] != 2 {
		t.Fatalf("expected clicked list [2], got %v", d.ClickedArticles)
	}
}

func TestAnalyticsSummaryRates(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		seedDelivery(t, s, fmt.Sprintf("issue%d00", i))
	}
	// One open, one open+click: open rate 66.7, click rate 33.3, CTOR 50.0.
	if err := s.deliveries.RecordOpen(ctx, "issue000"); err != nil {
		t.Fatalf("record open: %v", err)
	}
	if err := s.deliveries.RecordOpen(ctx, "issue100"); err != nil {
		t.Fatalf("record open: %v", err)
	}
	if err := s.deliveries.RecordClick(ctx, "issue100", 1); err != nil {
		t.Fatalf("record click: %v", err)
	}

	resp := s.get(t, "/analytics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Stats       domain.DeliveryStats `json:"stats"`
		Newsletters []domain.Delivery    `json:"newsletters"`
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if body.Stats.TotalSent != 3 || body.Stats.Opened != 2 || body.Stats.Clicked != 1 {
		t.Fatalf("unexpected totals: %+v", body.Stats)
	}
	if body.Stats.OpenRate != 66.7 || body.Stats.ClickRate != 33.3 || body.Stats.CTOR != 50.0 {
		t.Fatalf("unexpected rates: %+v", body.Stats)
	}
	if len(body.Newsletters) != 3 {
		t.Fatalf("expected 3 records, got %d", len(body.Newsletters))
	}
}

func TestTriggerRun(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp := s.postJSON(t, "/runs", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.runs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("pipeline trigger never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp := s.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "healthy" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}
