package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"NewsletterHub/internal/domain"
	"NewsletterHub/internal/infrastructure/storage"
	"NewsletterHub/internal/metrics"
	"NewsletterHub/internal/ports"
)

// transparentGIF is a fixed 1x1 transparent image served for every open
// tracking hit regardless of whether the newsletter id exists.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61,
	0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00,
	0x21, 0xF9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00,
	0x2C, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	0x02, 0x02, 0x44, 0x01, 0x00,
	0x3B,
}

// Handlers holds the API's dependencies.
type Handlers struct {
	subscribers ports.SubscriberStore
	deliveries  ports.DeliveryStore
	triggerRun  func()
	fallbackURL string
	logger      *slog.Logger
}

// NewHandlers constructs the handler set. triggerRun fires one pipeline run
// asynchronously and may be nil when no pipeline is wired.
func NewHandlers(subscribers ports.SubscriberStore, deliveries ports.DeliveryStore, triggerRun func(), fallbackURL string, logger *slog.Logger) *Handlers {
	return &Handlers{
		subscribers: subscribers,
		deliveries:  deliveries,
		triggerRun:  triggerRun,
		fallbackURL: fallbackURL,
		logger:      logger,
	}
}

type subscribeRequest struct {
	Email     string   `json:"email"`
	Interests []string `json:"interests"`
}

type subscriberResponse struct {
	ID        int64    `json:"id"`
	Email     string   `json:"email"`
	Interests []string `json:"interests"`
	Active    bool     `json:"active"`
}

// Welcome greets API explorers at the root.
func (h *Handlers) Welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to NewsletterHub"})
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Subscribe registers a new subscriber. A previously unsubscribed email is
// still a duplicate.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	sub, err := h.subscribers.Create(r.Context(), req.Email, req.Interests)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			writeError(w, http.StatusBadRequest, "email already subscribed")
			return
		}
		h.logger.Error("create subscriber", "email", req.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Successfully subscribed",
		"user_id": sub.ID,
	})
}

// ListUsers returns all active subscribers.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscribers.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list subscribers", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]subscriberResponse, 0, len(subs))
	for _, sub := range subs {
		resp = append(resp, subscriberResponse{
			ID:        sub.ID,
			Email:     sub.Email,
			Interests: sub.Interests,
			Active:    sub.Active,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Unsubscribe deactivates a subscriber. Repeating the call keeps returning
// success; unknown emails are a 404.
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	if err := h.subscribers.Deactivate(r.Context(), email); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "subscriber not found")
			return
		}
		h.logger.Error("deactivate subscriber", "email", email, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully unsubscribed"})
}

// TrackOpen serves the tracking pixel and records the open. The pixel is
// always returned, even for unknown ids or store failures, so broken tracking
// never mangles the email rendering.
func (h *Handlers) TrackOpen(w http.ResponseWriter, r *http.Request) {
	newsletterID := chi.URLParam(r, "newsletterID")

	if err := h.deliveries.RecordOpen(r.Context(), newsletterID); err != nil {
		h.logger.Error("record open", "newsletter_id", newsletterID, "error", err)
	} else {
		metrics.NewsletterOpens.Inc()
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(transparentGIF)
}

// TrackClick records the click and redirects to the article. A missing or
// invalid position still redirects so the reader is never stranded.
func (h *Handlers) TrackClick(w http.ResponseWriter, r *http.Request) {
	newsletterID := chi.URLParam(r, "newsletterID")

	if position, err := strconv.Atoi(chi.URLParam(r, "position")); err == nil {
		if err := h.deliveries.RecordClick(r.Context(), newsletterID, position); err != nil {
			h.logger.Error("record click", "newsletter_id", newsletterID, "error", err)
		} else {
			metrics.NewsletterClicks.Inc()
		}
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		target = h.fallbackURL
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// AnalyticsRecord returns the full tracking record for one newsletter.
func (h *Handlers) AnalyticsRecord(w http.ResponseWriter, r *http.Request) {
	newsletterID := chi.URLParam(r, "newsletterID")

	d, err := h.deliveries.Get(r.Context(), newsletterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "newsletter not found")
			return
		}
		h.logger.Error("get delivery", "newsletter_id", newsletterID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// AnalyticsSummary aggregates engagement across all deliveries.
func (h *Handlers) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.deliveries.List(r.Context())
	if err != nil {
		h.logger.Error("list deliveries", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":       computeStats(deliveries),
		"newsletters": deliveries,
	})
}

// TriggerRun starts one pipeline run in the background and returns
// immediately.
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.triggerRun == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	go h.triggerRun()

	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Newsletter run started"})
}

// computeStats derives percentage rates rounded to one decimal. The
// click-to-open rate uses opened newsletters as its denominator.
func computeStats(deliveries []domain.Delivery) domain.DeliveryStats {
	stats := domain.DeliveryStats{TotalSent: len(deliveries)}
	for _, d := range deliveries {
		if d.Opened {
			stats.Opened++
		}
		if d.Clicked {
			stats.Clicked++
		}
	}

	if stats.TotalSent > 0 {
		stats.OpenRate = roundRate(stats.Opened, stats.TotalSent)
		stats.ClickRate = roundRate(stats.Clicked, stats.TotalSent)
	}
	if stats.Opened > 0 {
		stats.CTOR = roundRate(stats.Clicked, stats.Opened)
	}

	return stats
}

func roundRate(part, whole int) float64 {
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
