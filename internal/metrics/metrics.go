// Package metrics exposes the process's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled HTTP requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// NewslettersSent counts successfully delivered newsletters.
	NewslettersSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsletters_sent_total",
		Help: "Total number of newsletters delivered.",
	})

	// NewsletterOpens counts tracking-pixel hits.
	NewsletterOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_opens_total",
		Help: "Total number of newsletter open events.",
	})

	// NewsletterClicks counts tracked link clicks.
	NewsletterClicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsletter_clicks_total",
		Help: "Total number of newsletter click events.",
	})

	// PipelineRuns counts pipeline executions, scheduled and manual.
	PipelineRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_runs_total",
		Help: "Total number of newsletter pipeline runs.",
	})
)
