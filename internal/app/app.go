// Package app wires configuration into a runnable service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"NewsletterHub/internal/config"
	"NewsletterHub/internal/httpserver"
	"NewsletterHub/internal/infrastructure/mailer"
	"NewsletterHub/internal/infrastructure/parser"
	"NewsletterHub/internal/infrastructure/scheduler"
	"NewsletterHub/internal/infrastructure/storage"
	"NewsletterHub/internal/infrastructure/summary"
	"NewsletterHub/internal/logging"
	"NewsletterHub/internal/ports"
	"NewsletterHub/internal/scanner"
	"NewsletterHub/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	server    *httpserver.Server
}

// New builds the full dependency graph. An empty database DSN selects the
// in-memory stores, a missing summarizer key selects the mock summarizer and
// missing SMTP credentials mean simulated delivery, so the service runs out
// of the box in development.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	app := &Application{cfg: cfg, logger: baseLogger}

	var (
		subscribers ports.SubscriberStore
		deliveries  ports.DeliveryStore
	)
	if cfg.Database.DSN != "" {
		db, err := storage.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		app.db = db
		subscribers = storage.NewPostgresSubscribers(db)
		deliveries = storage.NewPostgresDeliveries(db)
		baseLogger.Info("using postgres stores")
	} else {
		subscribers = storage.NewMemorySubscribers()
		deliveries = storage.NewMemoryDeliveries()
		baseLogger.Info("no database dsn configured, using in-memory stores")
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewHeadlineScanner(nil))

	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	var summarizer ports.Summarizer = summary.NewMockSummarizer()
	if cfg.Summarizer.APIKey != "" {
		summarizer = summary.NewOpenAIClient(cfg.Summarizer)
	}

	var sender mailer.Sender
	if cfg.Resend.APIKey != "" {
		sender = mailer.NewResendSender(cfg.Resend)
	} else {
		sender = mailer.NewSMTPSender(cfg.SMTP, baseLogger.With("component", "smtp"))
	}
	issueMailer := mailer.New(sender, baseLogger.With("component", "mailer"))

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Subscribers: subscribers,
		Deliveries:  deliveries,
		Source:      source,
		Summarizer:  summarizer,
		Mailer:      issueMailer,
		Renderer:    mailer.NewRenderer(cfg.Server.BaseURL),
		Limits:      cfg.Pipeline,
		Logger:      baseLogger.With("component", "pipeline"),
	})

	cronDriver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location())
	app.scheduler = usecase.NewScheduler(cronDriver, app.pipeline)

	triggerRun := func() {
		if _, err := app.pipeline.Run(context.Background()); err != nil {
			baseLogger.Error("manual pipeline run", "error", err)
		}
	}
	handlers := httpserver.NewHandlers(subscribers, deliveries, triggerRun,
		cfg.Server.FallbackRedirectURL, baseLogger.With("component", "http"))
	app.server = httpserver.New(cfg.Server.Addr, handlers, baseLogger.With("component", "http"))

	return app, nil
}

// Run starts the scheduler and HTTP server and blocks until the context is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Timezone)

	err := a.server.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := a.scheduler.Stop(stopCtx); stopErr != nil {
		a.logger.Warn("scheduler stop", "error", stopErr)
	}
	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil {
			a.logger.Warn("database close", "error", closeErr)
		}
	}

	return err
}
